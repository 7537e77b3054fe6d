package blocks

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sflowg/blockrunner/runtime"
)

const (
	defaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	defaultAcceptLanguage = "en-US,en;q=0.9"
	formContentType       = "application/x-www-form-urlencoded"
)

func (e *Executor) executeHTTP(execution *runtime.Execution, b runtime.Block, s runtime.HTTPRequestSettings) error {
	vars := execution.Variables

	method := strings.ToUpper(vars.Interpolate(s.Method))
	url := vars.Interpolate(s.URL)

	headers := make([][2]string, 0, len(s.Headers)+4)
	for _, h := range s.Headers {
		headers = append(headers, [2]string{vars.Interpolate(h.Name), vars.Interpolate(h.Value)})
	}
	if len(s.Headers) == 0 {
		ua := execution.Fingerprint.UserAgent
		if ua == "" {
			ua = defaultUserAgent
		}
		headers = append(headers,
			[2]string{"User-Agent", ua},
			[2]string{"Accept", defaultAccept},
			[2]string{"Accept-Language", defaultAcceptLanguage},
		)
	}

	var body string
	switch s.BodyType {
	case "Standard":
		body = vars.Interpolate(s.Body)
		contentType := s.ContentType
		if contentType == "" {
			contentType = formContentType
		}
		headers = setHeader(headers, "Content-Type", vars.Interpolate(contentType))
	case "Raw":
		body = vars.Interpolate(s.Body)
		if s.ContentType != "" {
			headers = setHeader(headers, "Content-Type", vars.Interpolate(s.ContentType))
		}
	case "BasicAuth":
		creds := vars.Interpolate(s.BasicAuthUser) + ":" + vars.Interpolate(s.BasicAuthPass)
		headers = setHeader(headers, "Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(creds)))
	}

	sentCookies := parseCookieLines(vars.Interpolate(s.CustomCookies))
	if len(sentCookies) > 0 {
		pairs := make([]string, 0, len(sentCookies))
		for _, c := range sentCookies {
			pairs = append(pairs, c[0]+"="+c[1])
		}
		headers = append(headers, [2]string{"Cookie", strings.Join(pairs, "; ")})
	}

	req := runtime.NewRequest(runtime.ActionRequest, execution.Session)
	req.Method = method
	req.URL = url
	req.Headers = headers
	req.Body = body
	req.TimeoutMS = s.TimeoutMS
	req.Proxy = execution.Proxy
	req.Browser = execution.Fingerprint.Browser
	req.JA3 = execution.Fingerprint.JA3
	req.HTTP2FP = execution.Fingerprint.HTTP2FP
	req.FollowRedirects = &s.FollowRedirects
	req.MaxRedirects = s.MaxRedirects
	req.SSLVerify = &s.SSLVerify
	req.CustomCiphers = s.CipherSuites

	e.l.DebugContext(execution, fmt.Sprintf("Sending %s %s", method, url),
		"block", b.ID,
		"proxy", execution.Proxy)

	resp, err := runtime.Roundtrip(execution, execution.Transport, req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, url, err)
	}

	finalURL := resp.FinalURL
	if finalURL == "" {
		finalURL = url
	}
	headersJSON, err := json.Marshal(nonNil(resp.Headers))
	if err != nil {
		return fmt.Errorf("failed to encode response headers: %w", err)
	}
	cookiesJSON, err := json.Marshal(nonNil(resp.Cookies))
	if err != nil {
		return fmt.Errorf("failed to encode response cookies: %w", err)
	}

	prefix := s.ResponseVar
	if prefix == "" {
		prefix = "SOURCE"
	}
	status := strconv.Itoa(resp.Status)
	vars.SetData(prefix, resp.Body)
	vars.SetData(prefix+".STATUS", status)
	vars.SetData(prefix+".URL", finalURL)
	vars.SetData(prefix+".HEADERS", string(headersJSON))
	vars.SetData(prefix+".COOKIES", string(cookiesJSON))
	vars.SetData("RESPONSECODE", status)
	vars.SetData("ADDRESS", finalURL)
	vars.SetData("COOKIES", string(cookiesJSON))

	sent := make(map[string]string, len(sentCookies))
	for _, c := range sentCookies {
		sent[c[0]] = c[1]
	}
	execution.AddNetwork(runtime.NetworkEntry{
		BlockID:      b.ID,
		Label:        b.Label,
		Method:       method,
		URL:          url,
		Status:       resp.Status,
		TimingMS:     resp.TimingMS,
		ResponseSize: len(resp.Body),
		CookiesSent:  sent,
		CookiesSet:   resp.Cookies,
	})
	return nil
}

// setHeader replaces a header case-insensitively, or appends it.
func setHeader(headers [][2]string, name, value string) [][2]string {
	for i, h := range headers {
		if strings.EqualFold(h[0], name) {
			headers[i][1] = value
			return headers
		}
	}
	return append(headers, [2]string{name, value})
}

// parseCookieLines reads one name=value pair per line, skipping blanks and lines without '='.
func parseCookieLines(s string) [][2]string {
	var out [][2]string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		name, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		out = append(out, [2]string{strings.TrimSpace(name), strings.TrimSpace(value)})
	}
	return out
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
