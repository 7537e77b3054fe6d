// Package http serves the engine's transport channel with real HTTP requests made
// through resty. Each session keeps its own cookie jar.
package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	gohttp "net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sflowg/blockrunner/runtime"
	"golang.org/x/net/publicsuffix"
)

// Config holds the transport configuration with declarative tags
type Config struct {
	Workers        int           `yaml:"workers" default:"64" validate:"gte=1,lte=10000"`
	DefaultTimeout time.Duration `yaml:"default_timeout" default:"30s" validate:"gte=1s"`
	Debug          bool          `yaml:"debug"`
}

// Server answers TransportCalls. It ignores the JA3 and HTTP/2 fingerprint hints:
// requests go out with Go's own TLS and HTTP/2 stacks.
type Server struct {
	Config Config
	l      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu      sync.Mutex
	jar     *cookiejar.Jar
	clients map[clientKey]*resty.Client
}

// clientKey selects a resty client; requests differing in these settings cannot share one.
type clientKey struct {
	proxy        string
	follow       bool
	maxRedirects int
	sslVerify    bool
	ciphers      string
}

func NewServer(cfg Config, l *slog.Logger) *Server {
	return &Server{
		Config:   cfg,
		l:        l,
		sessions: make(map[string]*session),
	}
}

// Serve consumes calls with Config.Workers goroutines until ctx ends or t is closed.
func (s *Server) Serve(ctx context.Context, t runtime.Transport) {
	workers := max(s.Config.Workers, 1)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case call, ok := <-t:
					if !ok {
						return
					}
					call.Reply <- s.Handle(ctx, call.Request)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	wg.Wait()
}

// Handle performs one request and always produces a response; failures are
// reported in its Error field.
func (s *Server) Handle(ctx context.Context, req runtime.TransportRequest) runtime.TransportResponse {
	resp := runtime.TransportResponse{ID: req.ID}

	switch req.Action {
	case runtime.ActionNewSession:
		s.newSession(req.Session)
		s.l.DebugContext(ctx, "Session opened",
			"session", req.Session,
			"browser", req.Browser,
			"ja3", req.JA3 != "",
			"http2fp", req.HTTP2FP != "")
	case runtime.ActionCloseSession:
		s.mu.Lock()
		delete(s.sessions, req.Session)
		s.mu.Unlock()
	case runtime.ActionClearCookies:
		s.newSession(req.Session)
	case runtime.ActionRequest:
		return s.request(ctx, req)
	default:
		resp.Error = fmt.Sprintf("unknown action %q", req.Action)
	}
	return resp
}

// newSession creates or resets a session. Resetting drops its cookies.
func (s *Server) newSession(id string) *session {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	sess := &session{jar: jar, clients: make(map[clientKey]*resty.Client)}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	return sess
}

// session returns the named session, opening it on first use.
func (s *Server) session(id string) *session {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		return sess
	}
	return s.newSession(id)
}

func (s *Server) request(ctx context.Context, req runtime.TransportRequest) runtime.TransportResponse {
	out := runtime.TransportResponse{ID: req.ID}

	key := clientKey{
		proxy:        req.Proxy,
		follow:       req.FollowRedirects == nil || *req.FollowRedirects,
		maxRedirects: req.MaxRedirects,
		sslVerify:    req.SSLVerify == nil || *req.SSLVerify,
		ciphers:      req.CustomCiphers,
	}
	client, err := s.session(req.Session).client(key, s.Config.Debug)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	timeout := s.Config.DefaultTimeout
	if req.TimeoutMS > 0 {
		timeout = runtime.Millis(req.TimeoutMS)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r := client.R().SetContext(ctx)
	for _, h := range req.Headers {
		r.Header.Add(h[0], h[1])
	}
	if req.Body != "" {
		r.SetBody(req.Body)
	}

	method := req.Method
	if method == "" {
		method = resty.MethodGet
	}

	start := time.Now()
	resp, err := r.Execute(method, req.URL)
	out.TimingMS = time.Since(start).Milliseconds()
	if err != nil {
		out.Error = err.Error()
		return out
	}

	out.Status = resp.StatusCode()
	out.Body = resp.String()
	out.FinalURL = req.URL
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		out.FinalURL = raw.Request.URL.String()
	}

	out.Headers = make(map[string]string, len(resp.Header()))
	for k, v := range resp.Header() {
		out.Headers[k] = strings.Join(v, ", ")
	}

	out.Cookies = make(map[string]string)
	if raw := resp.RawResponse; raw != nil && raw.Request != nil {
		for _, c := range client.GetClient().Jar.Cookies(raw.Request.URL) {
			out.Cookies[c.Name] = c.Value
		}
	}
	for _, c := range resp.Cookies() {
		out.Cookies[c.Name] = c.Value
	}
	return out
}

func (sess *session) client(key clientKey, debug bool) (*resty.Client, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if c, ok := sess.clients[key]; ok {
		return c, nil
	}

	ciphers, err := parseCipherSuites(key.ciphers)
	if err != nil {
		return nil, err
	}

	c := resty.New().
		SetCookieJar(sess.jar).
		SetDebug(debug).
		SetTLSClientConfig(&tls.Config{
			InsecureSkipVerify: !key.sslVerify,
			CipherSuites:       ciphers,
		})

	if key.follow {
		c.SetRedirectPolicy(resty.FlexibleRedirectPolicy(max(key.maxRedirects, 1)))
	} else {
		c.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*gohttp.Request, []*gohttp.Request) error {
			return gohttp.ErrUseLastResponse
		}))
	}
	if key.proxy != "" {
		c.SetProxy(key.proxy)
	}

	sess.clients[key] = c
	return c, nil
}

// parseCipherSuites maps a comma or colon separated list of IANA suite names to ids.
func parseCipherSuites(list string) ([]uint16, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}

	known := make(map[string]uint16)
	for _, cs := range append(tls.CipherSuites(), tls.InsecureCipherSuites()...) {
		known[cs.Name] = cs.ID
	}

	var ids []uint16
	for _, name := range strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == ':' }) {
		name = strings.TrimSpace(name)
		id, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("unknown cipher suite %q", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
