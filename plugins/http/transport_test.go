package http

import (
	"context"
	"io"
	"log/slog"
	gohttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sflowg/blockrunner/runtime"
)

func newTestServer() *Server {
	return NewServer(Config{Workers: 2, DefaultTimeout: 5 * time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := gohttp.NewServeMux()
	mux.HandleFunc("/login", func(w gohttp.ResponseWriter, r *gohttp.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Method != gohttp.MethodPost || string(body) != "user=alice" {
			w.WriteHeader(gohttp.StatusUnauthorized)
			return
		}
		gohttp.SetCookie(w, &gohttp.Cookie{Name: "session", Value: "s-1", Path: "/"})
		w.Header().Set("X-Login", "ok")
		io.WriteString(w, "Welcome alice")
	})
	mux.HandleFunc("/whoami", func(w gohttp.ResponseWriter, r *gohttp.Request) {
		c, err := r.Cookie("session")
		if err != nil {
			io.WriteString(w, "anonymous")
			return
		}
		io.WriteString(w, c.Value+" "+r.Header.Get("User-Agent"))
	})
	mux.HandleFunc("/start", func(w gohttp.ResponseWriter, r *gohttp.Request) {
		gohttp.Redirect(w, r, "/home", gohttp.StatusFound)
	})
	mux.HandleFunc("/home", func(w gohttp.ResponseWriter, r *gohttp.Request) {
		io.WriteString(w, "home")
	})
	mux.HandleFunc("/slow", func(w gohttp.ResponseWriter, r *gohttp.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func request(session, method, url, body string) runtime.TransportRequest {
	req := runtime.NewRequest(runtime.ActionRequest, session)
	req.Method = method
	req.URL = url
	req.Body = body
	return req
}

func TestHandle_SessionKeepsCookies(t *testing.T) {
	site := newSite(t)
	s := newTestServer()
	ctx := context.Background()

	s.Handle(ctx, runtime.NewRequest(runtime.ActionNewSession, "w1"))

	login := request("w1", "POST", site.URL+"/login", "user=alice")
	login.Headers = [][2]string{{"Content-Type", "application/x-www-form-urlencoded"}}
	resp := s.Handle(ctx, login)
	if resp.Error != "" {
		t.Fatalf("login failed: %s", resp.Error)
	}
	if resp.ID != login.ID {
		t.Errorf("expected reply id %s, got %s", login.ID, resp.ID)
	}
	if resp.Status != 200 || resp.Body != "Welcome alice" {
		t.Errorf("unexpected login response: %d %q", resp.Status, resp.Body)
	}
	if resp.Headers["X-Login"] != "ok" {
		t.Errorf("expected X-Login header, got %v", resp.Headers)
	}
	if resp.Cookies["session"] != "s-1" {
		t.Errorf("expected session cookie, got %v", resp.Cookies)
	}

	who := request("w1", "GET", site.URL+"/whoami", "")
	who.Headers = [][2]string{{"User-Agent", "checker/1.0"}}
	if got := s.Handle(ctx, who).Body; got != "s-1 checker/1.0" {
		t.Errorf("expected cookie to be replayed, got %q", got)
	}

	// other sessions do not share the jar
	if got := s.Handle(ctx, request("w2", "GET", site.URL+"/whoami", "")).Body; got != "anonymous" {
		t.Errorf("expected separate jar for w2, got %q", got)
	}

	s.Handle(ctx, runtime.NewRequest(runtime.ActionClearCookies, "w1"))
	if got := s.Handle(ctx, request("w1", "GET", site.URL+"/whoami", "")).Body; got != "anonymous" {
		t.Errorf("expected cookies cleared, got %q", got)
	}
}

func TestHandle_Redirects(t *testing.T) {
	site := newSite(t)
	s := newTestServer()
	ctx := context.Background()

	resp := s.Handle(ctx, request("r", "GET", site.URL+"/start", ""))
	if resp.Status != 200 || resp.Body != "home" {
		t.Fatalf("expected redirect to be followed, got %d %q (%s)", resp.Status, resp.Body, resp.Error)
	}
	if !strings.HasSuffix(resp.FinalURL, "/home") {
		t.Errorf("expected final URL on /home, got %s", resp.FinalURL)
	}

	follow := false
	req := request("r", "GET", site.URL+"/start", "")
	req.FollowRedirects = &follow
	resp = s.Handle(ctx, req)
	if resp.Status != gohttp.StatusFound {
		t.Errorf("expected 302 without following, got %d (%s)", resp.Status, resp.Error)
	}
	if !strings.HasSuffix(resp.Headers["Location"], "/home") {
		t.Errorf("expected Location header, got %v", resp.Headers)
	}
}

func TestHandle_Failures(t *testing.T) {
	site := newSite(t)
	s := newTestServer()
	ctx := context.Background()

	slow := request("f", "GET", site.URL+"/slow", "")
	slow.TimeoutMS = 50
	if resp := s.Handle(ctx, slow); resp.Error == "" {
		t.Error("expected timeout error")
	}

	bad := request("f", "GET", site.URL+"/home", "")
	bad.CustomCiphers = "TLS_NOT_A_SUITE"
	if resp := s.Handle(ctx, bad); !strings.Contains(resp.Error, "unknown cipher suite") {
		t.Errorf("expected cipher error, got %q", resp.Error)
	}

	unknown := runtime.NewRequest("teleport", "f")
	if resp := s.Handle(ctx, unknown); !strings.Contains(resp.Error, "unknown action") {
		t.Errorf("expected unknown action error, got %q", resp.Error)
	}
}

func TestServe_Roundtrip(t *testing.T) {
	site := newSite(t)
	s := newTestServer()

	ctx, cancel := context.WithCancel(context.Background())
	transport := runtime.NewTransport(4)
	done := make(chan struct{})
	go func() {
		s.Serve(ctx, transport)
		close(done)
	}()

	resp, err := runtime.Roundtrip(ctx, transport, request("rt", "GET", site.URL+"/home", ""))
	if err != nil {
		t.Fatalf("roundtrip failed: %v", err)
	}
	if resp.Body != "home" {
		t.Errorf("expected home, got %q", resp.Body)
	}

	_, err = runtime.Roundtrip(ctx, transport, request("rt", "GET", "http://127.0.0.1:1/closed", ""))
	if err == nil {
		t.Error("expected connection error")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestParseCipherSuites(t *testing.T) {
	ids, err := parseCipherSuites("TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256: TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 suites, got %d", len(ids))
	}

	if ids, err := parseCipherSuites("  "); err != nil || ids != nil {
		t.Errorf("expected nil for empty list, got %v %v", ids, err)
	}
}
