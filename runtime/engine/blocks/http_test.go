package blocks

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sflowg/blockrunner/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveTransport answers every call with respond and records the requests it saw.
func serveTransport(t *testing.T, respond func(runtime.TransportRequest) runtime.TransportResponse) (runtime.Transport, <-chan runtime.TransportRequest) {
	t.Helper()
	transport := runtime.NewTransport(1)
	seen := make(chan runtime.TransportRequest, 16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		for {
			select {
			case call := <-transport:
				seen <- call.Request
				resp := respond(call.Request)
				resp.ID = call.Request.ID
				call.Reply <- resp
			case <-ctx.Done():
				return
			}
		}
	}()
	return transport, seen
}

func TestExecuteHTTP(t *testing.T) {
	transport, seen := serveTransport(t, func(req runtime.TransportRequest) runtime.TransportResponse {
		return runtime.TransportResponse{
			Status:   200,
			FinalURL: req.URL + "/home",
			Headers:  map[string]string{"Content-Type": "text/html"},
			Cookies:  map[string]string{"session": "abc"},
			Body:     "Welcome alice",
			TimingMS: 42,
		}
	})

	e := newTestExecutor()
	execution := runtime.NewExecution(context.Background(), "sess-1", transport)
	execution.Proxy = "http://127.0.0.1:8080"
	execution.Variables.SetInput("USER", "alice")

	s := runtime.HTTPRequestSettings{
		Method:          "post",
		URL:             "https://example.com/login",
		Body:            "user=<input.USER>",
		BodyType:        "Standard",
		FollowRedirects: true,
		MaxRedirects:    8,
		TimeoutMS:       5000,
		CustomCookies:   "consent=yes\n\nbroken line\n",
		SSLVerify:       true,
	}
	require.NoError(t, e.ExecuteBlock(execution, runtime.Block{ID: "login", Label: "Login", Kind: runtime.KindHTTPRequest, Settings: s}))

	req := <-seen
	assert.Equal(t, runtime.ActionRequest, req.Action)
	assert.Equal(t, "sess-1", req.Session)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "user=alice", req.Body)
	assert.Equal(t, "http://127.0.0.1:8080", req.Proxy)
	assert.Contains(t, req.Headers, [2]string{"Content-Type", formContentType})
	assert.Contains(t, req.Headers, [2]string{"User-Agent", defaultUserAgent})
	assert.Contains(t, req.Headers, [2]string{"Cookie", "consent=yes"})
	require.NotNil(t, req.FollowRedirects)
	assert.True(t, *req.FollowRedirects)

	vars := execution.Variables
	assert.Equal(t, "Welcome alice", get(execution, "data.SOURCE"))
	assert.Equal(t, "200", get(execution, "data.SOURCE.STATUS"))
	assert.Equal(t, "https://example.com/login/home", get(execution, "data.SOURCE.URL"))
	assert.Equal(t, "200", get(execution, "data.RESPONSECODE"))
	assert.Equal(t, "https://example.com/login/home", get(execution, "data.ADDRESS"))

	var cookies map[string]string
	cookiesJSON, _ := vars.Get("data.COOKIES")
	require.NoError(t, json.Unmarshal([]byte(cookiesJSON), &cookies))
	assert.Equal(t, map[string]string{"session": "abc"}, cookies)

	require.Len(t, execution.Network, 1)
	entry := execution.Network[0]
	assert.Equal(t, "login", entry.BlockID)
	assert.Equal(t, 200, entry.Status)
	assert.Equal(t, int64(42), entry.TimingMS)
	assert.Equal(t, map[string]string{"consent": "yes"}, entry.CookiesSent)
}

func TestExecuteHTTP_DeclaredHeadersAndBasicAuth(t *testing.T) {
	transport, seen := serveTransport(t, func(runtime.TransportRequest) runtime.TransportResponse {
		return runtime.TransportResponse{Status: 401}
	})

	e := newTestExecutor()
	execution := runtime.NewExecution(context.Background(), "s", transport)

	s := runtime.HTTPRequestSettings{
		Method:        "GET",
		URL:           "https://example.com/api",
		Headers:       []runtime.Header{{Name: "X-Token", Value: "t"}},
		BodyType:      "BasicAuth",
		BasicAuthUser: "user",
		BasicAuthPass: "pass",
		ResponseVar:   "API",
	}
	require.NoError(t, run(t, e, execution, s))

	req := <-seen
	assert.Equal(t, [][2]string{{"X-Token", "t"}, {"Authorization", "Basic dXNlcjpwYXNz"}}, req.Headers)
	assert.Equal(t, "401", get(execution, "data.API.STATUS"))
	assert.Equal(t, "https://example.com/api", get(execution, "data.API.URL"))
	assert.Equal(t, "{}", get(execution, "data.API.HEADERS"))
}

func TestExecuteHTTP_TransportError(t *testing.T) {
	transport, _ := serveTransport(t, func(runtime.TransportRequest) runtime.TransportResponse {
		return runtime.TransportResponse{Error: "connection refused"}
	})

	e := newTestExecutor()
	execution := runtime.NewExecution(context.Background(), "s", transport)

	err := run(t, e, execution, runtime.HTTPRequestSettings{Method: "GET", URL: "https://example.com"})
	var terr *runtime.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, runtime.TransportRemote, terr.Code)
	assert.Empty(t, execution.Network)
}

func TestExecuteClearCookies(t *testing.T) {
	transport, seen := serveTransport(t, func(runtime.TransportRequest) runtime.TransportResponse {
		return runtime.TransportResponse{}
	})

	e := newTestExecutor()
	execution := runtime.NewExecution(context.Background(), "sess-9", transport)
	require.NoError(t, run(t, e, execution, runtime.ClearCookiesSettings{}))

	req := <-seen
	assert.Equal(t, runtime.ActionClearCookies, req.Action)
	assert.Equal(t, "sess-9", req.Session)
}

func TestExecuteClearCookies_NoTransport(t *testing.T) {
	e := newTestExecutor()
	err := run(t, e, newExecution(), runtime.ClearCookiesSettings{})

	var terr *runtime.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, runtime.TransportSendFailed, terr.Code)
}
