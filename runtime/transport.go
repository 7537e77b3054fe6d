package runtime

import (
	"context"

	"github.com/google/uuid"
)

// TransportAction selects what the transport does with a request.
type TransportAction string

const (
	ActionNewSession   TransportAction = "new_session"
	ActionRequest      TransportAction = "request"
	ActionClearCookies TransportAction = "clear_cookies"
	ActionCloseSession TransportAction = "close_session"
)

// TransportRequest is one message to the transport. Only ID, Action and Session
// are meaningful for session actions.
type TransportRequest struct {
	ID      string          `json:"id"`
	Action  TransportAction `json:"action"`
	Session string          `json:"session"`

	Method    string      `json:"method,omitempty"`
	URL       string      `json:"url,omitempty"`
	Headers   [][2]string `json:"headers,omitempty"`
	Body      string      `json:"body,omitempty"`
	TimeoutMS int         `json:"timeout,omitempty"`
	Proxy     string      `json:"proxy,omitempty"`

	Browser string `json:"browser,omitempty"`
	JA3     string `json:"ja3,omitempty"`
	HTTP2FP string `json:"http2fp,omitempty"`

	FollowRedirects *bool  `json:"follow_redirects,omitempty"`
	MaxRedirects    int    `json:"max_redirects,omitempty"`
	SSLVerify       *bool  `json:"ssl_verify,omitempty"`
	CustomCiphers   string `json:"custom_ciphers,omitempty"`
}

// TransportResponse is the transport's answer to one request.
type TransportResponse struct {
	ID       string            `json:"id"`
	Status   int               `json:"status"`
	FinalURL string            `json:"final_url"`
	Headers  map[string]string `json:"headers,omitempty"`
	Cookies  map[string]string `json:"cookies,omitempty"`
	Body     string            `json:"body"`
	TimingMS int64             `json:"timing_ms"`
	Error    string            `json:"error,omitempty"`
}

// TransportCall pairs a request with its one-shot reply slot. The transport sends
// exactly one response on Reply, or closes it.
type TransportCall struct {
	Request TransportRequest
	Reply   chan<- TransportResponse
}

// Transport is the bounded channel the engine submits calls to.
type Transport chan TransportCall

// NewTransport creates a transport channel with the given buffer size.
func NewTransport(size int) Transport {
	return make(Transport, size)
}

// NewRequest fills in a correlation id for an action on a session.
func NewRequest(action TransportAction, session string) TransportRequest {
	return TransportRequest{
		ID:      uuid.NewString(),
		Action:  action,
		Session: session,
	}
}

// Roundtrip submits req and waits for its reply. Every failure to exchange the
// message, and any error the transport reports, comes back as a *TransportError.
func Roundtrip(ctx context.Context, t Transport, req TransportRequest) (TransportResponse, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	reply := make(chan TransportResponse, 1)

	if err := send(ctx, t, TransportCall{Request: req, Reply: reply}); err != nil {
		return TransportResponse{}, err
	}

	select {
	case resp, ok := <-reply:
		if !ok {
			return TransportResponse{}, &TransportError{Action: req.Action, Code: TransportReplyClosed, Message: "transport response channel closed"}
		}
		if resp.Error != "" {
			return resp, &TransportError{Action: req.Action, Code: TransportRemote, Message: resp.Error}
		}
		return resp, nil
	case <-ctx.Done():
		return TransportResponse{}, &TransportError{Action: req.Action, Code: TransportCancelled, Message: "waiting for transport reply", Cause: ctx.Err()}
	}
}

// send hands the call over, turning a send on a closed channel into an error.
func send(ctx context.Context, t Transport, call TransportCall) (err error) {
	if t == nil {
		return &TransportError{Action: call.Request.Action, Code: TransportSendFailed, Message: "no transport configured"}
	}
	defer func() {
		if r := recover(); r != nil {
			err = &TransportError{Action: call.Request.Action, Code: TransportSendFailed, Message: "failed to send request to transport"}
		}
	}()

	select {
	case t <- call:
		return nil
	case <-ctx.Done():
		return &TransportError{Action: call.Request.Action, Code: TransportSendFailed, Message: "transport busy", Cause: ctx.Err()}
	}
}
