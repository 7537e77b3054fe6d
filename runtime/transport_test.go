package runtime

import (
	"context"
	"errors"
	"testing"
	"time"
)

// echo answers every call on t with the request's URL as body until t is closed.
func echo(t Transport) {
	for call := range t {
		call.Reply <- TransportResponse{ID: call.Request.ID, Status: 200, Body: call.Request.URL}
	}
}

func TestRoundtrip_Success(t *testing.T) {
	tr := NewTransport(1)
	defer close(tr)
	go echo(tr)

	req := NewRequest(ActionRequest, "s1")
	req.URL = "https://example.com/login"

	resp, err := Roundtrip(context.Background(), tr, req)
	if err != nil {
		t.Fatalf("Roundtrip failed: %v", err)
	}
	if resp.ID != req.ID || resp.Body != req.URL {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestRoundtrip_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func() (Transport, context.Context)
		code  TransportErrorCode
	}{
		{
			name: "no transport",
			setup: func() (Transport, context.Context) {
				return nil, context.Background()
			},
			code: TransportSendFailed,
		},
		{
			name: "closed transport",
			setup: func() (Transport, context.Context) {
				tr := NewTransport(1)
				close(tr)
				return tr, context.Background()
			},
			code: TransportSendFailed,
		},
		{
			name: "reply dropped",
			setup: func() (Transport, context.Context) {
				tr := NewTransport(1)
				go func() {
					call := <-tr
					close(call.Reply)
				}()
				return tr, context.Background()
			},
			code: TransportReplyClosed,
		},
		{
			name: "remote error",
			setup: func() (Transport, context.Context) {
				tr := NewTransport(1)
				go func() {
					call := <-tr
					call.Reply <- TransportResponse{Error: "proxy refused connection"}
				}()
				return tr, context.Background()
			},
			code: TransportRemote,
		},
		{
			name: "no answer before deadline",
			setup: func() (Transport, context.Context) {
				ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
				t.Cleanup(cancel)
				return NewTransport(1), ctx
			},
			code: TransportCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, ctx := tt.setup()

			_, err := Roundtrip(ctx, tr, NewRequest(ActionRequest, "s1"))

			var terr *TransportError
			if !errors.As(err, &terr) {
				t.Fatalf("Expected *TransportError, got %v", err)
			}
			if terr.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, terr.Code)
			}
			if terr.Action != ActionRequest {
				t.Errorf("Expected action request, got %s", terr.Action)
			}
		})
	}
}
