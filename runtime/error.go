package runtime

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidJSON is returned by blocks that require a JSON document and got something else.
	ErrInvalidJSON = errors.New("invalid JSON")
	// ErrUnknownBlock is returned when no executor handles a block kind.
	ErrUnknownBlock = errors.New("unknown block kind")
)

// BlockError wraps the failure of one block with the block's identity.
type BlockError struct {
	BlockID string
	Label   string
	Kind    BlockKind
	Err     error
}

func NewBlockError(b Block, err error) *BlockError {
	return &BlockError{BlockID: b.ID, Label: b.Label, Kind: b.Kind, Err: err}
}

func (e *BlockError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("block %q (%s): %v", e.Label, e.Kind, e.Err)
	}
	return fmt.Sprintf("block %s (%s): %v", e.BlockID, e.Kind, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}

// TransportErrorCode classifies a failed transport exchange.
type TransportErrorCode string

const (
	// TransportSendFailed: the request could not be handed to the transport.
	TransportSendFailed TransportErrorCode = "SEND_FAILED"
	// TransportReplyClosed: the transport dropped the reply slot without answering.
	TransportReplyClosed TransportErrorCode = "REPLY_CLOSED"
	// TransportCancelled: the caller's context ended first.
	TransportCancelled TransportErrorCode = "CANCELLED"
	// TransportRemote: the transport answered with an error string.
	TransportRemote TransportErrorCode = "REMOTE"
)

// TransportError is the operation error produced by a failed transport round-trip.
type TransportError struct {
	Action  TransportAction    `json:"action"`
	Code    TransportErrorCode `json:"code"`
	Message string             `json:"message"`
	Cause   error              `json:"-"`
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("[%s/%s] %s", e.Action, e.Code, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ToMap converts the error to a map suitable for a result feed or script environment.
func (e *TransportError) ToMap() map[string]any {
	return map[string]any{
		"action":  string(e.Action),
		"code":    string(e.Code),
		"message": e.Message,
	}
}
