package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"
)

var _ context.Context = &Execution{}

// LogEntry is one line of an execution's log.
type LogEntry struct {
	Time    time.Time
	BlockID string
	Label   string
	Message string
}

// BlockResult records how one block went.
type BlockResult struct {
	BlockID   string
	Label     string
	Kind      BlockKind
	Success   bool
	Elapsed   time.Duration
	Message   string
	Variables map[string]string
}

// NetworkEntry summarises one HTTP exchange made by a block.
type NetworkEntry struct {
	BlockID      string
	Label        string
	Method       string
	URL          string
	Status       int
	TimingMS     int64
	ResponseSize int
	CookiesSent  map[string]string
	CookiesSet   map[string]string
}

// Fingerprint carries the browser/TLS hints forwarded with every request.
type Fingerprint struct {
	Browser   string
	JA3       string
	HTTP2FP   string
	UserAgent string
}

// Execution is the interpreter state for one record attempt. It is created per
// attempt and discarded afterwards.
type Execution struct {
	ID        string
	Variables *Variables
	Status    Status

	// CustomStatus is the configured name reported for StatusCustom.
	CustomStatus string
	Session      string
	Proxy        string
	Fingerprint  Fingerprint
	Transport    Transport

	Log     []LogEntry
	Results []BlockResult
	Network []NetworkEntry

	ctx context.Context // real context carrying deadline/cancellation
}

func NewExecution(ctx context.Context, session string, transport Transport) *Execution {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Execution{
		ID:        uuid.NewString(),
		Variables: NewVariables(),
		Status:    StatusNone,
		Session:   session,
		Transport: transport,
		ctx:       ctx,
	}
}

// context.Context implementation, delegating to the embedded ctx so deadlines and
// cancellation reach slog handlers, scripts and transport round-trips.

func (e *Execution) Deadline() (deadline time.Time, ok bool) {
	return e.ctx.Deadline()
}

func (e *Execution) Done() <-chan struct{} {
	return e.ctx.Done()
}

func (e *Execution) Err() error {
	return e.ctx.Err()
}

func (e *Execution) Value(key any) any {
	k, ok := key.(string)
	if !ok {
		return e.ctx.Value(key)
	}

	v, found := e.Variables.Get(k)
	if !found {
		return e.ctx.Value(key)
	}
	return v
}

// SetStatus moves the execution out of StatusNone. A terminal status is final:
// later calls are ignored and report false.
func (e *Execution) SetStatus(s Status) bool {
	if e.Status.Terminal() {
		return false
	}
	e.Status = s
	return true
}

// StatusName is the status as reported to outputs, with Custom replaced by its configured name.
func (e *Execution) StatusName() string {
	if e.Status == StatusCustom && e.CustomStatus != "" {
		return e.CustomStatus
	}
	return string(e.Status)
}

func (e *Execution) AddLog(b Block, message string) {
	e.Log = append(e.Log, LogEntry{
		Time:    time.Now(),
		BlockID: b.ID,
		Label:   b.Label,
		Message: message,
	})
}

func (e *Execution) AddNetwork(entry NetworkEntry) {
	e.Network = append(e.Network, entry)
}
