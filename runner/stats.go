package runner

import (
	"sync"
	"sync/atomic"
	"time"
)

// FeedCapacity is how many recent results the live feed keeps.
const FeedCapacity = 100

// RunnerStats is a point-in-time copy of the run counters.
type RunnerStats struct {
	Total         int64         `json:"total"`
	Processed     int64         `json:"processed"`
	Consumed      int64         `json:"consumed"`
	Hits          int64         `json:"hits"`
	Fails         int64         `json:"fails"`
	Bans          int64         `json:"bans"`
	Retries       int64         `json:"retries"`
	Errors        int64         `json:"errors"`
	Customs       int64         `json:"customs"`
	ActiveWorkers int64         `json:"active_workers"`
	StartedAt     time.Time     `json:"started_at"`
	Elapsed       time.Duration `json:"elapsed"`
	CPM           float64       `json:"cpm"`
}

// ResultEntry is one line of the live feed.
type ResultEntry struct {
	Data     string            `json:"data"`
	Status   string            `json:"status"`
	Proxy    string            `json:"proxy,omitempty"`
	Captures map[string]string `json:"captures,omitempty"`
	Error    string            `json:"error,omitempty"`
	Time     time.Time         `json:"ts"`
}

type stats struct {
	total         atomic.Int64
	processed     atomic.Int64
	hits          atomic.Int64
	fails         atomic.Int64
	bans          atomic.Int64
	retries       atomic.Int64
	errors        atomic.Int64
	customs       atomic.Int64
	activeWorkers atomic.Int64
	startedAt     atomic.Int64 // unix nanos
}

func (s *stats) reset(total int) {
	s.total.Store(int64(total))
	s.processed.Store(0)
	s.hits.Store(0)
	s.fails.Store(0)
	s.bans.Store(0)
	s.retries.Store(0)
	s.errors.Store(0)
	s.customs.Store(0)
	s.startedAt.Store(time.Now().UnixNano())
}

// snapshot derives throughput from processed records over wall time since start.
func (s *stats) snapshot(consumed int, now time.Time) RunnerStats {
	out := RunnerStats{
		Total:         s.total.Load(),
		Processed:     s.processed.Load(),
		Consumed:      int64(consumed),
		Hits:          s.hits.Load(),
		Fails:         s.fails.Load(),
		Bans:          s.bans.Load(),
		Retries:       s.retries.Load(),
		Errors:        s.errors.Load(),
		Customs:       s.customs.Load(),
		ActiveWorkers: s.activeWorkers.Load(),
	}

	if started := s.startedAt.Load(); started != 0 {
		out.StartedAt = time.Unix(0, started)
		out.Elapsed = now.Sub(out.StartedAt)
		if secs := out.Elapsed.Seconds(); secs > 0 {
			out.CPM = float64(out.Processed) / secs * 60
		}
	}
	return out
}

// feed is a fixed-size ring of the most recent results.
type feed struct {
	mu      sync.Mutex
	entries []ResultEntry
	next    int
	full    bool
}

func newFeed(capacity int) *feed {
	return &feed{entries: make([]ResultEntry, capacity)}
}

func (f *feed) push(e ResultEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries[f.next] = e
	f.next = (f.next + 1) % len(f.entries)
	if f.next == 0 {
		f.full = true
	}
}

// recent returns the feed oldest first.
func (f *feed) recent() []ResultEntry {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.full {
		return append([]ResultEntry(nil), f.entries[:f.next]...)
	}
	out := make([]ResultEntry, 0, len(f.entries))
	out = append(out, f.entries[f.next:]...)
	return append(out, f.entries[:f.next]...)
}
