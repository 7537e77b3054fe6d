package runner

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

// Line is one word-list record with the number of times it has been put back.
type Line struct {
	Value   string
	Retries int
}

// DataPool hands out word-list lines. Put-back lines are served first, newest first.
type DataPool struct {
	lines  []string
	cursor atomic.Int64

	mu    sync.Mutex
	retry []Line
}

func NewDataPool(lines []string) *DataPool {
	return &DataPool{lines: lines}
}

// LoadDataPool reads one record per line. Trailing CR is dropped; blank lines are
// skipped when skipEmpty is set.
func LoadDataPool(r io.Reader, skipEmpty bool) (*DataPool, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if skipEmpty && strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading data: %w", err)
	}
	return NewDataPool(lines), nil
}

// SkipTake narrows the pool to take lines after the first skip. A take of 0 keeps
// the rest. It must be called before the pool is used.
func (p *DataPool) SkipTake(skip, take int) {
	skip = min(max(skip, 0), len(p.lines))
	p.lines = p.lines[skip:]
	if take > 0 && take < len(p.lines) {
		p.lines = p.lines[:take]
	}
}

func (p *DataPool) NextLine() (Line, bool) {
	if line, ok := p.popRetry(); ok {
		return line, true
	}

	idx := p.cursor.Add(1) - 1
	if idx >= int64(len(p.lines)) {
		return Line{}, false
	}
	return Line{Value: p.lines[idx]}, true
}

func (p *DataPool) popRetry() (Line, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.retry)
	if n == 0 {
		return Line{}, false
	}
	line := p.retry[n-1]
	p.retry = p.retry[:n-1]
	return line, true
}

// ReturnLine puts a line back to be handed out before any unread line.
func (p *DataPool) ReturnLine(line string, retries int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retry = append(p.retry, Line{Value: line, Retries: retries})
}

func (p *DataPool) Total() int {
	return len(p.lines)
}

// Consumed counts lines read from the list, capped at Total.
func (p *DataPool) Consumed() int {
	return int(min(p.cursor.Load(), int64(len(p.lines))))
}

func (p *DataPool) Remaining() int {
	p.mu.Lock()
	pending := len(p.retry)
	p.mu.Unlock()
	return p.Total() - p.Consumed() + pending
}
