package runner

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFeed_KeepsMostRecent(t *testing.T) {
	f := newFeed(3)
	assert.Empty(t, f.recent())

	for i := range 5 {
		f.push(ResultEntry{Data: strconv.Itoa(i)})
	}

	var got []string
	for _, e := range f.recent() {
		got = append(got, e.Data)
	}
	assert.Equal(t, []string{"2", "3", "4"}, got)
}

func TestStats_Snapshot(t *testing.T) {
	var s stats
	s.reset(10)
	s.processed.Add(6)
	s.hits.Add(2)
	s.bans.Add(1)

	started := time.Unix(0, s.startedAt.Load())
	snap := s.snapshot(7, started.Add(30*time.Second))

	assert.Equal(t, int64(10), snap.Total)
	assert.Equal(t, int64(6), snap.Processed)
	assert.Equal(t, int64(7), snap.Consumed)
	assert.Equal(t, int64(2), snap.Hits)
	assert.Equal(t, int64(1), snap.Bans)
	assert.Equal(t, 30*time.Second, snap.Elapsed)
	assert.InDelta(t, 12.0, snap.CPM, 0.001)
}

func TestStats_SnapshotBeforeStart(t *testing.T) {
	var s stats
	snap := s.snapshot(0, time.Now())
	assert.True(t, snap.StartedAt.IsZero())
	assert.Zero(t, snap.CPM)
}

func TestGradualDelayMS(t *testing.T) {
	assert.Equal(t, 100, gradualDelayMS(1, 100))
	assert.Equal(t, 100, gradualDelayMS(10, 100))
	assert.Equal(t, 30, gradualDelayMS(100, 100))
	assert.Equal(t, 1, gradualDelayMS(10000, 100))
}
