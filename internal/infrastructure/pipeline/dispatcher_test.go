package pipeline

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatcher_FIFOPerKey(t *testing.T) {
	d := NewDispatcher(4, 16, zap.NewNop())
	d.Start()

	var mu sync.Mutex
	seen := make(map[string][]int)

	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("loan:%d", i%3)
		seq := i / 3
		require.NoError(t, d.Dispatch(Task{LaneKey: key, Run: func() {
			mu.Lock()
			seen[key] = append(seen[key], seq)
			mu.Unlock()
		}}))
	}
	d.Stop()

	for key, order := range seen {
		for i := 1; i < len(order); i++ {
			assert.Greater(t, order[i], order[i-1], "out of order on %s", key)
		}
	}
}

func TestDispatcher_SameKeySameLane(t *testing.T) {
	d := NewDispatcher(8, 1, zap.NewNop())
	assert.Equal(t, d.laneFor("loan:42"), d.laneFor("loan:42"))
}

func TestDispatcher_StopDrainsQueuedTasks(t *testing.T) {
	d := NewDispatcher(2, 16, zap.NewNop())
	d.Start()

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Dispatch(Task{LaneKey: fmt.Sprintf("k%d", i), Run: func() {
			mu.Lock()
			ran++
			mu.Unlock()
		}}))
	}
	d.Stop()

	assert.Equal(t, 10, ran)
}

func TestDispatcher_DispatchAfterStop(t *testing.T) {
	d := NewDispatcher(1, 1, zap.NewNop())
	d.Start()
	d.Stop()

	err := d.Dispatch(Task{LaneKey: "x", Run: func() {}})
	assert.ErrorIs(t, err, ErrDispatcherStopped)
}
