package async

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/mining-enricher/internal/core"
)

type recordingProcessor struct {
	mu    sync.Mutex
	seen  []string
	gate  chan struct{}
	fails map[string]bool
}

func (r *recordingProcessor) ProcessProject(_ context.Context, id string) (core.Report, error) {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	r.seen = append(r.seen, id)
	r.mu.Unlock()
	if r.fails[id] {
		return core.Report{ProjectID: id}, errors.New("boom")
	}
	return core.Report{ProjectID: id, Changed: true}, nil
}

func (r *recordingProcessor) processed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func TestProcessorQueue_ProcessesAndDrains(t *testing.T) {
	rp := &recordingProcessor{fails: map[string]bool{"bad": true}}
	q := NewProcessorQueue(rp, nil, WithWorkers(2), WithQueueSize(8), WithProcessTimeout(time.Second))

	for _, id := range []string{"a", "bad", "c"} {
		require.NoError(t, q.Enqueue(context.Background(), Job{ProjectID: id}))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	assert.ElementsMatch(t, []string{"a", "bad", "c"}, rp.processed())
	assert.Equal(t, 0, q.Pending())
	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{ProjectID: "late"}), ErrQueueClosed)
}

func TestProcessorQueue_DeduplicatesPendingProjects(t *testing.T) {
	rp := &recordingProcessor{gate: make(chan struct{})}
	q := NewProcessorQueue(rp, nil, WithWorkers(1), WithQueueSize(8))

	// the single worker takes the first job and blocks on the gate
	require.NoError(t, q.Enqueue(context.Background(), Job{ProjectID: "busy"}))
	require.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, q.Enqueue(context.Background(), Job{ProjectID: "p"}))
	require.NoError(t, q.Enqueue(context.Background(), Job{ProjectID: "p"}))
	assert.Equal(t, 1, q.Pending())
	require.NoError(t, q.Enqueue(context.Background(), Job{ProjectID: "p", Force: true}))
	assert.Equal(t, 2, q.Pending())

	close(rp.gate)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)
	assert.Equal(t, []string{"busy", "p", "p"}, rp.processed())
}
