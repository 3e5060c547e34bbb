package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// unreadBacklog hands out up to limit of its remaining unread messages per
// call, the way a limited "read == false" query does.
type unreadBacklog struct {
	remaining int
	failOn    int
	calls     int
	limits    []int
}

func (b *unreadBacklog) mark(ctx context.Context, limit int) (int, error) {
	b.calls++
	b.limits = append(b.limits, limit)
	if b.calls == b.failOn {
		return 0, errors.New("transaction aborted")
	}

	n := limit
	if b.remaining < n {
		n = b.remaining
	}
	b.remaining -= n
	return n, nil
}

func TestMarkInBatches(t *testing.T) {
	tests := []struct {
		name      string
		unread    int
		wantTotal int
		wantCalls int
	}{
		{"nothing unread", 0, 0, 1},
		{"less than one batch", 7, 7, 1},
		{"exactly one batch", 400, 400, 2},
		{"large backlog", 2350, 2350, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backlog := &unreadBacklog{remaining: tt.unread}

			total, err := markInBatches(context.Background(), markReadBatchSize, backlog.mark)

			assert.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
			assert.Equal(t, tt.wantCalls, backlog.calls)
			assert.Equal(t, 0, backlog.remaining)
			for _, limit := range backlog.limits {
				assert.Equal(t, markReadBatchSize, limit)
			}
		})
	}
}

func TestMarkInBatches_StopsOnError(t *testing.T) {
	backlog := &unreadBacklog{remaining: 1000, failOn: 2}

	total, err := markInBatches(context.Background(), 400, backlog.mark)

	assert.Error(t, err)
	assert.Equal(t, 400, total)
	assert.Equal(t, 2, backlog.calls)
	assert.Equal(t, 600, backlog.remaining)
}

func TestMarkInBatches_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	backlog := &unreadBacklog{remaining: 10}

	total, err := markInBatches(ctx, 400, backlog.mark)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, total)
	assert.Equal(t, 0, backlog.calls)
}
