// internal/batch/batch_test.go
package batch

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_AllSucceed(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	out := Process(context.Background(), items, 2, func(ctx context.Context, n int) (int, error) {
		return n * 2, nil
	})

	assert.Len(t, out.Results, 5)
	assert.Empty(t, out.Errors)
	assert.ElementsMatch(t, []int{2, 4, 6, 8, 10}, out.Results)
}

func TestProcess_SettleAllUnderFailures(t *testing.T) {
	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}

	out := Process(context.Background(), items, 4, func(ctx context.Context, n int) (int, error) {
		if n%3 == 0 {
			return 0, fmt.Errorf("item %d failed", n)
		}
		return n, nil
	})

	// Every item settles exactly once regardless of the failure pattern.
	assert.Equal(t, len(items), len(out.Results)+len(out.Errors))
	assert.Len(t, out.Errors, 7)
	for _, ie := range out.Errors {
		assert.Zero(t, ie.Index%3)
	}
}

func TestProcess_RespectsConcurrencyCap(t *testing.T) {
	const limit = 3
	var current, peak int32

	items := make([]struct{}, 50)
	out := Process(context.Background(), items, limit, func(ctx context.Context, _ struct{}) (struct{}, error) {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		atomic.AddInt32(&current, -1)
		return struct{}{}, nil
	})

	require.Len(t, out.Results, 50)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(limit))
}

func TestProcess_EmptyInput(t *testing.T) {
	out := Process(context.Background(), nil, 5, func(ctx context.Context, _ int) (int, error) {
		t.Fatal("worker must not run for empty input")
		return 0, nil
	})

	assert.Empty(t, out.Results)
	assert.Empty(t, out.Errors)
}

func TestProcess_ZeroConcurrencyTreatedAsSerial(t *testing.T) {
	out := Process(context.Background(), []int{1, 2, 3}, 0, func(ctx context.Context, n int) (int, error) {
		return n, nil
	})

	assert.Len(t, out.Results, 3)
}
