package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) ExecuteOne(channel uint8) (bool, error) {
	args := m.Called(channel)
	return args.Bool(0), args.Error(1)
}

func TestWorkerPollsOnlyItsChannel(t *testing.T) {
	exec := new(mockExecutor)
	exec.On("ExecuteOne", uint8(1)).Return(true, nil).Times(3)
	exec.On("ExecuteOne", uint8(1)).Return(false, errBroken).Once()

	counts := []int{0, 1}
	pool := NewPool(exec, NewWaker(counts), Config{WorkersPerChannel: counts, IdleBackoffInitial: time.Microsecond, IdleBackoffMax: time.Microsecond})
	require.NoError(t, pool.Start(context.Background()))

	err := pool.Wait()
	require.ErrorIs(t, err, errBroken)
	assert.Contains(t, err.Error(), "channel 1")

	exec.AssertExpectations(t)
	exec.AssertNotCalled(t, "ExecuteOne", uint8(0))
	assert.Equal(t, int64(3), pool.GetMetrics().Snapshot().Executed)
	assert.Equal(t, 1, pool.GetWorkerCount())
}
