package stress

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cb "github.com/sushydev/circular_buffer_go"
)

func newBuffer(t *testing.T, capacity int) *cb.CircularBuffer {
	t.Helper()
	buf, err := cb.NewCircularBuffer(capacity)
	require.NoError(t, err)
	return buf
}

func TestRunTransfersCounterInOrder(t *testing.T) {
	for _, capacity := range []int{64, 96, 256, 4096} {
		cfg := DefaultConfig()
		cfg.Capacity = Size(capacity)

		report, err := Run(context.Background(), cfg, newBuffer(t, capacity))
		require.NoError(t, err, "capacity %d", capacity)

		assert.Equal(t, uint64(cfg.Total), report.BytesWritten)
		assert.Equal(t, uint64(cfg.Total), report.BytesRead)
		assert.Equal(t, uint64(cfg.Total/cfg.ChunkSize), report.Writes)
		assert.Equal(t, uint64(cfg.Total/cfg.ReadSize), report.Reads)
		assert.Positive(t, report.Elapsed)
	}
}

func TestRunLogsWithFields(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	cfg := DefaultConfig()
	cfg.Total = 1024

	_, err := (&Runner{Log: logger}).Run(context.Background(), cfg, newBuffer(t, 256))
	require.NoError(t, err)

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "run finished", last.Message)
	assert.Equal(t, 256, last.Data["capacity"])
	assert.Equal(t, uint64(64), last.Data["read_size"])
	assert.Equal(t, uint64(1024), last.Data["bytes_read"])
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReadSize = 0

	_, err := Run(context.Background(), cfg, newBuffer(t, 256))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunRejectsSmallBuffer(t *testing.T) {
	_, err := Run(context.Background(), DefaultConfig(), newBuffer(t, 48))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunRejectsStallingBuffer(t *testing.T) {
	cfg := Config{Capacity: 60, ChunkSize: 30, ReadSize: 40, Total: 120, Timeout: time.Second}

	_, err := Run(context.Background(), cfg, newBuffer(t, 50))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunCompletesAtMinCapacity(t *testing.T) {
	cfg := Config{Capacity: 60, ChunkSize: 30, ReadSize: 40, Total: 1200, Timeout: 5 * time.Second}

	report, err := Run(context.Background(), cfg, newBuffer(t, 60))
	require.NoError(t, err)
	assert.Equal(t, uint64(1200), report.BytesRead)
}

func TestRunRejectsNonEmptyBuffer(t *testing.T) {
	buf := newBuffer(t, 256)
	_, err := buf.Write([]byte{1})
	require.NoError(t, err)

	_, err = Run(context.Background(), DefaultConfig(), buf)
	assert.Error(t, err)
}

// Reports too little data forever, so the producer stalls on a full buffer.
type starvedBuffer struct {
	*cb.CircularBuffer
}

func (starvedBuffer) GetSize() int { return 0 }

func TestRunTimesOut(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond

	report, err := Run(context.Background(), cfg, starvedBuffer{newBuffer(t, 256)})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, report.BytesRead)
	assert.Equal(t, uint64(256), report.BytesWritten)
}

func TestRunHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, DefaultConfig(), newBuffer(t, 256))
	assert.ErrorIs(t, err, context.Canceled)
}

// Flips one byte of the first read.
type corruptingBuffer struct {
	*cb.CircularBuffer
	done bool
}

func (c *corruptingBuffer) Read(size int) ([]byte, error) {
	p, err := c.CircularBuffer.Read(size)
	if err == nil && !c.done && len(p) > 10 {
		p[10]++
		c.done = true
	}
	return p, err
}

func TestRunDetectsSequenceMismatch(t *testing.T) {
	_, err := Run(context.Background(), DefaultConfig(), &corruptingBuffer{CircularBuffer: newBuffer(t, 256)})
	assert.ErrorIs(t, err, ErrSequenceMismatch)
}

func TestReportString(t *testing.T) {
	r := Report{BytesRead: 2048, Elapsed: time.Second, Writes: 64, Reads: 32}
	assert.Equal(t, float64(2048), r.Throughput())
	assert.Contains(t, r.String(), "2.0 KiB")
	assert.Zero(t, Report{}.Throughput())
}
