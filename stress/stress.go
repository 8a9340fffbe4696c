// Package stress drives a circular buffer with one producer and one consumer
// and verifies that bytes come out in the order they went in.
//
// The producer writes fixed-size chunks of an incrementing byte counter. The
// consumer polls the buffer until a full read is available, reads it, and
// checks every byte continues the counter. The buffer itself never waits, so
// both sides retry on ErrOverflow/ErrUnderflow and yield in between.
package stress

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	cb "github.com/sushydev/circular_buffer_go"
)

// ErrSequenceMismatch is returned when the consumer sees a byte that does not
// continue the counter written by the producer.
var ErrSequenceMismatch = errors.New("stress: sequence mismatch")

// Report summarises a completed run.
type Report struct {
	BytesWritten uint64
	BytesRead    uint64
	Writes       uint64
	Reads        uint64

	// Number of times a side found the buffer too full or too empty.
	WriteRetries uint64
	ReadRetries  uint64

	Elapsed time.Duration
}

// Throughput is bytes read per second.
func (r Report) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}

	return float64(r.BytesRead) / r.Elapsed.Seconds()
}

func (r Report) String() string {
	return fmt.Sprintf("transferred %s in %s (%s/s), %d writes (%d retries), %d reads (%d retries)",
		humanize.IBytes(r.BytesRead), r.Elapsed.Round(time.Microsecond),
		humanize.IBytes(uint64(r.Throughput())),
		r.Writes, r.WriteRetries, r.Reads, r.ReadRetries)
}

// Fields returns the report as logrus fields.
func (r Report) Fields() logrus.Fields {
	return logrus.Fields{
		"bytes_written": r.BytesWritten,
		"bytes_read":    r.BytesRead,
		"writes":        r.Writes,
		"reads":         r.Reads,
		"write_retries": r.WriteRetries,
		"read_retries":  r.ReadRetries,
		"elapsed":       r.Elapsed,
	}
}

// Runner runs a Config against buffers. The zero value logs to the logrus
// standard logger.
type Runner struct {
	Log logrus.FieldLogger
}

// Run runs cfg against buf using the standard logger.
func Run(ctx context.Context, cfg Config, buf cb.CircularBufferInterface) (Report, error) {
	return (&Runner{}).Run(ctx, cfg, buf)
}

// Run transfers cfg.Total bytes through buf. buf must be empty and must not be
// used by anyone else for the duration of the run.
func (r *Runner) Run(ctx context.Context, cfg Config, buf cb.CircularBufferInterface) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}

	if need := MinCapacity(cfg.ChunkSize, cfg.ReadSize); uint64(buf.GetCapacity()) < uint64(need) {
		return Report{}, fmt.Errorf("%w: buffer capacity %d below %d for chunk %d and read %d",
			ErrInvalidConfig, buf.GetCapacity(), need, cfg.ChunkSize, cfg.ReadSize)
	}

	if !buf.IsEmpty() {
		return Report{}, fmt.Errorf("stress: buffer holds %d bytes before run", buf.GetSize())
	}

	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithFields(logrus.Fields{
		"capacity":   buf.GetCapacity(),
		"chunk_size": uint64(cfg.ChunkSize),
		"read_size":  uint64(cfg.ReadSize),
		"total":      uint64(cfg.Total),
	})

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var stats counters

	log.Debug("starting run")
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return produce(ctx, log, buf, int(cfg.ChunkSize), uint64(cfg.Total), &stats)
	})
	g.Go(func() error {
		return consume(ctx, log, buf, int(cfg.ReadSize), uint64(cfg.Total), &stats)
	})
	err := g.Wait()

	result := stats.snapshot(time.Since(start))
	if err != nil {
		log.WithFields(result.Fields()).WithError(err).Debug("run failed")
		return result, err
	}

	log.WithFields(result.Fields()).Debug("run finished")
	return result, nil
}

type counters struct {
	bytesWritten, bytesRead   atomic.Uint64
	writes, reads             atomic.Uint64
	writeRetries, readRetries atomic.Uint64
}

func (c *counters) snapshot(elapsed time.Duration) Report {
	return Report{
		BytesWritten: c.bytesWritten.Load(),
		BytesRead:    c.bytesRead.Load(),
		Writes:       c.writes.Load(),
		Reads:        c.reads.Load(),
		WriteRetries: c.writeRetries.Load(),
		ReadRetries:  c.readRetries.Load(),
		Elapsed:      elapsed,
	}
}

func produce(ctx context.Context, log logrus.FieldLogger, buf cb.CircularBufferInterface, chunkSize int, total uint64, c *counters) error {
	chunk := make([]byte, chunkSize)
	var counter byte

	for written := uint64(0); written < total; {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stress: producer stopped after %d bytes: %w", written, err)
		}

		for i := range chunk {
			chunk[i] = counter + byte(i)
		}

		n, err := buf.Write(chunk)
		if errors.Is(err, cb.ErrOverflow) {
			c.writeRetries.Add(1)
			runtime.Gosched()
			continue
		}
		if err != nil {
			return fmt.Errorf("stress: write at byte %d: %w", written, err)
		}

		counter += byte(n)
		written += uint64(n)
		c.bytesWritten.Add(uint64(n))
		c.writes.Add(1)
	}

	log.Debug("producer done")
	return nil
}

func consume(ctx context.Context, log logrus.FieldLogger, buf cb.CircularBufferInterface, readSize int, total uint64, c *counters) error {
	var expected byte

	for read := uint64(0); read < total; {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stress: consumer stopped after %d bytes: %w", read, err)
		}

		if buf.GetSize() < readSize {
			c.readRetries.Add(1)
			runtime.Gosched()
			continue
		}

		p, err := buf.Read(readSize)
		if errors.Is(err, cb.ErrUnderflow) {
			c.readRetries.Add(1)
			continue
		}
		if err != nil {
			return fmt.Errorf("stress: read at byte %d: %w", read, err)
		}

		for i, b := range p {
			if b != expected {
				return fmt.Errorf("%w: byte %d is %d, expected %d", ErrSequenceMismatch, read+uint64(i), b, expected)
			}
			expected++
		}

		read += uint64(len(p))
		c.bytesRead.Add(uint64(len(p)))
		c.reads.Add(1)
	}

	log.Debug("consumer done")
	return nil
}
