package persistence

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"trading-assistant/internal/monitor"
	"trading-assistant/pkg/db"
)

// maxPendingBatches bounds how many failed batches are held for retry.
const maxPendingBatches = 4

// SignalSink stores batches of signal records.
type SignalSink interface {
	CreateSignals(ctx context.Context, signals []db.Signal) error
}

// SignalLog batches append-only signal records so that signal generation
// never waits on the database.
type SignalLog struct {
	sink        SignalSink
	buffer      []db.Signal
	mu          sync.Mutex
	flushMu     sync.Mutex
	maxSize     int
	flushIntval time.Duration
	done        chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
	metrics     SignalLogMetrics
	latency     *monitor.LatencyHistogram
	log         zerolog.Logger
}

// SignalLogMetrics provides statistics about batch operations.
type SignalLogMetrics struct {
	TotalWrites   uint64    `json:"total_writes"`
	TotalBatches  uint64    `json:"total_batches"`
	TotalErrors   uint64    `json:"total_errors"`
	TotalDropped  uint64    `json:"total_dropped"`
	LastBatchSize int       `json:"last_batch_size"`
	LastFlushTime time.Time `json:"last_flush_time"`
}

// NewSignalLog starts a batching writer.
// maxSize: max records before auto-flush
// interval: time-based flush interval
func NewSignalLog(sink SignalSink, maxSize int, interval time.Duration, log zerolog.Logger) *SignalLog {
	if maxSize <= 0 {
		maxSize = 50
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	sl := &SignalLog{
		sink:        sink,
		buffer:      make([]db.Signal, 0, maxSize),
		maxSize:     maxSize,
		flushIntval: interval,
		done:        make(chan struct{}),
		log:         log,
	}

	sl.wg.Add(1)
	go sl.backgroundFlush()

	return sl
}

// WithLatency records flush durations into h.
func (sl *SignalLog) WithLatency(h *monitor.LatencyHistogram) *SignalLog {
	sl.latency = h
	return sl
}

// Append queues a record; a full buffer is flushed immediately.
func (sl *SignalLog) Append(s db.Signal) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	sl.mu.Lock()
	sl.buffer = append(sl.buffer, s)
	shouldFlush := len(sl.buffer) >= sl.maxSize
	sl.mu.Unlock()

	if shouldFlush {
		if err := sl.Flush(context.Background()); err != nil {
			sl.log.Warn().Err(err).Msg("signal log flush failed")
		}
	}
}

// Flush immediately writes all buffered records.
func (sl *SignalLog) Flush(ctx context.Context) error {
	sl.flushMu.Lock()
	defer sl.flushMu.Unlock()

	sl.mu.Lock()
	if len(sl.buffer) == 0 {
		sl.mu.Unlock()
		return nil
	}
	batch := sl.buffer
	sl.buffer = make([]db.Signal, 0, sl.maxSize)
	sl.mu.Unlock()

	return sl.write(ctx, batch)
}

func (sl *SignalLog) write(ctx context.Context, batch []db.Signal) error {
	timer := monitor.NewTimer(sl.latency)
	err := sl.sink.CreateSignals(ctx, batch)
	timer.Stop()

	atomic.AddUint64(&sl.metrics.TotalBatches, 1)
	sl.mu.Lock()
	sl.metrics.LastBatchSize = len(batch)
	sl.metrics.LastFlushTime = time.Now()
	sl.mu.Unlock()

	if err != nil {
		atomic.AddUint64(&sl.metrics.TotalErrors, 1)
		sl.requeue(batch)
		return err
	}
	atomic.AddUint64(&sl.metrics.TotalWrites, uint64(len(batch)))
	sl.log.Debug().Int("count", len(batch)).Msg("signal log flushed")
	return nil
}

// requeue puts a failed batch back in front of newer records. When that
// would exceed the retry bound the oldest records are dropped.
func (sl *SignalLog) requeue(batch []db.Signal) {
	sl.mu.Lock()
	room := sl.maxSize*maxPendingBatches - len(sl.buffer)
	if room < 0 {
		room = 0
	}
	dropped := 0
	if len(batch) > room {
		dropped = len(batch) - room
		batch = batch[dropped:]
	}
	sl.buffer = append(batch[:len(batch):len(batch)], sl.buffer...)
	pending := len(sl.buffer)
	sl.mu.Unlock()

	if dropped > 0 {
		atomic.AddUint64(&sl.metrics.TotalDropped, uint64(dropped))
		sl.log.Error().Int("dropped", dropped).Int("pending", pending).Msg("signal log full, oldest records dropped")
	}
}

// backgroundFlush periodically flushes the buffer.
func (sl *SignalLog) backgroundFlush() {
	defer sl.wg.Done()
	ticker := time.NewTicker(sl.flushIntval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := sl.Flush(context.Background()); err != nil {
				sl.log.Warn().Err(err).Msg("signal log background flush failed")
			}
		case <-sl.done:
			if err := sl.Flush(context.Background()); err != nil {
				sl.log.Error().Err(err).Int("lost", sl.Pending()).Msg("signal log final flush failed")
			}
			return
		}
	}
}

// Pending returns the number of queued records.
func (sl *SignalLog) Pending() int {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return len(sl.buffer)
}

// GetMetrics returns the current metrics for the log.
func (sl *SignalLog) GetMetrics() SignalLogMetrics {
	sl.mu.Lock()
	size, at := sl.metrics.LastBatchSize, sl.metrics.LastFlushTime
	sl.mu.Unlock()
	return SignalLogMetrics{
		TotalWrites:   atomic.LoadUint64(&sl.metrics.TotalWrites),
		TotalBatches:  atomic.LoadUint64(&sl.metrics.TotalBatches),
		TotalErrors:   atomic.LoadUint64(&sl.metrics.TotalErrors),
		TotalDropped:  atomic.LoadUint64(&sl.metrics.TotalDropped),
		LastBatchSize: size,
		LastFlushTime: at,
	}
}

// Close flushes what is left and stops the background loop.
func (sl *SignalLog) Close() error {
	sl.closeOnce.Do(func() { close(sl.done) })
	sl.wg.Wait()
	return nil
}
