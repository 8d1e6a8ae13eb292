package engine

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coffersTech/logwindow/internal/model"
	"github.com/coffersTech/logwindow/internal/ring"
)

const (
	DefaultSize          = 1000
	DefaultStatsInterval = time.Second
)

// Config configures a LogQuery.
type Config struct {
	Size          int           // buffer capacity
	StatsInterval time.Duration // ingestion rate sampling period
	Host          string        // reported by Stats
}

// LogQuery owns the event buffer and answers queries over it. Events are
// accepted only between Start and Stop.
type LogQuery struct {
	id     string
	cfg    Config
	logger *zap.Logger
	events *ring.Buffer[*model.LogEvent]

	attached atomic.Bool
	appended atomic.Int64
	dropped  atomic.Int64

	// Stats
	writeCounter atomic.Int64
	rateBits     atomic.Uint64 // float64 logs/sec

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a stopped LogQuery. A zero Size selects DefaultSize; a
// negative one fails with ring.ErrInvalidConfiguration.
func New(cfg Config, logger *zap.Logger) (*LogQuery, error) {
	if cfg.Size == 0 {
		cfg.Size = DefaultSize
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = DefaultStatsInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	events, err := ring.New[*model.LogEvent](cfg.Size)
	if err != nil {
		return nil, err
	}

	return &LogQuery{
		id:     uuid.New().String(),
		cfg:    cfg,
		logger: logger.Named("logquery"),
		events: events,
	}, nil
}

// Start attaches the buffer to its capture sources and starts the stats
// ticker. Calling Start on a running LogQuery does nothing.
func (q *LogQuery) Start() {
	q.lifecycle.Lock()
	defer q.lifecycle.Unlock()

	if q.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.done = make(chan struct{})
	go q.runStatsTicker(ctx, q.done)

	q.attached.Store(true)
	q.logger.Info("log query started",
		zap.String("instance_id", q.id),
		zap.Int("capacity", q.events.Cap()))
}

// Stop detaches the buffer and waits for the stats ticker to exit. Events
// appended while stopped are dropped. Calling Stop twice is safe.
func (q *LogQuery) Stop() {
	q.lifecycle.Lock()
	defer q.lifecycle.Unlock()

	if q.cancel == nil {
		return
	}

	q.attached.Store(false)
	q.cancel()
	<-q.done
	q.cancel = nil
	q.done = nil

	q.logger.Info("log query stopped",
		zap.String("instance_id", q.id),
		zap.Int64("appended", q.appended.Load()),
		zap.Int64("dropped", q.dropped.Load()))
}

// Running reports whether the LogQuery is between Start and Stop.
func (q *LogQuery) Running() bool {
	return q.attached.Load()
}

// Append stores an event. It is safe for any number of concurrent callers.
func (q *LogQuery) Append(e *model.LogEvent) {
	if e == nil {
		return
	}
	if !q.attached.Load() {
		q.dropped.Add(1)
		return
	}
	q.events.Append(e)
	q.appended.Add(1)
	q.writeCounter.Add(1)
}

// Size returns the number of buffered events.
func (q *LogQuery) Size() int {
	return q.events.Size()
}

// Capacity returns the buffer capacity.
func (q *LogQuery) Capacity() int {
	return q.events.Cap()
}

// ID returns the instance id assigned at construction.
func (q *LogQuery) ID() string {
	return q.id
}

// GetLogResults returns up to maxCount buffered events without filtering.
// A non-positive maxCount returns everything.
func (q *LogQuery) GetLogResults(maxCount int) model.LogResults {
	return q.filterLogResults(nil, maxCount)
}

// QueryLogResults returns the buffered events matching filter, capped at
// filter.Count when it is positive. A nil filter matches everything.
func (q *LogQuery) QueryLogResults(filter *model.LogFilter) model.LogResults {
	maxCount := -1
	if filter != nil {
		maxCount = filter.Count
	}
	return q.filterLogResults(Compose(filter), maxCount)
}

func (q *LogQuery) filterLogResults(p *Predicate, maxCount int) model.LogResults {
	results := Query(q.events.Elements(), p, maxCount)
	if ce := q.logger.Check(zap.DebugLevel, "query served"); ce != nil {
		ce.Write(
			zap.Stringer("predicate", p),
			zap.Int("requested", maxCount),
			zap.Int("returned", len(results.Events)),
			zap.Int("buffered", q.events.Size()))
	}
	return results
}

// Reset drops every buffered event.
func (q *LogQuery) Reset() {
	q.events.Clear()
	q.logger.Info("buffer cleared", zap.String("instance_id", q.id))
}

// IngestionRate returns the most recent appends-per-second sample.
func (q *LogQuery) IngestionRate() float64 {
	return math.Float64frombits(q.rateBits.Load())
}

func (q *LogQuery) runStatsTicker(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	interval := q.cfg.StatsInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			count := q.writeCounter.Swap(0)
			rate := float64(count) / interval.Seconds()
			q.rateBits.Store(math.Float64bits(rate))
		case <-ctx.Done():
			return
		}
	}
}
