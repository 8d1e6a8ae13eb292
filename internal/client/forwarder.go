package client

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/coffersTech/logwindow/internal/model"
)

// ForwarderOptions tunes a Forwarder. Zero values select the defaults.
type ForwarderOptions struct {
	BatchSize     int           // events per request, default 100
	FlushInterval time.Duration // max delay before a partial batch is sent, default 1s
	QueueSize     int           // buffered events, default 10000
	Block         bool          // Append waits for queue space instead of dropping
	// Logger reports delivery failures. It must not feed back into this
	// Forwarder.
	Logger *zap.Logger
}

// Forwarder is a capture.Sink that ships events to a remote server's
// ingest endpoint in batches. Unless Block is set, Append never blocks and
// events are dropped when the queue is full. Events appended after
// Shutdown are always dropped.
type Forwarder struct {
	client *Client
	opts   ForwarderOptions
	queue  chan *model.LogEvent
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	// mu orders Append against Shutdown: no event enters the queue once
	// closed is set.
	mu     sync.RWMutex
	closed bool

	sent    atomic.Int64
	dropped atomic.Int64
}

// NewForwarder starts a Forwarder sending through c.
func NewForwarder(c *Client, opts ForwarderOptions) *Forwarder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 10000
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	f := &Forwarder{
		client: c,
		opts:   opts,
		queue:  make(chan *model.LogEvent, opts.QueueSize),
		done:   make(chan struct{}),
	}
	f.wg.Add(1)
	go f.runLoop()
	return f
}

// Append queues e for delivery.
func (f *Forwarder) Append(e *model.LogEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		f.dropped.Add(1)
		return
	}

	if f.opts.Block {
		f.queue <- e
		return
	}

	select {
	case f.queue <- e:
	default:
		f.dropped.Add(1)
	}
}

// Sent returns the number of events the server acknowledged.
func (f *Forwarder) Sent() int64 {
	return f.sent.Load()
}

// Dropped returns the number of events that were never sent.
func (f *Forwarder) Dropped() int64 {
	return f.dropped.Load()
}

// Shutdown flushes the queue and stops the sender. It waits for Appends
// already in progress. It is safe to call more than once.
func (f *Forwarder) Shutdown() {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.done)
	})
	f.wg.Wait()
}

func (f *Forwarder) runLoop() {
	defer f.wg.Done()
	ticker := time.NewTicker(f.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]*model.LogEvent, 0, f.opts.BatchSize)

	send := func() {
		if len(batch) == 0 {
			return
		}
		if err := f.send(batch); err != nil {
			f.dropped.Add(int64(len(batch)))
			f.opts.Logger.Warn("forward failed",
				zap.String("server", f.client.BaseURL),
				zap.Int("events", len(batch)),
				zap.Error(err))
		} else {
			f.sent.Add(int64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case e := <-f.queue:
			batch = append(batch, e)
			if len(batch) >= f.opts.BatchSize {
				send()
			}
		case <-ticker.C:
			send()
		case <-f.done:
			for {
				select {
				case e := <-f.queue:
					batch = append(batch, e)
					if len(batch) >= f.opts.BatchSize {
						send()
					}
				default:
					send()
					return
				}
			}
		}
	}
}

func (f *Forwarder) send(batch []*model.LogEvent) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.client.do(ctx, http.MethodPost, "/api/ingest", body, nil)
}
