package client

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/logwindow/internal/model"
)

func TestForwarderDeliversOnShutdown(t *testing.T) {
	srv, q := startNode(t, "")
	f := NewForwarder(newClient(srv, ""), ForwarderOptions{BatchSize: 2, FlushInterval: time.Hour})

	for i := 1; i <= 5; i++ {
		f.Append(&model.LogEvent{
			Timestamp:  int64(i) * 100,
			Level:      "WARN",
			Logger:     "billing",
			Message:    "retry",
			Exception:  []string{"boom"},
			Properties: map[string]string{"attempt": "x"},
			Host:       "worker-7",
		})
	}
	f.Shutdown()
	f.Shutdown()

	assert.Equal(t, int64(5), f.Sent())
	assert.Zero(t, f.Dropped())

	res := q.GetLogResults(0)
	require.Len(t, res.Events, 5)
	e := res.Events[0]
	assert.Equal(t, int64(100), e.Timestamp)
	assert.Equal(t, "WARN", e.Level)
	assert.Equal(t, "billing", e.Logger)
	assert.Equal(t, []string{"boom"}, e.Exception)
	assert.Equal(t, "x", e.Properties["attempt"])
	assert.Equal(t, "worker-7", e.Host)
}

func TestForwarderFlushesOnInterval(t *testing.T) {
	srv, q := startNode(t, "")
	f := NewForwarder(newClient(srv, ""), ForwarderOptions{FlushInterval: 10 * time.Millisecond})
	defer f.Shutdown()

	f.Append(&model.LogEvent{Timestamp: 1, Message: "tick"})
	assert.Eventually(t, func() bool { return q.Size() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestForwarderCountsFailures(t *testing.T) {
	var calls atomic.Int32
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	f := NewForwarder(New(failing.URL, ""), ForwarderOptions{BatchSize: 10})
	f.Append(&model.LogEvent{Message: "a"})
	f.Append(&model.LogEvent{Message: "b"})
	f.Shutdown()

	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, f.Sent())
	assert.Equal(t, int64(2), f.Dropped())

	f.Append(&model.LogEvent{Message: "late"})
	assert.Equal(t, int64(3), f.Dropped())
}

func TestForwarderAccountsForAppendsRacingShutdown(t *testing.T) {
	accept := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer accept.Close()

	for _, block := range []bool{false, true} {
		f := NewForwarder(New(accept.URL, ""), ForwarderOptions{BatchSize: 16, QueueSize: 64, Block: block})

		const producers, perProducer = 8, 200
		var wg sync.WaitGroup
		for range producers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range perProducer {
					f.Append(&model.LogEvent{Message: "m"})
				}
			}()
		}
		time.Sleep(time.Millisecond)
		f.Shutdown()
		wg.Wait()

		assert.Equal(t, int64(producers*perProducer), f.Sent()+f.Dropped(), "block=%v", block)
	}
}
