package engine

import (
	"sort"

	"github.com/coffersTech/logwindow/internal/model"
)

// DefaultHistogramInterval is the bucket width in milliseconds.
const DefaultHistogramInterval int64 = 60_000

type HistogramPoint struct {
	Time  int64 `json:"time"`
	Count int   `json:"count"`
}

// Histogram counts the buffered events matching filter per time bucket of
// interval milliseconds. filter.Count is ignored. Points are sorted by time.
func (q *LogQuery) Histogram(filter *model.LogFilter, interval int64) []HistogramPoint {
	if interval <= 0 {
		interval = DefaultHistogramInterval
	}
	p := Compose(filter)

	buckets := make(map[int64]int)
	for e := range q.events.Elements() {
		if !p.Matches(e) {
			continue
		}
		buckets[bucketStart(e.Timestamp, interval)]++
	}

	points := make([]HistogramPoint, 0, len(buckets))
	for t, c := range buckets {
		points = append(points, HistogramPoint{Time: t, Count: c})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Time < points[j].Time
	})
	return points
}

// bucketStart floors ts to a multiple of interval, also for negative ts.
func bucketStart(ts, interval int64) int64 {
	b := (ts / interval) * interval
	if ts < 0 && b != ts {
		b -= interval
	}
	return b
}
