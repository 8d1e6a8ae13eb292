package engine

import (
	"iter"

	"github.com/coffersTech/logwindow/internal/model"
)

// Query scans elements oldest to newest in a single pass. Every scanned
// event widens the from/to bounds; events matching p are collected. When
// maxCount is positive the scan stops as soon as maxCount events have
// matched, so events after that point affect neither the result nor the
// bounds. A nil p matches everything.
func Query(elements iter.Seq[*model.LogEvent], p *Predicate, maxCount int) model.LogResults {
	results := model.EmptyResults()

	matched := 0
	for e := range elements {
		if e == nil {
			continue
		}
		if e.Timestamp > results.ToTimestamp {
			results.ToTimestamp = e.Timestamp
		}
		if e.Timestamp < results.FromTimestamp {
			results.FromTimestamp = e.Timestamp
		}
		if !p.Matches(e) {
			continue
		}
		results.Events = append(results.Events, e)
		matched++
		if maxCount > 0 && matched >= maxCount {
			break
		}
	}
	return results
}
