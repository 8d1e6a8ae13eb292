package engine

// Stats summarizes the buffer for the management API.
type Stats struct {
	InstanceID    string         `json:"instance_id"`
	Host          string         `json:"host,omitempty"`
	Running       bool           `json:"running"`
	Capacity      int            `json:"capacity"`
	Size          int            `json:"size"`
	Appended      int64          `json:"appended"`       // accepted since construction
	Dropped       int64          `json:"dropped"`        // rejected while stopped
	IngestionRate float64        `json:"ingestion_rate"` // logs/sec
	LevelDist     map[string]int `json:"level_dist"`     // e.g. "INFO": 100
	LoggerDist    map[string]int `json:"logger_dist"`
}

// unknownLevel groups events captured without a level.
const unknownLevel = "UNKNOWN"

// Stats computes counters and level/logger distributions over a snapshot
// of the buffer.
func (q *LogQuery) Stats() Stats {
	stats := Stats{
		InstanceID:    q.id,
		Host:          q.cfg.Host,
		Running:       q.Running(),
		Capacity:      q.events.Cap(),
		Appended:      q.appended.Load(),
		Dropped:       q.dropped.Load(),
		IngestionRate: q.IngestionRate(),
		LevelDist:     make(map[string]int),
		LoggerDist:    make(map[string]int),
	}

	for e := range q.events.Elements() {
		stats.Size++
		lvl := e.Level
		if lvl == "" {
			lvl = unknownLevel
		}
		stats.LevelDist[lvl]++
		if e.Logger != "" {
			stats.LoggerDist[e.Logger]++
		}
	}
	return stats
}
