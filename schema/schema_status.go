package schema

import "time"

// CacheStatus represents the status of the fetch cache store.
type CacheStatus struct {
	Backend         string    `json:"backend"`
	Connected       bool      `json:"connected"`
	TotalEntries    int       `json:"total_entries"`
	LastEntryTime   time.Time `json:"last_entry_time"`
	OldestEntryTime time.Time `json:"oldest_entry_time"`
	TableSizeBytes  int64     `json:"table_size_bytes"`
}

// HistoryStatus represents the status of the SQL history store.
type HistoryStatus struct {
	Backend        string           `json:"backend"`
	Connected      bool             `json:"connected"`
	TotalProjects  int              `json:"total_projects"`
	TotalAnalyses  int              `json:"total_analyses"`
	TotalMeasures  int              `json:"total_measures"`
	TotalEvents    int              `json:"total_events"`
	OldestAnalysis time.Time        `json:"oldest_analysis"`
	LatestAnalysis time.Time        `json:"latest_analysis"`
	TableSizes     map[string]int64 `json:"table_sizes"`
	SchemaVersion  uint             `json:"schema_version"`
	SchemaDirty    bool             `json:"schema_dirty"`
}
