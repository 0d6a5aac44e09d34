package watcher

import "time"

type Config struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	DebounceWindow time.Duration `yaml:"debounce_window" json:"debounce_window"`
	MaxBatchSize   int           `yaml:"max_batch_size" json:"max_batch_size"`
	IgnorePatterns []string      `yaml:"ignore_patterns" json:"ignore_patterns"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		DebounceWindow: 300 * time.Millisecond,
		MaxBatchSize:   100,
		// sqlite journal churn is our own writing, never a reason to reload
		IgnorePatterns: []string{
			"**/*.db-wal",
			"**/*.db-shm",
			"**/*.db-journal",
			"**/*.tmp",
		},
	}
}
