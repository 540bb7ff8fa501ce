package models

type ServerConfig struct {
	Port    int    `mapstructure:"port"`
	LogFile string `mapstructure:"log_file"`
}

type WatchConfig struct {
	Roots               []string `mapstructure:"roots"`
	ScanIntervalSeconds int      `mapstructure:"scan_interval_seconds"`
	BatchSize           int      `mapstructure:"batch_size"`
	BatchAgeMillis      int      `mapstructure:"batch_age_ms"`
	QueueSize           int      `mapstructure:"queue_size"`
}

type CacheConfig struct {
	MaxBytes      int64 `mapstructure:"max_bytes"`
	MaxEntryBytes int64 `mapstructure:"max_entry_bytes"`
}

type PoolConfig struct {
	Workers   int  `mapstructure:"workers"`
	QueueSize int  `mapstructure:"queue_size"`
	FailFast  bool `mapstructure:"fail_fast"`
}

type QueryConfig struct {
	DefaultLimit   int `mapstructure:"default_limit"`
	MaxLimit       int `mapstructure:"max_limit"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

type AppConfig struct {
	DBPath     string       `mapstructure:"db_path"`
	IgnoreFile string       `mapstructure:"ignore_file"`
	Server     ServerConfig `mapstructure:"server"`
	Watch      WatchConfig  `mapstructure:"watch"`
	Cache      CacheConfig  `mapstructure:"cache"`
	Pool       PoolConfig   `mapstructure:"pool"`
	Query      QueryConfig  `mapstructure:"query"`
}
