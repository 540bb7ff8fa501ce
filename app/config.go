package app

import (
	"github.com/JubinSaniei/filesystem/models"

	"github.com/spf13/viper"
)

func LoadConfig(path string) (*models.AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg models.AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DefaultConfig returns a config with every knob at its default, for callers
// that construct the service without a config file (tests, embedding).
func DefaultConfig() *models.AppConfig {
	v := viper.New()
	setDefaults(v)

	var cfg models.AppConfig
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "data/metadata.db")
	v.SetDefault("ignore_file", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_file", "")
	v.SetDefault("watch.scan_interval_seconds", 300)
	v.SetDefault("watch.batch_size", 200)
	v.SetDefault("watch.batch_age_ms", 2000)
	v.SetDefault("watch.queue_size", 4096)
	v.SetDefault("cache.max_bytes", 100*1024*1024)
	v.SetDefault("cache.max_entry_bytes", 10*1024*1024)
	v.SetDefault("pool.workers", 4)
	v.SetDefault("pool.queue_size", 64)
	v.SetDefault("pool.fail_fast", false)
	v.SetDefault("query.default_limit", 1000)
	v.SetDefault("query.max_limit", 10000)
	v.SetDefault("query.timeout_seconds", 30)
}
