package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

func defaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.grpc_listen_addr", ":9090")
	v.SetDefault("server.public_base_url", "https://push.example.com")
	v.SetDefault("rowstore.table_name", "push_notifications")
	v.SetDefault("rowstore.max_pool_size", 10)
	v.SetDefault("rowstore.connection_timeout", 5*time.Second)
	v.SetDefault("csm.msg_limit", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("fanout.exchange", "push.notifications")
}

// Load reads configuration from the defaults above, the file at path (if
// non-empty), and environment variables prefixed PUSH_CONNECT_, in
// increasing priority.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("push_connect")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// Watch reloads the config whenever the backing file changes and invokes
// onChange with the new value. It returns once viper's file watcher is
// started; the watcher runs for the life of the process and cannot be
// stopped.
func Watch(path string, logger *slog.Logger, onChange func(*Config)) {
	if path == "" {
		return
	}
	v := viper.New()
	defaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		logger.Error("config watch: initial read failed", slog.Any("err", err))
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			logger.Error("config watch: reload failed", slog.Any("err", err))
			return
		}
		logger.Info("config reloaded", slog.String("path", e.Name))
		onChange(&cfg)
	})
	v.WatchConfig()
}
