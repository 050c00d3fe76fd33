// Package config loads process configuration with viper, watching the
// backing file for changes via fsnotify — the same pairing the teacher
// repo carries in its dependency set (spf13/viper + fsnotify), applied
// here since the teacher's own config package was never checked in.
package config

import "time"

// Config is the top-level process configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	RowStore RowStoreConfig `mapstructure:"rowstore"`
	CSM      CSMConfig      `mapstructure:"csm"`
	Log      LogConfig      `mapstructure:"log"`
	Fanout   FanoutConfig   `mapstructure:"fanout"`
}

// ServerConfig configures the HTTP(S) listener hosting the WebSocket
// upgrade route and the gRPC introspection service.
type ServerConfig struct {
	ListenAddr     string `mapstructure:"listen_addr"`
	GRPCListenAddr string `mapstructure:"grpc_listen_addr"`
	PublicBaseURL  string `mapstructure:"public_base_url"`
}

// RowStoreConfig configures the connection pool and table targeted by
// the storage driver (SD). Field names mirror BigTableDbSettings in
// original_source/autopush-common/src/db/bigtable, translated to the
// row-store-agnostic naming SPEC_FULL.md uses.
type RowStoreConfig struct {
	DSN               string        `mapstructure:"dsn"`
	TableName         string        `mapstructure:"table_name"`
	MaxPoolSize       int           `mapstructure:"max_pool_size"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
	ConnectionTTL     time.Duration `mapstructure:"connection_ttl"`
	MaxIdle           time.Duration `mapstructure:"max_idle"`
}

// CSMConfig configures per-connection client state machine policy.
type CSMConfig struct {
	MsgLimit uint32 `mapstructure:"msg_limit"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}

// FanoutConfig configures the cross-node AMQP fan-out.
type FanoutConfig struct {
	AMQPURL  string `mapstructure:"amqp_url"`
	Exchange string `mapstructure:"exchange"`
	NodeID   string `mapstructure:"node_id"`
}
