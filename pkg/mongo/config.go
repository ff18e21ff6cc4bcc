package mongo

import "time"

// Config represents the configuration for the document store.
type Config struct {
	ConnectionURL   string        `env:"DB_URL,required"`
	Database        string        `env:"DB_NAME" envDefault:"qrmenu"`
	ConnectTimeout  time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"10s"`
	MaxPoolSize     uint64        `env:"DB_MAX_POOL_SIZE" envDefault:"100"`
	MinPoolSize     uint64        `env:"DB_MIN_POOL_SIZE" envDefault:"1"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"300s"`
	RetryAttempts   int           `env:"DB_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval   time.Duration `env:"DB_RETRY_INTERVAL" envDefault:"5s"`
}
