package config

import "time"

// Config is the root configuration for a trader instance.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	Stream   StreamConfig   `yaml:"stream"`
	Writers  WritersConfig  `yaml:"writers"`
	Poller   PollerConfig   `yaml:"poller"`
	Risk     RiskConfig     `yaml:"risk"`
	Cache    CacheConfig    `yaml:"cache"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// InstanceConfig identifies this trader instance.
type InstanceConfig struct {
	ID        string   `yaml:"id"`
	Account   string   `yaml:"account"`   // Brokerage account number
	Watchlist []string `yaml:"watchlist"` // Stock codes to track (e.g., "005930")
}

// APIConfig holds Kiwoom REST API settings.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	WSURL      string        `yaml:"ws_url"`
	AppKey     string        `yaml:"app_key"`    // OAuth2 client id
	AppSecret  string        `yaml:"app_secret"` // OAuth2 client secret
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RateLimit  float64       `yaml:"rate_limit"` // Requests per second
	RateBurst  int           `yaml:"rate_burst"`
}

// DatabaseConfig holds the TimescaleDB connection for market data and the journal.
type DatabaseConfig struct {
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// StreamConfig holds WebSocket stream manager settings.
type StreamConfig struct {
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	SubscribeTimeout   time.Duration `yaml:"subscribe_timeout"`
	BufferSize         int           `yaml:"buffer_size"`
}

// WritersConfig holds batch writer settings.
type WritersConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// PollerConfig holds candle/quote poller settings.
type PollerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RiskConfig holds risk analyzer and pre-trade limit settings.
type RiskConfig struct {
	ConfidenceLevel  float64 `yaml:"confidence_level"`   // VaR/CVaR confidence (e.g., 0.95)
	LookbackDays     int     `yaml:"lookback_days"`      // History window for analytics
	RiskFreeRate     float64 `yaml:"risk_free_rate"`     // Annualized, for Sharpe/Sortino
	MaxOrderKRW      int64   `yaml:"max_order_krw"`      // Per-order notional limit
	MaxPositionKRW   int64   `yaml:"max_position_krw"`   // Per-symbol exposure limit
	MaxOpenPositions int     `yaml:"max_open_positions"` // Distinct symbols held
}

// CacheConfig holds quote cache settings.
type CacheConfig struct {
	RedisAddr string        `yaml:"redis_addr"` // Empty = in-memory cache
	TTL       time.Duration `yaml:"ttl"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
