package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL            = "https://api.kiwoom.com"
	DefaultWSURL              = "wss://api.kiwoom.com:10000/api/dostk/websocket"
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultRateLimit          = 4.0 // Kiwoom allows ~5 req/s per app key
	DefaultRateBurst          = 4
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultPingTimeout        = 30 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultSubscribeTimeout   = 10 * time.Second
	DefaultStreamBufferSize   = 10000
	DefaultBatchSize          = 500
	DefaultFlushInterval      = 1 * time.Second
	DefaultWriterBufferSize   = 10000
	DefaultPollInterval       = 5 * time.Minute
	DefaultPollConcurrency    = 4
	DefaultPollTimeout        = 10 * time.Second
	DefaultConfidenceLevel    = 0.95
	DefaultLookbackDays       = 252
	DefaultRiskFreeRate       = 0.03
	DefaultMaxOrderKRW        = 10_000_000
	DefaultMaxPositionKRW     = 50_000_000
	DefaultMaxOpenPositions   = 20
	DefaultCacheTTL           = 5 * time.Second
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = DefaultRateLimit
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = DefaultRateBurst
	}

	// Database defaults
	applyDBDefaults(&c.Database.Timescale)

	// Stream defaults
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.PingTimeout == 0 {
		c.Stream.PingTimeout = DefaultPingTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.SubscribeTimeout == 0 {
		c.Stream.SubscribeTimeout = DefaultSubscribeTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultStreamBufferSize
	}

	// Writers defaults
	if c.Writers.BatchSize == 0 {
		c.Writers.BatchSize = DefaultBatchSize
	}
	if c.Writers.FlushInterval == 0 {
		c.Writers.FlushInterval = DefaultFlushInterval
	}
	if c.Writers.BufferSize == 0 {
		c.Writers.BufferSize = DefaultWriterBufferSize
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = DefaultPollConcurrency
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Risk defaults
	if c.Risk.ConfidenceLevel == 0 {
		c.Risk.ConfidenceLevel = DefaultConfidenceLevel
	}
	if c.Risk.LookbackDays == 0 {
		c.Risk.LookbackDays = DefaultLookbackDays
	}
	if c.Risk.RiskFreeRate == 0 {
		c.Risk.RiskFreeRate = DefaultRiskFreeRate
	}
	if c.Risk.MaxOrderKRW == 0 {
		c.Risk.MaxOrderKRW = DefaultMaxOrderKRW
	}
	if c.Risk.MaxPositionKRW == 0 {
		c.Risk.MaxPositionKRW = DefaultMaxPositionKRW
	}
	if c.Risk.MaxOpenPositions == 0 {
		c.Risk.MaxOpenPositions = DefaultMaxOpenPositions
	}

	// Cache defaults
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
