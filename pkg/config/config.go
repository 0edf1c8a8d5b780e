package config

import (
	"time"
)

type DB struct {
	Url string `envconfig:"URL"`
}

type Jwt struct {
	Secret string        `envconfig:"SECRET" required:"true"`
	Expiry time.Duration `envconfig:"EXPIRY" default:"24h"`
}

type Auth struct {
	Strategy string `envconfig:"STRATEGY" default:"jwt"`
	Jwt      *Jwt   `envconfig:"JWT"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

// Payout configures the workflow engine that drives released funds out to
// the payment gateway.
type Payout struct {
	MaxRetries      int           `envconfig:"MAX_RETRIES" default:"3"`
	DispatchTimeout time.Duration `envconfig:"DISPATCH_TIMEOUT" default:"30s"`
	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`
	Workers         int           `envconfig:"WORKERS" default:"4"`
	BatchSize       int           `envconfig:"BATCH_SIZE" default:"20"`
	// AutoApprove skips the manual pending->approved step; production keeps
	// it off so an operator signs off every payout.
	AutoApprove bool `envconfig:"AUTO_APPROVE" default:"false"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"json"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[escrow]"`
}

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000"`
}

type App struct {
	Env       string     `envconfig:"APP_ENV" default:"development"`
	Server    *Server    `envconfig:"SERVER"`
	Log       *Log       `envconfig:"LOG"`
	DB        *DB        `envconfig:"DATABASE"`
	Auth      *Auth      `envconfig:"AUTH"`
	RateLimit *RateLimit `envconfig:"RATE_LIMIT"`
	Payout    *Payout    `envconfig:"PAYOUT"`
}
