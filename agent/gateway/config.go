package gateway

import (
	"net/http"
	"time"
)

const (
	DefaultBaseURL  = "https://test.lilaclabs.ai/lilac-agent"
	DefaultLocation = "ben-franks"
)

type Config struct {
	APIBaseURL     string        `envconfig:"API_BASE_URL" default:"https://test.lilaclabs.ai/lilac-agent"`
	APIToken       string        `envconfig:"API_TOKEN" required:"true"`
	Location       string        `envconfig:"LOCATION" default:"ben-franks"`
	Timeout        time.Duration `envconfig:"TIMEOUT" default:"30s"`
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3"`
	InitialBackoff time.Duration `envconfig:"INITIAL_BACKOFF" default:"1s"`
	MaxBackoff     time.Duration `envconfig:"MAX_BACKOFF" default:"8s"`
	TurnDelay      time.Duration `envconfig:"TURN_DELAY" default:"1s"`
}

// Policy controls retries and pacing. Zero durations disable waiting.
type Policy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	RetryStatuses  []int
	TurnDelay      time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     8 * time.Second,
		Multiplier:     2,
		RetryStatuses: []int{
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
		TurnDelay: time.Second,
	}
}

// Policy derives the retry policy from the config.
func (c Config) Policy() Policy {
	p := DefaultPolicy()
	if c.MaxRetries >= 0 {
		p.MaxRetries = c.MaxRetries
	}
	p.InitialBackoff = c.InitialBackoff
	if c.MaxBackoff > 0 {
		p.MaxBackoff = c.MaxBackoff
	}
	p.TurnDelay = c.TurnDelay
	return p
}

func (p Policy) retryable(status int) bool {
	for _, s := range p.RetryStatuses {
		if s == status {
			return true
		}
	}
	return false
}
