// File: reactor/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reactor configuration object with defaults, validation and functional
// options.

package reactor

import (
	"fmt"
	"log"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/control"
)

// SessionDecorator wraps every new session before it is handed to the
// handler factory.
type SessionDecorator func(api.Session) api.Session

// Config holds all reactor tunables.
type Config struct {
	// Name identifies the reactor in logs and probes.
	Name string

	IOThreadCount  int
	SelectInterval time.Duration

	// SoTimeout is the initial per-session idle timeout (0 disables).
	SoTimeout time.Duration
	// ConnectTimeout is the default deadline of outbound connects.
	ConnectTimeout time.Duration
	// ShutdownGracePeriod bounds how long a gracefully closing session may
	// keep flushing buffered output.
	ShutdownGracePeriod time.Duration

	TCPNoDelay     bool
	SoKeepAlive    bool
	SoReuseAddress bool
	SoLinger       time.Duration // negative disables SO_LINGER
	SndBufSize     int
	RcvBufSize     int
	Backlog        int
	MaxEvents      int

	// CPUAffinity pins worker loop i to the i-th allowed CPU.
	CPUAffinity bool

	ExceptionHandler api.ExceptionHandler
	SessionDecorator SessionDecorator

	Logger  *log.Logger
	Metrics *control.MetricsRegistry
	Probes  *control.DebugProbes
	Debug   bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		IOThreadCount:       runtime.NumCPU(),
		SelectInterval:      time.Second,
		ShutdownGracePeriod: 500 * time.Millisecond,
		TCPNoDelay:          true,
		SoReuseAddress:      true,
		SoLinger:            -1,
		Backlog:             128,
		MaxEvents:           256,
	}
}

// Validate checks ranges and fills in unset collaborators.
func (c *Config) Validate() error {
	switch {
	case c.IOThreadCount < 1:
		return fmt.Errorf("%w: io thread count %d", api.ErrInvalidArgument, c.IOThreadCount)
	case c.SelectInterval <= 0:
		return fmt.Errorf("%w: select interval %v", api.ErrInvalidArgument, c.SelectInterval)
	case c.SoTimeout < 0, c.ConnectTimeout < 0, c.ShutdownGracePeriod < 0:
		return fmt.Errorf("%w: negative timeout", api.ErrInvalidArgument)
	case c.Backlog < 0, c.SndBufSize < 0, c.RcvBufSize < 0:
		return fmt.Errorf("%w: negative socket option", api.ErrInvalidArgument)
	}
	if c.Name == "" {
		c.Name = "reactor-" + uuid.NewString()[:8]
	}
	if c.MaxEvents <= 0 {
		c.MaxEvents = 256
	}
	if c.ExceptionHandler == nil {
		c.ExceptionHandler = DefaultExceptionHandler{}
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	if c.Metrics == nil {
		c.Metrics = control.NewMetricsRegistry()
	}
	if c.Probes == nil {
		c.Probes = control.NewDebugProbes()
	}
	return nil
}

// Option mutates a Config.
type Option func(*Config)

// NewConfig applies opts over DefaultConfig and validates the result.
func NewConfig(opts ...Option) (Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithConfig replaces the whole configuration; later options still apply.
func WithConfig(c Config) Option { return func(cfg *Config) { *cfg = c } }

func WithName(name string) Option { return func(c *Config) { c.Name = name } }

func WithIOThreadCount(n int) Option { return func(c *Config) { c.IOThreadCount = n } }

func WithSelectInterval(d time.Duration) Option { return func(c *Config) { c.SelectInterval = d } }

func WithSoTimeout(d time.Duration) Option { return func(c *Config) { c.SoTimeout = d } }

func WithConnectTimeout(d time.Duration) Option { return func(c *Config) { c.ConnectTimeout = d } }

func WithShutdownGracePeriod(d time.Duration) Option {
	return func(c *Config) { c.ShutdownGracePeriod = d }
}

func WithExceptionHandler(h api.ExceptionHandler) Option {
	return func(c *Config) { c.ExceptionHandler = h }
}

func WithSessionDecorator(d SessionDecorator) Option {
	return func(c *Config) { c.SessionDecorator = d }
}

func WithLogger(l *log.Logger) Option { return func(c *Config) { c.Logger = l } }

// WithMetrics shares a registry between reactors.
func WithMetrics(m *control.MetricsRegistry) Option { return func(c *Config) { c.Metrics = m } }

func WithProbes(p *control.DebugProbes) Option { return func(c *Config) { c.Probes = p } }

func WithDebug(on bool) Option { return func(c *Config) { c.Debug = on } }

func WithTCPNoDelay(on bool) Option { return func(c *Config) { c.TCPNoDelay = on } }

func WithSoKeepAlive(on bool) Option { return func(c *Config) { c.SoKeepAlive = on } }

func WithSoReuseAddress(on bool) Option { return func(c *Config) { c.SoReuseAddress = on } }

func WithSoLinger(d time.Duration) Option { return func(c *Config) { c.SoLinger = d } }

func WithSndBufSize(n int) Option { return func(c *Config) { c.SndBufSize = n } }

func WithRcvBufSize(n int) Option { return func(c *Config) { c.RcvBufSize = n } }

func WithBacklog(n int) Option { return func(c *Config) { c.Backlog = n } }

func WithCPUAffinity(on bool) Option { return func(c *Config) { c.CPUAffinity = on } }
