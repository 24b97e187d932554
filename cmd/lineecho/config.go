// File: cmd/lineecho/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Settings are layered as defaults, then LINEECHO_* environment, then flags.

package main

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/reactor"
	"github.com/momentics/hioload-nio/sessionbuf"
)

const envPrefix = "LINEECHO_"

type config struct {
	Listen    string
	IOThreads int
	SoTimeout time.Duration
	Grace     time.Duration
	Charset   string
	Coding    string
	Policy    string
	MaxLine   int
	HighWater int
	Affinity  bool
	Verbose   bool
}

func defaultConfig() config {
	return config{
		Listen:    "127.0.0.1:7007",
		IOThreads: runtime.NumCPU(),
		Grace:     time.Second,
		Charset:   "UTF-8",
		Coding:    "replace",
		Policy:    "io",
		MaxLine:   8192,
		HighWater: 64 << 10,
	}
}

// loadEnv overrides c from LINEECHO_* variables.
func (c *config) loadEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}
	str("LISTEN", &c.Listen)
	str("CHARSET", &c.Charset)
	str("CODING", &c.Coding)
	str("POLICY", &c.Policy)

	for key, dst := range map[string]*int{"IO_THREADS": &c.IOThreads, "MAX_LINE": &c.MaxLine, "HIGH_WATER": &c.HighWater} {
		if v := getenv(envPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
			*dst = n
		}
	}
	for key, dst := range map[string]*time.Duration{"SO_TIMEOUT": &c.SoTimeout, "GRACE": &c.Grace} {
		if v := getenv(envPrefix + key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
			*dst = d
		}
	}
	if v := getenv(envPrefix + "VERBOSE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sVERBOSE: %w", envPrefix, err)
		}
		c.Verbose = b
	}
	return nil
}

// parseConfig builds the effective configuration. help is true when usage
// was requested.
func parseConfig(args []string, getenv func(string) string) (cfg config, help bool, err error) {
	cfg = defaultConfig()
	if err = cfg.loadEnv(getenv); err != nil {
		return cfg, false, err
	}

	fs := flag.NewFlagSet("lineecho", flag.ContinueOnError)
	fs.StringVarP(&cfg.Listen, "listen", "l", cfg.Listen, "Address to listen on")
	fs.IntVarP(&cfg.IOThreads, "io-threads", "t", cfg.IOThreads, "Number of worker event loops")
	fs.DurationVar(&cfg.SoTimeout, "so-timeout", cfg.SoTimeout, "Idle session timeout (0 disables)")
	fs.DurationVar(&cfg.Grace, "grace", cfg.Grace, "Graceful shutdown period")
	fs.StringVar(&cfg.Charset, "charset", cfg.Charset, "Line charset (IANA name)")
	fs.StringVar(&cfg.Coding, "coding", cfg.Coding, "Malformed input action: report, ignore or replace")
	fs.StringVar(&cfg.Policy, "policy", cfg.Policy, "Exception policy: fatal, io or recover")
	fs.IntVar(&cfg.MaxLine, "max-line", cfg.MaxLine, "Maximum line length in bytes (0 unlimited)")
	fs.IntVar(&cfg.HighWater, "high-water", cfg.HighWater, "Per-session output high-water mark")
	fs.BoolVar(&cfg.Affinity, "cpu-affinity", cfg.Affinity, "Pin worker loops to CPUs")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Log session I/O and reactor debug output")
	fs.BoolVarP(&help, "help", "h", false, "Show this help")

	if err = fs.Parse(args); err != nil {
		return cfg, false, err
	}
	if help {
		fs.PrintDefaults()
		return cfg, true, nil
	}
	if fs.NArg() > 0 {
		return cfg, false, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return cfg, false, nil
}

// exceptionPolicy maps the --policy value to an exception handler.
func exceptionPolicy(name string) (api.ExceptionHandler, error) {
	switch strings.ToLower(name) {
	case "fatal":
		return reactor.DefaultExceptionHandler{}, nil
	case "io":
		return reactor.ExceptionPolicy{IO: func(error) bool { return true }}, nil
	case "recover":
		return reactor.Recoverable, nil
	}
	return nil, fmt.Errorf("%w: policy %q", api.ErrInvalidArgument, name)
}

// codecOptions resolves the charset and coding action for session buffers.
func (c config) codecOptions() ([]sessionbuf.Option, error) {
	cs, err := sessionbuf.CharsetByName(c.Charset)
	if err != nil {
		return nil, err
	}
	action, err := sessionbuf.ParseCodingErrorAction(c.Coding)
	if err != nil {
		return nil, err
	}
	return []sessionbuf.Option{
		sessionbuf.WithCharset(cs),
		sessionbuf.WithCodingErrorAction(action),
		sessionbuf.WithMaxLineLength(c.MaxLine),
	}, nil
}
