package main

import (
	"errors"
	"testing"
	"time"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/reactor"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestConfigLayering(t *testing.T) {
	getenv := env(map[string]string{
		"LINEECHO_LISTEN":     "0.0.0.0:9000",
		"LINEECHO_IO_THREADS": "3",
		"LINEECHO_SO_TIMEOUT": "2s",
		"LINEECHO_CHARSET":    "ISO-8859-1",
	})
	cfg, help, err := parseConfig([]string{"-t", "5", "--policy", "recover"}, getenv)
	if err != nil || help {
		t.Fatalf("parse: %v help=%v", err, help)
	}
	if cfg.Listen != "0.0.0.0:9000" || cfg.SoTimeout != 2*time.Second || cfg.Charset != "ISO-8859-1" {
		t.Errorf("environment not applied: %+v", cfg)
	}
	if cfg.IOThreads != 5 || cfg.Policy != "recover" {
		t.Errorf("flags must win over environment: %+v", cfg)
	}
}

func TestConfigErrors(t *testing.T) {
	if _, _, err := parseConfig(nil, env(map[string]string{"LINEECHO_GRACE": "soon"})); err == nil {
		t.Error("bad duration accepted")
	}
	if _, _, err := parseConfig([]string{"extra"}, env(nil)); err == nil {
		t.Error("positional argument accepted")
	}
	cfg := defaultConfig()
	cfg.Charset = "UTF-16"
	if _, err := cfg.codecOptions(); !errors.Is(err, api.ErrUnsupportedCharset) {
		t.Errorf("codec options = %v", err)
	}
}

func TestExceptionPolicy(t *testing.T) {
	fatal, _ := exceptionPolicy("fatal")
	if _, ok := fatal.(reactor.DefaultExceptionHandler); !ok {
		t.Errorf("fatal = %T", fatal)
	}
	io, _ := exceptionPolicy("IO")
	if !io.HandleIO(nil) || io.HandleRuntime(nil) {
		t.Error("io policy must only recover I/O errors")
	}
	if _, err := exceptionPolicy("maybe"); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("unknown policy = %v", err)
	}
}
