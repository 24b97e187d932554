// File: cmd/lineecho/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// lineecho runs a listening reactor that echoes text lines.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/momentics/hioload-nio/control"
	"github.com/momentics/hioload-nio/reactor"
)

func main() {
	if err := run(os.Args[1:], os.Getenv); err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "lineecho: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, getenv func(string) string) error {
	cfg, help, err := parseConfig(args, getenv)
	if err != nil || help {
		return err
	}
	r, err := newReactor(cfg, log.New(os.Stderr, "", log.LstdFlags))
	if err != nil {
		return err
	}
	codec, err := cfg.codecOptions()
	if err != nil {
		return err
	}
	addr, err := net.ResolveTCPAddr("tcp", cfg.Listen)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := r.Config().Logger
	done := make(chan error, 1)
	go func() {
		done <- r.Execute(&echoFactory{codec: codec, highWater: cfg.HighWater, log: logger})
	}()

	ep := r.Listen(addr)
	if err := ep.WaitFor(ctx); err != nil {
		r.Shutdown(0)
		<-done
		return err
	}
	logger.Printf("lineecho listening on %v with %d io threads", ep.Address(), cfg.IOThreads)

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}
	logger.Printf("shutting down, grace %v", cfg.Grace)
	r.Shutdown(cfg.Grace)

	joinCtx, cancel := context.WithTimeout(context.Background(), cfg.Grace+5*time.Second)
	defer cancel()
	if err := r.Join(joinCtx); err != nil {
		return err
	}
	st := r.Stats()
	logger.Printf("stopped: %+v", st)
	dumpProbes(logger, r.Probes())
	return <-done
}

func newReactor(cfg config, logger *log.Logger) (*reactor.ListeningReactor, error) {
	policy, err := exceptionPolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	opts := []reactor.Option{
		reactor.WithName("lineecho"),
		reactor.WithIOThreadCount(cfg.IOThreads),
		reactor.WithSoTimeout(cfg.SoTimeout),
		reactor.WithShutdownGracePeriod(cfg.Grace),
		reactor.WithExceptionHandler(policy),
		reactor.WithLogger(logger),
		reactor.WithDebug(cfg.Verbose),
		reactor.WithCPUAffinity(cfg.Affinity),
	}
	if cfg.Verbose {
		opts = append(opts, reactor.WithSessionDecorator(reactor.LoggingDecorator(logger)))
	}
	r, err := reactor.NewListeningReactor(opts...)
	if err != nil {
		return nil, err
	}
	control.RegisterPlatformProbes(r.Probes())
	return r, nil
}

func dumpProbes(logger *log.Logger, p *control.DebugProbes) {
	state := p.DumpState()
	for _, name := range p.Names() {
		logger.Printf("  %s = %v", name, state[name])
	}
}
