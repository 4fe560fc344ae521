package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/studiowebux/chatload/internal/logging"
	"github.com/studiowebux/chatload/internal/mock"
)

// MockOptions contains the flags of the mock command
type MockOptions struct {
	ConfigPath  string
	InitPath    string // Write a starter config here and exit
	Host        string
	Port        int
	Delay       time.Duration
	FailureRate float64
	LogLevel    string
	Development bool
	Out         io.Writer
}

// Mock serves the in-memory chat API until the process is interrupted
func Mock(ctx context.Context, opts MockOptions) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.InitPath != "" {
		if err := mock.SaveConfig(mock.DefaultConfig(), opts.InitPath); err != nil {
			return err
		}
		fmt.Fprintf(opts.Out, "Wrote mock config to %s\n", opts.InitPath)
		return nil
	}

	cfg := mock.DefaultConfig()
	if opts.ConfigPath != "" {
		loaded, err := mock.LoadConfig(opts.ConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Port > 0 {
		cfg.Port = opts.Port
	}
	if opts.Delay > 0 {
		cfg.Delay = opts.Delay
	}
	if opts.FailureRate > 0 {
		if opts.FailureRate > 1 {
			return fmt.Errorf("failure rate must be between 0 and 1, got %g", opts.FailureRate)
		}
		cfg.FailureRate = opts.FailureRate
	}

	logger, err := logging.New(opts.LogLevel, opts.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	server := mock.NewServer(cfg, logger)
	if err := server.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down mock chat API", zap.Int("sessions", server.Store().Len()))
	return server.Stop()
}
