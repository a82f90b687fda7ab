package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/enginelink/config"
	"github.com/c360/enginelink/engineclient"
	"github.com/c360/enginelink/metric"
	"github.com/c360/enginelink/pkg/retry"
	"github.com/c360/enginelink/pkg/tlsutil"
	"github.com/c360/enginelink/transport"
)

// appRuntime bundles everything a subcommand needs: config, logger, client,
// and the optional metrics server.
type appRuntime struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *engineclient.Client
	metrics *metric.Server
}

// loadConfig merges the config file (or defaults) with command-line
// overrides.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flagConfig != "" {
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	if flagEndpoint != "" {
		cfg.Engine.Endpoint = flagEndpoint
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.Logging.Format = flagLogFormat
	}
	if flagMetrics {
		cfg.Metrics.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveToken picks the credential: flag first, then the OS keyring, then
// config/environment.
func resolveToken(cfg *config.Config, logger *slog.Logger) string {
	if flagToken != "" {
		return flagToken
	}
	if token, err := storedToken(); err == nil && token != "" {
		logger.Debug("using credential from keyring")
		return token
	}
	return cfg.ResolveAuthToken()
}

// newRuntime builds the client stack for one command invocation.
func newRuntime() (*appRuntime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)

	opts := []engineclient.Option{
		engineclient.WithLogger(logger),
		engineclient.WithCommandTimeout(cfg.Engine.CommandTimeout),
		engineclient.WithHandshakeTimeout(cfg.Engine.HandshakeTimeout),
	}

	tlsConfig, err := tlsutil.Load(cfg.Engine.TLS)
	if err != nil {
		return nil, err
	}
	dialRetry := retry.Config{
		MaxAttempts:  cfg.Engine.Dial.MaxAttempts,
		InitialDelay: cfg.Engine.Dial.InitialDelay,
		MaxDelay:     cfg.Engine.Dial.MaxDelay,
		Multiplier:   1.5,
		AddJitter:    true,
	}
	opts = append(opts, engineclient.WithChannelFactory(func() transport.Channel {
		channelOpts := []transport.Option{
			transport.WithLogger(logger),
			transport.WithRetry(dialRetry),
		}
		if tlsConfig != nil {
			channelOpts = append(channelOpts, transport.WithTLSConfig(tlsConfig))
		}
		return transport.NewWebSocketChannel(channelOpts...)
	}))

	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		registry := metric.NewRegistry()
		opts = append(opts, engineclient.WithMetrics(registry, "engine"))
		metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		if err := metricsServer.Start(); err != nil {
			return nil, fmt.Errorf("start metrics server: %w", err)
		}
		logger.Info("metrics server listening", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
	}

	client, err := engineclient.NewClient(cfg.Engine.Endpoint, resolveToken(cfg, logger), opts...)
	if err != nil {
		if metricsServer != nil {
			stopMetrics(metricsServer)
		}
		return nil, err
	}

	return &appRuntime{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		metrics: metricsServer,
	}, nil
}

func (rt *appRuntime) close() {
	rt.client.Cleanup()
	if rt.metrics != nil {
		stopMetrics(rt.metrics)
	}
}

func stopMetrics(server *metric.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = server.Stop(ctx)
}
