// Package cmd provides CLI commands for the meetsync tool.
package cmd

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/otherjamesbrown/meetsync/config"
	"github.com/otherjamesbrown/meetsync/credentials"
	"github.com/otherjamesbrown/meetsync/pkg/archive"
	"github.com/otherjamesbrown/meetsync/pkg/events"
	"github.com/otherjamesbrown/meetsync/pkg/logging"
	"github.com/otherjamesbrown/meetsync/pkg/pipeline"
	"github.com/otherjamesbrown/meetsync/pkg/state"
	"github.com/otherjamesbrown/meetsync/pkg/upstream"
)

// newLogger builds the logger described by the config.
func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(&logging.Config{
		Level:      logging.Level(cfg.LogLevel),
		JSONFormat: cfg.LogJSON,
	})
}

// newUpstreamClient builds the authenticated fetch client from config,
// loading the client secret from the keyring.
func newUpstreamClient(cfg *config.Config, logger logging.Logger) (*upstream.Client, error) {
	secret, err := credentials.LoadSecret(cfg.Upstream.ClientID)
	if err != nil {
		return nil, fmt.Errorf("loading client secret (run 'meetsync auth login'): %w", err)
	}

	tokens := credentials.NewManager(credentials.ManagerConfig{
		AuthURL:      cfg.Upstream.AuthURL,
		AccountID:    cfg.Upstream.AccountID,
		ClientID:     cfg.Upstream.ClientID,
		ClientSecret: secret,
	})

	return upstream.NewClient(upstream.ClientOptions{
		BaseURL:       cfg.Upstream.BaseURL,
		PageSize:      cfg.Upstream.PageSize,
		MaxWindowSpan: time.Duration(cfg.Upstream.MaxWindowDays) * 24 * time.Hour,
		PageDelay:     cfg.Upstream.PageDelay,
		Retry:         upstream.DefaultRetryPolicy(),
	}, tokens, logger), nil
}

// newStateStore builds the run-state store from config.
func newStateStore(cfg *config.Config, logger logging.Logger) *state.Store {
	return state.NewStore(cfg.StatePath, time.Duration(cfg.LookbackDays)*24*time.Hour, logger)
}

// buildPipeline wires the full ingestion stack from config: token manager,
// upstream client, archive writer, state store, and optional event publisher.
// The returned cleanup closes the publisher connection.
func buildPipeline(cfg *config.Config, logger logging.Logger) (*pipeline.Pipeline, *state.Store, func(), error) {
	client, err := newUpstreamClient(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	store := newStateStore(cfg, logger)
	if err := store.Load(); err != nil {
		return nil, nil, nil, fmt.Errorf("loading state: %w", err)
	}

	writer := archive.NewWriter(cfg.OutputDir, logger)

	pub, err := events.NewPublisherFromConfig(events.PublisherConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting event publisher: %w", err)
	}

	metrics := pipeline.NewMetrics()
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, nil, nil, fmt.Errorf("registering metrics: %w", err)
	}

	p := pipeline.New(pipeline.Options{
		UserID:             cfg.Upstream.UserID,
		ExtractActionItems: cfg.ExtractActionItems,
		MaxPerRun:          cfg.MaxPerRun,
		Concurrency:        cfg.Concurrency,
	}, client, writer, store, pub, metrics, logger)

	cleanup := func() {
		if err := pub.Close(); err != nil {
			logger.Warn("closing event publisher", logging.Err(err))
		}
	}
	return p, store, cleanup, nil
}
