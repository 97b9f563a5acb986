package main

import (
	"context"

	"github.com/ordermesh/shipby/internal/config"
	"github.com/ordermesh/shipby/internal/ruleset"
	"github.com/ordermesh/shipby/internal/telemetry"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}

	_, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version)
	return shutdown, err
}

func loadRuleset(path string) (*ruleset.Snapshot, error) {
	return ruleset.Load(path)
}

// loadRulesetFromFlag resolves the snapshot path from the --ruleset flag,
// falling back to the RULESET_PATH environment configuration.
func loadRulesetFromFlag() (*ruleset.Snapshot, error) {
	path := rulesetPath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.RulesetPath
	}
	return ruleset.Load(path)
}
