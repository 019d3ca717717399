package cmd

import (
	"fmt"

	"jellyfin-migrator/core/config"
	"jellyfin-migrator/core/logger"
	"jellyfin-migrator/feature/paths"

	"go.uber.org/zap"
)

// loadConfig loads and validates the configuration named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", configFile, err)
	}
	return cfg, nil
}

// newLogger builds the application logger and installs it as the global one.
func newLogger(cfg *config.Config, runID string) (*zap.Logger, error) {
	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logg = logger.WithRun(logg, runID)
	zap.ReplaceGlobals(logg)
	return logg, nil
}

// newMapper compiles the rule sets and warns about rules that never match.
func newMapper(cfg *config.Config, logg *zap.Logger) (*paths.Mapper, error) {
	m, err := cfg.Mapper()
	if err != nil {
		return nil, err
	}
	for _, s := range m.PathRules().Shadowed() {
		logg.Warn("path rule can never match",
			zap.Int("rule", s.Index), zap.String("source", s.Rule.Source), zap.Int("covered_by", s.CoveredBy))
	}
	for _, s := range m.FSRules().Shadowed() {
		logg.Warn("filesystem rule can never match",
			zap.Int("rule", s.Index), zap.String("source", s.Rule.Source), zap.Int("covered_by", s.CoveredBy))
	}
	return m, nil
}
