package cmd

import (
	"github.com/ethpandaops/querycat/pkg/catalog"
	"github.com/ethpandaops/querycat/pkg/resolver"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// environment is what most commands need: config, catalogs and a resolver
type environment struct {
	cfg      *CLIConfig
	store    *catalog.Store
	resolver *resolver.Resolver
}

// loadEnvironment loads the config file, applies its log level unless the
// flag was given, and loads every catalog
func loadEnvironment(cmd *cobra.Command) (*environment, error) {
	cfg, err := LoadCLIConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, validationErr
	}

	if !cmd.Flags().Changed("log-level") {
		if level, parseErr := logrus.ParseLevel(cfg.Logging); parseErr == nil {
			logger.SetLevel(level)
		}
	}

	store := catalog.NewStore(logger)
	if err := store.Load(cfg.Catalog.Paths); err != nil {
		return nil, err
	}

	res, err := newResolver(cfg.EffectiveDialect())
	if err != nil {
		return nil, err
	}

	return &environment{cfg: cfg, store: store, resolver: res}, nil
}

func newResolver(dialect string) (*resolver.Resolver, error) {
	formatter, err := resolver.FormatterFor(dialect)
	if err != nil {
		return nil, err
	}

	return resolver.New(resolver.WithFormatter(formatter), resolver.WithLogger(logger)), nil
}
