package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	core "github.com/netbench/harness/backends/core"
	"github.com/netbench/harness/backends/ecs"
	"github.com/netbench/harness/benchfile"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	configPath := flag.String("config", "", "HCL harness file (overrides environment)")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	output := flag.String("output", "yaml", "output format (yaml, json)")
	ledgerPath := flag.String("ledger", "netbench-resources.json", "file recording created resources (empty disables)")
	dryRun := flag.Bool("dry-run", false, "print container specs without calling AWS")
	planRole := flag.String("role", "", "with --dry-run, print only this role (server, client)")
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Str("service", "netbench-provision").Logger().
		Level(level)

	format, err := parseFormat(*output)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid flags")
	}

	config := ecs.ConfigFromEnv()
	if *configPath != "" {
		f, err := benchfile.Load(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load harness file")
		}
		f.Apply(&config)
	}
	if err := config.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	if *dryRun {
		specs, err := planFor(config.HarnessRequest(), *planRole)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid harness")
		}
		if err := render(os.Stdout, format, specs); err != nil {
			logger.Fatal().Err(err).Msg("failed to render plan")
		}
		return
	}

	logger.Info().Str("version", version).Str("commit", commit).Str("stack", config.StackName).Msg("provisioning harness")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsClients, err := ecs.NewAWSClients(ctx, config.Region, config.EndpointURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize AWS clients")
	}

	ledger := core.NewResourceRegistry(*ledgerPath)
	if err := ledger.Load(); err != nil {
		logger.Warn().Err(err).Str("path", *ledgerPath).Msg("failed to load resource ledger")
	}

	p := ecs.NewProvisioner(config, awsClients, ledger, logger)
	harness, buildErr := p.ProvisionHarness(ctx, config.HarnessRequest())

	// Partial work is recorded even when the build fails.
	if err := ledger.Save(); err != nil {
		logger.Error().Err(err).Str("path", *ledgerPath).Msg("failed to save resource ledger")
	}
	if buildErr != nil {
		logger.Fatal().Err(buildErr).Int("resources", ledger.Len()).Msg("harness provisioning failed")
	}

	out, err := newHarnessOutput(harness)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build output")
	}
	if err := render(os.Stdout, format, out); err != nil {
		logger.Fatal().Err(err).Msg("failed to render output")
	}
}
