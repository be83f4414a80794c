package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/resbridge/pkg/config"
	"github.com/ajitpratap0/resbridge/pkg/connector"
	"github.com/ajitpratap0/resbridge/pkg/connector/registry"
	"github.com/ajitpratap0/resbridge/pkg/logger"
	"github.com/ajitpratap0/resbridge/pkg/observability"

	// Import all available connectors to register them
	_ "github.com/ajitpratap0/resbridge/pkg/connectors/memory"
	_ "github.com/ajitpratap0/resbridge/pkg/connectors/process"
	_ "github.com/ajitpratap0/resbridge/pkg/connectors/sqlquery"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries the settings shared by every subcommand. Flags bind to viper so
// each one can also be set as RESBRIDGE_<FLAG>.
type app struct {
	v *viper.Viper
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}
	a.v.SetEnvPrefix("RESBRIDGE")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "resbridge",
		Short: "resbridge - typed access to managed resources",
		Long: `resbridge exposes a managed resource (a process, a database, an in-memory
store) as named, typed attributes and notification lists.

A connector is described by a YAML file:

  name: orders
  type: sqlquery
  options:
    driver: pgx
    dsn: ${ORDERS_DSN}
  attributes:
    - id: pending
      options:
        query: SELECT COUNT(*) FROM orders WHERE status = 'new'
        type: int64`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "resbridge.yaml", "Path to the connector configuration file")
	pf.String("log-level", "", "Log level (debug, info, warn, error); overrides the configuration")
	pf.Bool("trace", false, "Export OpenTelemetry spans to stderr")
	pf.Duration("timeout", 0, "Overrides the configured read, write and action timeouts")
	_ = a.v.BindPFlags(pf)

	root.AddCommand(
		versionCommand(),
		typesCommand(),
		a.listCommand(),
		a.readCommand(),
		a.writeCommand(),
		a.invokeCommand(),
		a.watchCommand(),
		a.serveCommand(),
	)
	return root
}

// load reads the connector configuration and applies flag overrides.
func (a *app) load() (*config.BaseConfig, error) {
	cfg, err := config.LoadBaseConfig(a.v.GetString("config"))
	if err != nil {
		return nil, err
	}
	if lvl := a.v.GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if a.v.GetBool("trace") {
		cfg.Tracing.Enabled = true
		cfg.Tracing.ExporterType = "stderr"
	}
	if t := a.v.GetDuration("timeout"); t > 0 {
		cfg.Timeouts.Read = t
		cfg.Timeouts.Write = t
		cfg.Timeouts.Action = t
	}
	return cfg, nil
}

// open builds the configured connector. The returned func closes it and
// flushes logs and spans.
func (a *app) open(ctx context.Context) (*connector.Connector, *config.BaseConfig, func(), error) {
	cfg, err := a.load()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return nil, nil, nil, err
	}
	if err := observability.Initialize(cfg.Tracing); err != nil {
		return nil, nil, nil, err
	}

	c, err := registry.Create(ctx, cfg)
	if err != nil {
		_ = observability.Shutdown(ctx)
		return nil, nil, nil, fmt.Errorf("failed to create connector '%s': %w", cfg.Name, err)
	}

	ctx = context.WithValue(ctx, logger.ConnectorKey, cfg.Name)
	cleanup := func() {
		log := logger.WithContext(ctx)
		if err := c.Close(ctx); err != nil {
			log.Warn("failed to close connector", zap.Error(err))
		}
		if err := observability.Shutdown(ctx); err != nil {
			log.Warn("failed to flush spans", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return c, cfg, cleanup, nil
}
