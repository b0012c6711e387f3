// (c) Copyright IBM Corp. 2024

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type config struct {
	Driver  string        `mapstructure:"driver"`
	DSN     string        `mapstructure:"dsn"`
	Output  string        `mapstructure:"output"`
	Timeout time.Duration `mapstructure:"timeout"`
	Named   bool          `mapstructure:"named"`
	Faults  string        `mapstructure:"faults"`
	Metrics bool          `mapstructure:"metrics"`

	Log struct {
		Level         string        `mapstructure:"level"`
		Operations    bool          `mapstructure:"operations"`
		SlowThreshold time.Duration `mapstructure:"slow_threshold"`
	} `mapstructure:"log"`

	Audit struct {
		Path   string   `mapstructure:"path"`
		Values bool     `mapstructure:"values"`
		Redact []string `mapstructure:"redact"`
	} `mapstructure:"audit"`

	Retry struct {
		MaxTries uint `mapstructure:"max_tries"`
	} `mapstructure:"retry"`
}

func (cfg config) validate() error {
	if cfg.Driver == "" {
		return errors.New("driver is required")
	}

	if cfg.DSN == "" {
		return errors.New("dsn is required")
	}

	switch cfg.Output {
	case outputTable, outputJSON:
	default:
		return fmt.Errorf("unsupported output format %q", cfg.Output)
	}

	return nil
}

// app holds the state shared by the subcommands of a single invocation
type app struct {
	v       *viper.Viper
	cfgFile string
	out     io.Writer
	errOut  io.Writer
}

// flag name to config key
var flagKeys = map[string]string{
	"driver":         "driver",
	"dsn":            "dsn",
	"output":         "output",
	"timeout":        "timeout",
	"named":          "named",
	"faults":         "faults",
	"metrics":        "metrics",
	"log-level":      "log.level",
	"log":            "log.operations",
	"slow-threshold": "log.slow_threshold",
	"audit":          "audit.path",
	"audit-values":   "audit.values",
	"redact":         "audit.redact",
	"retries":        "retry.max_tries",
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{
		v:      viper.New(),
		out:    out,
		errOut: errOut,
	}

	root := &cobra.Command{
		Use:   "dbwrap",
		Short: "Run SQL statements through dbwrap interceptor chains",
		Long: `dbwrap executes SQL statements against a database/sql driver with logging,
auditing, retries, fault injection and metrics implemented as dbwrap interceptors.`,
		SilenceUsage: true,
	}

	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.dbwrap/config.yaml)")
	flags.String("driver", "postgres", "database/sql driver: postgres or pgx")
	flags.String("dsn", "", "data source name")
	flags.StringP("output", "o", outputTable, "output format: table or json")
	flags.Duration("timeout", 0, "statement timeout, 0 for none")
	flags.Bool("named", false, "bind parameters by name instead of position")
	flags.String("faults", "", "YAML fault plan to inject into operations")
	flags.Bool("metrics", false, "print operation metrics in Prometheus text format when done")
	flags.String("log-level", "", "log level: error, warn, info or debug")
	flags.Bool("log", false, "log every intercepted operation")
	flags.Duration("slow-threshold", 0, "log operations slower than this as warnings")
	flags.String("audit", "", "append JSON audit records to this file, - for stderr")
	flags.Bool("audit-values", false, "include parameter values in audit records")
	flags.StringSlice("redact", nil, "redact audited values of parameters whose names contain any of these terms (default key,pass,secret,token)")
	flags.Uint("retries", 0, "maximum attempts of operations failing with transient errors, 0 or 1 disables retries")

	for name, key := range flagKeys {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(newExecCommand(a), newQueryCommand(a))

	return root
}

// config reads the config file, if any, and merges it with the environment and flags
func (a *app) config() (config, error) {
	a.v.SetEnvPrefix("DBWRAP")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(filepath.Join(home, ".dbwrap"))
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg config
	if err := a.v.Unmarshal(&cfg); err != nil {
		return config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, cfg.validate()
}

// run opens a connection built from the current config, passes it to fn and
// closes it afterwards
func (a *app) run(ctx context.Context, fn func(context.Context, config, dbwrap.Connection) error) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}

	env, err := newEnvironment(cfg, a.errOut)
	if err != nil {
		return err
	}
	defer env.Close()

	conn, err := env.factory.CreateConnection()
	if err != nil {
		return err
	}

	if err := conn.OpenContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", conn.DataSource(), err)
	}

	err = fn(ctx, cfg, conn)
	if cerr := conn.CloseContext(context.WithoutCancel(ctx)); cerr != nil {
		env.logger.Warn("failed to close connection: ", cerr)
	}

	if merr := env.writeMetrics(a.errOut); merr != nil {
		env.logger.Warn("failed to write metrics: ", merr)
	}

	return err
}
