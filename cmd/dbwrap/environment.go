// (c) Copyright IBM Corp. 2024

package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
	"github.com/mxProject/AdoNetHelper-sub000/interceptors"
	"github.com/mxProject/AdoNetHelper-sub000/logger"
	"github.com/mxProject/AdoNetHelper-sub000/sqlprovider"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// environment is the factory configured for an invocation along with the
// resources its interceptors hold
type environment struct {
	factory  *dbwrap.Factory
	logger   *logger.Logger
	registry *prometheus.Registry
	closers  []io.Closer
}

// newEnvironment registers the interceptors enabled by cfg, outermost first:
// logging, metrics, audit, retry and fault injection. Faults are innermost so
// that injected transient errors are retried, counted and logged like real ones.
func newEnvironment(cfg config, errOut io.Writer) (*environment, error) {
	l := logger.New(log.New(errOut, "", log.LstdFlags))
	if cfg.Log.Level != "" {
		lvl, ok := logger.ParseLevel(cfg.Log.Level)
		if !ok {
			return nil, fmt.Errorf("unknown log level %q", cfg.Log.Level)
		}

		l.SetLevel(lvl)
	} else if cfg.Log.Operations {
		l.SetLevel(logger.DebugLevel)
	}

	env := &environment{logger: l}

	opts := []dbwrap.Option{dbwrap.WithLogger(l)}

	if cfg.Log.Operations || cfg.Log.SlowThreshold > 0 {
		var logOpts []interceptors.LoggingOption
		if cfg.Log.SlowThreshold > 0 {
			logOpts = append(logOpts, interceptors.WithSlowThreshold(cfg.Log.SlowThreshold))
		}

		opts = append(opts, interceptors.NewLogging(l, logOpts...).Options()...)
	}

	if cfg.Metrics {
		m := interceptors.NewMetrics("dbwrap")

		env.registry = prometheus.NewRegistry()
		if err := env.registry.Register(m); err != nil {
			return nil, err
		}

		opts = append(opts, m.Options()...)
	}

	if cfg.Audit.Path != "" {
		w, err := env.auditWriter(cfg.Audit.Path)
		if err != nil {
			env.Close()
			return nil, err
		}

		auditOpts := []interceptors.AuditOption{interceptors.WithAuditLogger(l)}
		if cfg.Audit.Values {
			auditOpts = append(auditOpts, interceptors.WithParameterValues())
		}

		if len(cfg.Audit.Redact) > 0 {
			m, err := interceptors.NamedMatcher(interceptors.MatchContainsIgnoreCase, cfg.Audit.Redact)
			if err != nil {
				env.Close()
				return nil, err
			}

			auditOpts = append(auditOpts, interceptors.WithSecretsMatcher(m))
		}

		opts = append(opts, interceptors.NewAudit(w, auditOpts...).Options()...)
	}

	if cfg.Retry.MaxTries > 1 {
		opts = append(opts, interceptors.NewRetry(
			interceptors.WithMaxTries(cfg.Retry.MaxTries),
			interceptors.WithRetryLogger(l),
		).Options()...)
	}

	if cfg.Faults != "" {
		plan, err := interceptors.LoadFaultPlan(cfg.Faults)
		if err != nil {
			env.Close()
			return nil, err
		}

		opts = append(opts, interceptors.NewFaultInjector(plan).Options()...)
	}

	// drivers such as lib/pq return text columns as []byte
	opts = append(opts, interceptors.NewTransform().Values(interceptors.BytesAsStrings).Options()...)

	providerOpts := []sqlprovider.Option{sqlprovider.WithLogger(l)}
	if cfg.Named {
		providerOpts = append(providerOpts, sqlprovider.WithNamedParameters())
	}

	f, err := dbwrap.NewFactory(sqlprovider.Builder(cfg.Driver, cfg.DSN, providerOpts...), opts...)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.factory = f

	return env, nil
}

func (env *environment) auditWriter(path string) (io.Writer, error) {
	if path == "-" {
		return os.Stderr, nil
	}

	fd, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	env.closers = append(env.closers, fd)

	return fd, nil
}

// writeMetrics prints the collected metrics if they are enabled
func (env *environment) writeMetrics(w io.Writer) error {
	if env.registry == nil {
		return nil
	}

	families, err := env.registry.Gather()
	if err != nil {
		return err
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}

	return nil
}

func (env *environment) Close() error {
	var errs []error
	for _, c := range env.closers {
		errs = append(errs, c.Close())
	}

	return errors.Join(errs...)
}
