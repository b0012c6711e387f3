// (c) Copyright IBM Corp. 2024

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
	"github.com/spf13/cobra"
)

func newExecCommand(a *app) *cobra.Command {
	var (
		params []string
		inTx   bool
	)

	cmd := &cobra.Command{
		Use:   "exec <statement>",
		Short: "Execute a statement and print the number of affected rows",
		Example: `  dbwrap exec "UPDATE users SET active = false WHERE id = \$1" -p 42
  dbwrap exec --named "DELETE FROM sessions WHERE user_id = @uid" -p uid=42 --tx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), func(ctx context.Context, cfg config, conn dbwrap.Connection) error {
				var n int64

				err := withTransaction(ctx, conn, inTx, dbwrap.TxOptions{}, func(tx dbwrap.Transaction) error {
					c, err := newStatement(conn, tx, cfg, args[0], params)
					if err != nil {
						return err
					}
					defer c.Close()

					n, err = c.ExecuteNonQueryContext(ctx)

					return err
				})
				if err != nil {
					return err
				}

				return writeAffected(a.out, cfg.Output, n)
			})
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "statement parameter as value or name=value, repeatable")
	cmd.Flags().BoolVar(&inTx, "tx", false, "run the statement in a transaction")

	return cmd
}

// withTransaction calls fn within a transaction committed when fn succeeds, or
// with a nil transaction if inTx is false
func withTransaction(ctx context.Context, conn dbwrap.Connection, inTx bool, opts dbwrap.TxOptions, fn func(dbwrap.Transaction) error) error {
	if !inTx {
		return fn(nil)
	}

	tx, err := conn.BeginTxContext(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Close()

	if err := fn(tx); err != nil {
		if rerr := tx.RollbackContext(context.WithoutCancel(ctx)); rerr != nil {
			return errors.Join(err, fmt.Errorf("failed to roll back: %w", rerr))
		}

		return err
	}

	return tx.CommitContext(ctx)
}

// newStatement creates a command for text bound to tx with the parameters
// given on the command line
func newStatement(conn dbwrap.Connection, tx dbwrap.Transaction, cfg config, text string, params []string) (dbwrap.Command, error) {
	cmd, err := conn.CreateCommand()
	if err != nil {
		return nil, err
	}

	cmd.SetText(text)
	cmd.SetTimeout(cfg.Timeout)

	if tx != nil {
		if err := cmd.SetTransaction(tx); err != nil {
			cmd.Close()
			return nil, err
		}
	}

	for _, p := range parseParameters(params) {
		if _, err := cmd.Parameters().Add(p); err != nil {
			cmd.Close()
			return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
	}

	return cmd, nil
}

// parseParameters turns "name=value" arguments into named parameters and any
// other argument into a positional one. A leading backslash escapes a value
// containing '='.
func parseParameters(args []string) []*dbwrap.Parameter {
	params := make([]*dbwrap.Parameter, 0, len(args))
	for _, arg := range args {
		if v, ok := strings.CutPrefix(arg, `\`); ok {
			params = append(params, dbwrap.NewParameter("", v))
			continue
		}

		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			params = append(params, dbwrap.NewParameter("", arg))
			continue
		}

		params = append(params, dbwrap.NewParameter(name, value))
	}

	return params
}
