// (c) Copyright IBM Corp. 2024

package main

import (
	"context"

	dbwrap "github.com/mxProject/AdoNetHelper-sub000"
	"github.com/spf13/cobra"
)

func newQueryCommand(a *app) *cobra.Command {
	var (
		params []string
		first  bool
		inTx   bool
	)

	cmd := &cobra.Command{
		Use:   "query <statement>",
		Short: "Run a query and print its result sets",
		Example: `  dbwrap query "SELECT id, name FROM users WHERE created_at > \$1" -p 2024-01-01
  dbwrap query -o json "SELECT * FROM orders; SELECT * FROM refunds"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			behavior := dbwrap.BehaviorDefault
			if first {
				behavior |= dbwrap.BehaviorSingleResult
			}

			return a.run(cmd.Context(), func(ctx context.Context, cfg config, conn dbwrap.Connection) error {
				return withTransaction(ctx, conn, inTx, dbwrap.TxOptions{ReadOnly: true}, func(tx dbwrap.Transaction) error {
					c, err := newStatement(conn, tx, cfg, args[0], params)
					if err != nil {
						return err
					}
					defer c.Close()

					cur, err := c.ExecuteCursorContext(ctx, behavior)
					if err != nil {
						return err
					}
					defer cur.Close()

					sets, err := readResultSets(ctx, cur)
					if err != nil {
						return err
					}

					return writeResultSets(a.out, cfg.Output, sets)
				})
			})
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "statement parameter as value or name=value, repeatable")
	cmd.Flags().BoolVar(&first, "first", false, "only read the first result set")
	cmd.Flags().BoolVar(&inTx, "tx", false, "run the query in a read-only transaction")

	return cmd
}

// resultSet is a fully read result set
type resultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func readResultSets(ctx context.Context, cur dbwrap.Cursor) ([]resultSet, error) {
	var sets []resultSet

	for {
		set, err := readResultSet(ctx, cur)
		if err != nil {
			return nil, err
		}

		sets = append(sets, set)

		more, err := cur.NextResultSetContext(ctx)
		if err != nil {
			return nil, err
		}

		if !more {
			return sets, nil
		}
	}
}

func readResultSet(ctx context.Context, cur dbwrap.Cursor) (resultSet, error) {
	set := resultSet{
		Columns: cur.Columns(),
		Rows:    [][]any{},
	}

	for {
		ok, err := cur.NextContext(ctx)
		if err != nil {
			return resultSet{}, err
		}

		if !ok {
			return set, nil
		}

		row := make([]any, cur.FieldCount())
		for i := range row {
			if row[i], err = cur.Value(i); err != nil {
				return resultSet{}, err
			}
		}

		set.Rows = append(set.Rows, row)
	}
}
