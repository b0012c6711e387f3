// (c) Copyright IBM Corp. 2024

package main

import (
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func writeAffected(w io.Writer, format string, n int64) error {
	if format == outputJSON {
		return json.NewEncoder(w).Encode(struct {
			RowsAffected int64 `json:"rows_affected"`
		}{n})
	}

	_, err := fmt.Fprintf(w, "%d row(s) affected\n", n)

	return err
}

func writeResultSets(w io.Writer, format string, sets []resultSet) error {
	if format == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(sets)
	}

	for i, set := range sets {
		if i > 0 {
			fmt.Fprintln(w)
		}

		if err := writeTable(w, set); err != nil {
			return err
		}
	}

	return nil
}

func writeTable(w io.Writer, set resultSet) error {
	table := tablewriter.NewWriter(w)
	table.Header(set.Columns)

	for _, row := range set.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}

		if err := table.Append(cells); err != nil {
			return err
		}
	}

	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "(%d rows)\n", len(set.Rows))

	return err
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
