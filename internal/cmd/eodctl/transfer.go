package eodctl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/resources"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
	"github.com/watchdogpolska/small-eod/internal/platform/timeouts"
	"github.com/watchdogpolska/small-eod/internal/services/admin"
)

func resourceArg(name string) (resources.Resource, error) {
	res, ok := resources.ForModel(cases.Model(strings.ToLower(strings.TrimSpace(name))))
	if !ok {
		return nil, fmt.Errorf("model %q has no import/export resource", name)
	}
	return res, nil
}

func exportCmd(cfg *Config) *cobra.Command {
	var format, out, filter string

	cmd := &cobra.Command{
		Use:   "export <model>",
		Short: "Export institutions or tags to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resourceArg(args[0])
			if err != nil {
				return err
			}
			f, err := resources.ParseFormat(format)
			if err != nil {
				return err
			}
			store, err := admin.OpenCaseStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			var buf bytes.Buffer
			q := storage.ListQuery{Filter: filter, OrderBy: []storage.Order{{Field: "id"}}}
			if err := resources.Export(cmd.Context(), &buf, res, store, q, f); err != nil {
				return fmt.Errorf("export %s: %w", res.Model(), err)
			}
			if out == "" || out == "-" {
				_, err = buf.WriteTo(cmd.OutOrStdout())
				return err
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(resources.FormatCSV), "csv, json or yaml")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&filter, "filter", "", "AIP-160 filter expression")
	return cmd
}

func importCmd(cfg *Config) *cobra.Command {
	var format string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <model> <file>",
		Short: "Import institutions or tags from a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resourceArg(args[0])
			if err != nil {
				return err
			}
			if format == "" {
				format = strings.TrimPrefix(filepath.Ext(args[1]), ".")
			}
			f, err := resources.ParseFormat(format)
			if err != nil {
				return err
			}
			file, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[1], err)
			}
			defer file.Close()
			dataset, err := resources.Decode(file, f)
			if err != nil {
				return err
			}

			store, err := admin.OpenCaseStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.Import)
			defer cancel()
			result, err := resources.Import(ctx, res, store, dataset, dryRun)
			if err != nil {
				return fmt.Errorf("import %s: %w", res.Model(), err)
			}
			printResult(cmd.OutOrStdout(), result)
			if result.HasErrors() {
				return fmt.Errorf("import %s: rows failed validation, nothing was saved", res.Model())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "csv, json or yaml (default from file extension)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate without saving")
	return cmd
}

func printResult(w io.Writer, result resources.Result) {
	for _, row := range result.Rows {
		if row.Type != resources.RowError {
			continue
		}
		fields := make([]string, 0, len(row.Errors))
		for field := range row.Errors {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			fmt.Fprintf(w, "row %d: %s: %s\n", row.Number, field, strings.Join(row.Errors[field], ", "))
		}
	}
	totals := result.Totals()
	parts := make([]string, 0, len(resources.RowTypes()))
	for _, t := range resources.RowTypes() {
		parts = append(parts, fmt.Sprintf("%s=%d", t, totals[t]))
	}
	state := "committed"
	if !result.Committed {
		state = "not committed"
	}
	fmt.Fprintf(w, "%s (%s)\n", strings.Join(parts, " "), state)
}
