package resources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
	eoderrors "github.com/watchdogpolska/small-eod/internal/platform/errors"
)

// IDField is the column rows are matched on.
const IDField = "id"

// Field is one exported column.
type Field struct {
	Name string
	// Integer fields are written as numbers in JSON and YAML.
	Integer bool
	// Readonly fields are exported but ignored on import.
	Readonly bool
}

// Resource maps one model to dataset rows.
type Resource interface {
	Model() cases.Model
	Fields() []Field
	// ExportRows returns one row per object matching q, in Fields order.
	ExportRows(ctx context.Context, store storage.Store, q storage.ListQuery) ([][]string, error)
	// ImportRow applies row of d. Validation problems are returned as
	// *cases.ValidationError.
	ImportRow(ctx context.Context, store storage.Store, d Dataset, row int) (RowResult, error)
}

// ForModel returns the resource registered for model.
func ForModel(model cases.Model) (Resource, bool) {
	switch model {
	case cases.ModelInstitution:
		return InstitutionResource{}, true
	case cases.ModelTag:
		return TagResource{}, true
	default:
		return nil, false
	}
}

// RowType classifies one imported row.
type RowType string

const (
	RowNew    RowType = "new"
	RowUpdate RowType = "update"
	RowSkip   RowType = "skip"
	RowError  RowType = "error"
)

// RowTypes lists the row types in summary order.
func RowTypes() []RowType {
	return []RowType{RowNew, RowUpdate, RowSkip, RowError}
}

// RowResult is the outcome of one imported row.
type RowResult struct {
	// Number is 1-based over data rows.
	Number     int
	Type       RowType
	ObjectID   int64
	ObjectRepr string
	// Values are the row in Fields order: the stored object for applied
	// rows, the raw input for rows with errors.
	Values []string
	// Errors maps field names to message keys.
	Errors map[string][]string
}

// Result is the outcome of a whole import.
type Result struct {
	Headers []string
	Rows    []RowResult
	DryRun  bool
	// Committed reports whether changes were written.
	Committed bool
}

// HasErrors reports whether any row failed.
func (r Result) HasErrors() bool {
	for _, row := range r.Rows {
		if row.Type == RowError {
			return true
		}
	}
	return false
}

// Totals counts rows per type.
func (r Result) Totals() map[RowType]int {
	totals := make(map[RowType]int, 4)
	for _, row := range r.Rows {
		totals[row.Type]++
	}
	return totals
}

func headers(res Resource) []string {
	fields := res.Fields()
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

func integerFields(res Resource) map[string]bool {
	ints := map[string]bool{}
	for _, f := range res.Fields() {
		if f.Integer {
			ints[f.Name] = true
		}
	}
	return ints
}

// Export writes every object matching q in format f.
func Export(ctx context.Context, w io.Writer, res Resource, store storage.Store, q storage.ListQuery, f Format) error {
	q.Limit = storage.NoLimit
	q.Offset = 0
	rows, err := res.ExportRows(ctx, store, q)
	if err != nil {
		return fmt.Errorf("export %s: %w", res.Model(), err)
	}
	return Encode(w, f, Dataset{Headers: headers(res), Rows: rows}, integerFields(res))
}

var errRowsInvalid = errors.New("import rows invalid")

// Import applies d inside one transaction. A dry run, or any row error,
// rolls everything back; the result still describes every row.
func Import(ctx context.Context, res Resource, store storage.Store, d Dataset, dryRun bool) (Result, error) {
	result := Result{Headers: headers(res), DryRun: dryRun}
	if !d.Has(IDField) {
		return result, eoderrors.Newf(eoderrors.CodeImportInvalidRow, "missing %q column", IDField).WithMetadata("column", IDField)
	}

	err := store.InTx(ctx, dryRun, func(tx storage.Store) error {
		result.Rows = result.Rows[:0]
		for i := range d.Rows {
			rr, err := res.ImportRow(ctx, tx, d, i)
			rr.Number = i + 1
			var verr *cases.ValidationError
			switch {
			case errors.As(err, &verr):
				rr.Type = RowError
				rr.Errors = verr.Fields
				rr.Values = rawValues(res, d, i)
			case err != nil:
				return fmt.Errorf("import row %d: %w", i+1, err)
			}
			result.Rows = append(result.Rows, rr)
		}
		if !dryRun && result.HasErrors() {
			return errRowsInvalid
		}
		return nil
	})
	switch {
	case errors.Is(err, errRowsInvalid):
		return result, nil
	case err != nil:
		return result, err
	}
	result.Committed = !dryRun
	return result, nil
}

func rawValues(res Resource, d Dataset, row int) []string {
	fields := res.Fields()
	values := make([]string, len(fields))
	for i, f := range fields {
		values[i] = d.Value(row, f.Name)
	}
	return values
}

// parseID reads the id column; empty means a new object.
func parseID(d Dataset, row int, errs *cases.ValidationError) int64 {
	value := strings.TrimSpace(d.Value(row, IDField))
	if value == "" {
		return 0
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id < 0 {
		errs.Add(IDField, "error.invalid_number")
		return 0
	}
	return id
}

// splitNames splits a comma-separated list of names.
func splitNames(value string) []string {
	var names []string
	for _, part := range strings.Split(value, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func joinTagNames(tags []cases.Tag) string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return strings.Join(names, ",")
}

func sameTags(a, b []cases.Tag) bool {
	if len(a) != len(b) {
		return false
	}
	ids := make(map[int64]bool, len(a))
	for _, t := range a {
		ids[t.ID] = true
	}
	for _, t := range b {
		if !ids[t.ID] {
			return false
		}
	}
	return true
}
