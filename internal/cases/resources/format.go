// Package resources maps institutions and tags to flat rows for file import
// and export.
package resources

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	eoderrors "github.com/watchdogpolska/small-eod/internal/platform/errors"
	"gopkg.in/yaml.v3"
)

// Format is an import/export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Formats lists the supported formats in menu order.
func Formats() []Format {
	return []Format{FormatCSV, FormatJSON, FormatYAML}
}

// ParseFormat accepts a format name, case-insensitively. "yml" is an alias.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", eoderrors.Newf(eoderrors.CodeImportFormat, "unsupported format %q", value).WithMetadata("format", value)
	}
}

// Ext returns the file extension without a dot.
func (f Format) Ext() string {
	return string(f)
}

// ContentType returns the MIME type used for downloads.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/x-yaml"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Filename names an export file, e.g. "Institution-2024-03-01.csv".
func Filename(modelName string, now time.Time, f Format) string {
	return fmt.Sprintf("%s-%s.%s", modelName, now.Format("2006-01-02"), f.Ext())
}

// Dataset is a header plus string cells, the common shape of every format.
type Dataset struct {
	Headers []string
	Rows    [][]string
}

// Value returns the cell of row under header, or "" when absent.
func (d Dataset) Value(row int, header string) string {
	for i, h := range d.Headers {
		if h == header && i < len(d.Rows[row]) {
			return d.Rows[row][i]
		}
	}
	return ""
}

// Has reports whether the dataset carries header.
func (d Dataset) Has(header string) bool {
	for _, h := range d.Headers {
		if h == header {
			return true
		}
	}
	return false
}

// Encode writes d in format f. ints lists headers written as numbers in
// JSON and YAML.
func Encode(w io.Writer, f Format, d Dataset, ints map[string]bool) error {
	switch f {
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(d.Headers); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		if err := cw.WriteAll(d.Rows); err != nil {
			return fmt.Errorf("write csv rows: %w", err)
		}
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(orderedRecords(d, ints)); err != nil {
			return fmt.Errorf("write json: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(yamlRecords(d, ints)); err != nil {
			return fmt.Errorf("write yaml: %w", err)
		}
		return enc.Close()
	default:
		return eoderrors.Newf(eoderrors.CodeImportFormat, "unsupported format %q", f)
	}
}

// Decode reads a dataset in format f.
func Decode(r io.Reader, f Format) (Dataset, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Dataset{}, fmt.Errorf("read import file: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	switch f {
	case FormatCSV:
		records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
		if err != nil {
			return Dataset{}, eoderrors.Wrap(eoderrors.CodeImportInvalidRow, "parse csv", err)
		}
		if len(records) == 0 {
			return Dataset{}, nil
		}
		headers := make([]string, len(records[0]))
		for i, h := range records[0] {
			headers[i] = strings.TrimSpace(h)
		}
		return Dataset{Headers: headers, Rows: records[1:]}, nil
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var items []map[string]any
		if err := dec.Decode(&items); err != nil {
			return Dataset{}, eoderrors.Wrap(eoderrors.CodeImportInvalidRow, "parse json", err)
		}
		return fromRecords(items), nil
	case FormatYAML:
		var items []map[string]any
		if err := yaml.Unmarshal(raw, &items); err != nil {
			return Dataset{}, eoderrors.Wrap(eoderrors.CodeImportInvalidRow, "parse yaml", err)
		}
		return fromRecords(items), nil
	default:
		return Dataset{}, eoderrors.Newf(eoderrors.CodeImportFormat, "unsupported format %q", f)
	}
}

// fromRecords collects headers in first-seen order.
func fromRecords(items []map[string]any) Dataset {
	var d Dataset
	seen := map[string]bool{}
	for _, item := range items {
		var keys []string
		for k := range item {
			if !seen[k] {
				keys = append(keys, k)
			}
		}
		// Map order is random; keep new headers stable.
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = true
			d.Headers = append(d.Headers, k)
		}
	}
	for _, item := range items {
		row := make([]string, len(d.Headers))
		for i, h := range d.Headers {
			row[i] = cellString(item[h])
		}
		d.Rows = append(d.Rows, row)
	}
	return d
}

func cellString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case []any:
		parts := make([]string, len(v))
		for i, p := range v {
			parts[i] = cellString(p)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}

func typedCell(header, value string, ints map[string]bool) any {
	if ints[header] {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return value
}

// orderedRecords keeps header order in JSON output.
func orderedRecords(d Dataset, ints map[string]bool) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(d.Rows))
	for _, row := range d.Rows {
		var b bytes.Buffer
		b.WriteByte('{')
		for i, h := range d.Headers {
			if i > 0 {
				b.WriteByte(',')
			}
			key, _ := json.Marshal(h)
			val, _ := json.Marshal(typedCell(h, row[i], ints))
			b.Write(key)
			b.WriteByte(':')
			b.Write(val)
		}
		b.WriteByte('}')
		out = append(out, b.Bytes())
	}
	return out
}

// yamlRecords builds mapping nodes so keys keep header order.
func yamlRecords(d Dataset, ints map[string]bool) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, row := range d.Rows {
		m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for i, h := range d.Headers {
			key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: h}
			val := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: row[i]}
			if _, ok := typedCell(h, row[i], ints).(int64); ok {
				val.Tag = "!!int"
			}
			m.Content = append(m.Content, key, val)
		}
		seq.Content = append(seq.Content, m)
	}
	return seq
}
