// Package formatting renders command output as JSON, YAML or a table.
package formatting

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	textutil "github.com/cmarkh/audible-api/pkg/strings"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatTable OutputFormat = "table"
)

// maxCellWidth truncates long table values.
const maxCellWidth = 100

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatTable:
		return f, nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format %q: must be one of json, yaml, table", s)
	}
}

// Write renders data to w in the given format. data may be any JSON-encodable
// value, including a json.RawMessage straight from the API.
func Write(w io.Writer, format OutputFormat, data any) error {
	switch format {
	case FormatJSON, "":
		_, err := fmt.Fprintln(w, PrettyJSON(data))
		return err
	case FormatYAML:
		generic, err := toGeneric(data)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("failed to format YAML: %w", err)
		}
		return enc.Close()
	case FormatTable:
		generic, err := toGeneric(data)
		if err != nil {
			return err
		}
		return writeTable(w, generic)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// PrettyJSON formats any value as indented JSON for human-readable display.
// A json.RawMessage is re-indented; marshal errors fall back to %v.
func PrettyJSON(v any) string {
	if raw, ok := v.(json.RawMessage); ok {
		var generic any
		if err := json.Unmarshal(raw, &generic); err == nil {
			v = generic
		}
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// toGeneric round-trips data through JSON so YAML and table output see the
// same field names as JSON output.
func toGeneric(data any) (any, error) {
	raw, ok := data.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode output: %w", err)
		}
		raw = b
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to decode output: %w", err)
	}
	return generic, nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	style := table.StyleRounded
	style.Format.Footer = text.FormatDefault
	t.SetStyle(style)
	return t
}

func writeTable(w io.Writer, data any) error {
	switch v := data.(type) {
	case map[string]any:
		return writeObjectTable(w, v)
	case []any:
		return writeArrayTable(w, v)
	default:
		_, err := fmt.Fprintln(w, cell(v))
		return err
	}
}

func writeObjectTable(w io.Writer, data map[string]any) error {
	t := newTable(w)
	t.AppendHeader(table.Row{text.FgHiCyan.Sprint("KEY"), text.FgHiCyan.Sprint("VALUE")})

	for _, key := range sortedKeys(data) {
		t.AppendRow(table.Row{text.FgHiCyan.Sprint(key), cell(data[key])})
	}

	t.Render()
	return nil
}

// writeArrayTable renders a list of objects with one column per key seen.
func writeArrayTable(w io.Writer, data []any) error {
	if len(data) == 0 {
		_, err := fmt.Fprintln(w, text.FgYellow.Sprint("No items found"))
		return err
	}

	columns := map[string]any{}
	for _, item := range data {
		obj, ok := item.(map[string]any)
		if !ok {
			columns = nil
			break
		}
		for k := range obj {
			columns[k] = nil
		}
	}

	t := newTable(w)
	if columns == nil {
		for i, item := range data {
			t.AppendRow(table.Row{i + 1, cell(item)})
		}
	} else {
		keys := sortedKeys(columns)
		header := make(table.Row, len(keys))
		for i, k := range keys {
			header[i] = text.FgHiCyan.Sprint(strings.ToUpper(k))
		}
		t.AppendHeader(header)
		for _, item := range data {
			obj := item.(map[string]any)
			row := make(table.Row, len(keys))
			for i, k := range keys {
				row[i] = cell(obj[k])
			}
			t.AppendRow(row)
		}
	}
	t.AppendFooter(table.Row{text.FgHiBlue.Sprintf("Total: %d", len(data))})
	t.Render()
	return nil
}

func cell(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		s = ""
	case string:
		s = val
	case map[string]any, []any:
		b, _ := json.Marshal(val)
		s = string(b)
	default:
		s = fmt.Sprintf("%v", val)
	}
	return textutil.Truncate(s, maxCellWidth)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
