package format

import (
	"encoding/json"
	"fmt"
	"html/template"
	"slices"
	"strings"
)

var hiddenFields = map[string]bool{"pilots": true, "created": true, "edited": true}

var leadingFields = []string{"id", "courseId", "studentId", "date", "title", "name"}

type row struct {
	Label string
	Value string
}

type table struct {
	Headers []string
	Rows    [][]string
}

type view struct {
	Title      string
	Summary    []row
	Details    []row
	Table      *table
	Paragraphs []string
}

type downloadView struct {
	Title string
	File  string
}

// buildView turns data into a presentation model. Objects render as
// label/value rows, arrays of objects as a table, and {count, results}
// envelopes as a count line plus a table.
func buildView(title string, data any) (view, error) {
	v := view{Title: title}
	if p, ok := data.(Paragraphs); ok {
		v.Paragraphs = p
		return v, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return v, fmt.Errorf("render html: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return v, fmt.Errorf("render html: %w", err)
	}
	switch t := generic.(type) {
	case map[string]any:
		if results, ok := t["results"].([]any); ok {
			if count, ok := t["count"]; ok {
				v.Summary = append(v.Summary, row{Label: "count", Value: cell(count)})
			}
			v.Table = tableOf(results)
			return v, nil
		}
		for _, k := range orderedKeys(t) {
			v.Details = append(v.Details, row{Label: k, Value: cell(t[k])})
		}
	case []any:
		v.Table = tableOf(t)
	default:
		v.Details = []row{{Label: "value", Value: cell(t)}}
	}
	return v, nil
}

func tableOf(items []any) *table {
	t := &table{}
	if len(items) == 0 {
		return t
	}
	first, ok := items[0].(map[string]any)
	if !ok {
		t.Headers = []string{"value"}
		for _, it := range items {
			t.Rows = append(t.Rows, []string{cell(it)})
		}
		return t
	}
	t.Headers = orderedKeys(first)
	for _, it := range items {
		m, _ := it.(map[string]any)
		r := make([]string, len(t.Headers))
		for i, h := range t.Headers {
			r[i] = cell(m[h])
		}
		t.Rows = append(t.Rows, r)
	}
	return t
}

func orderedKeys(m map[string]any) []string {
	var lead, rest []string
	for _, k := range leadingFields {
		if _, ok := m[k]; ok {
			lead = append(lead, k)
		}
	}
	for k := range m {
		if !hiddenFields[k] && !slices.Contains(leadingFields, k) {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(lead, rest...)
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", t), "0"), ".")
	case map[string]any, []any:
		raw, _ := json.Marshal(t)
		return string(raw)
	default:
		return fmt.Sprint(t)
	}
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { width: 100%; border-collapse: collapse; }
th, td { border: 1px solid black; padding: 8px; text-align: left; }
th { background-color: #f2f2f2; font-weight: bold; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{range .Summary}}<p class="{{.Label}}">{{.Label}}: {{.Value}}</p>
{{end}}{{if .Details}}<table>
{{range .Details}}<tr><th>{{.Label}}</th><td>{{.Value}}</td></tr>
{{end}}</table>
{{end}}{{with .Table}}<table>
<tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</table>
{{end}}{{range .Paragraphs}}<p>{{.}}</p>
{{end}}</body>
</html>
`))

var downloadTemplate = template.Must(template.New("download").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Your {{.Title}} Data</title>
</head>
<body>
<h1>Your {{.Title}} Data</h1>
<p><a href="/download_file?file={{.File}}" download>Download {{.File}}</a></p>
</body>
</html>
`))
