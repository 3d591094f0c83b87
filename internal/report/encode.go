package report

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is an output encoding for reports.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat accepts md/markdown, json and yaml/yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q (use md, json or yaml)", s)
}

// Ext returns the file extension for f, including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatYAML:
		return ".yaml"
	}
	return ".md"
}

// Render encodes the report in format f. opt only affects Markdown; the
// structured encodings carry full precision.
func (r *Report) Render(f Format, opt RenderOptions) ([]byte, error) {
	switch f {
	case FormatMarkdown, "":
		return []byte(r.Markdown(opt)), nil
	case FormatJSON:
		return r.JSON()
	case FormatYAML:
		return r.YAML()
	}
	return nil, fmt.Errorf("unknown format %q", f)
}

// YAML encodes the report with yaml.v3. Non-finite values use YAML's .inf and .nan.
func (r *Report) YAML() ([]byte, error) {
	b, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	return b, nil
}

// JSON encodes the report as indented JSON. encoding/json rejects NaN and
// ±Inf, which a perfect fit or an undefined p-value can produce, so those are
// written as the strings "NaN", "+Inf" and "-Inf".
func (r *Report) JSON() ([]byte, error) {
	doc, err := r.tree()
	if err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return b, nil
}

// tree converts the report into generic maps and slices through its YAML
// form, which shares field names with the JSON tags.
func (r *Report) tree() (any, error) {
	b, err := r.YAML()
	if err != nil {
		return nil, err
	}
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return finiteOnly(doc), nil
}

func finiteOnly(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = finiteOnly(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = finiteOnly(e)
		}
		return x
	case float64:
		switch {
		case math.IsNaN(x):
			return "NaN"
		case math.IsInf(x, 1):
			return "+Inf"
		case math.IsInf(x, -1):
			return "-Inf"
		}
	}
	return v
}
