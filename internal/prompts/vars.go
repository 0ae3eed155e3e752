package prompts

import (
	"regexp"
	"sort"
	"strings"
)

// Placeholder is one {{VAR:name|key=value}} occurrence in a skill body.
type Placeholder struct {
	Raw     string
	Name    string
	Options map[string]string // default, join
}

// ColumnPrefix marks a placeholder that names a sheet column by title or id,
// as in {{VAR:column:Soil type}}.
const ColumnPrefix = "column:"

// Column returns the column reference of a column placeholder.
func (p Placeholder) Column() (string, bool) {
	ref, ok := strings.CutPrefix(p.Name, ColumnPrefix)
	return strings.TrimSpace(ref), ok
}

// Default returns the placeholder's default option, or "".
func (p Placeholder) Default() string { return p.Options["default"] }

var (
	// {{VAR:name|key=value|key2="quoted value"}} or {{VAR:column:Title or id|...}};
	// group 1 = name, group 2 = options
	varPattern = regexp.MustCompile(`\{\{VAR:([a-zA-Z0-9_\-]+(?::[^|}]+)?)((?:\|[^}]+)?)}}`)
	optPattern = regexp.MustCompile(`\|([^=|]+)=([^|]+)`)
)

// ParsePlaceholders returns all placeholder occurrences in order of appearance.
func ParsePlaceholders(body string) []Placeholder {
	matches := varPattern.FindAllStringSubmatch(body, -1)
	out := make([]Placeholder, 0, len(matches))
	for _, m := range matches {
		out = append(out, Placeholder{Raw: m[0], Name: m[1], Options: parseOptions(m[2])})
	}
	return out
}

// Variables returns the sorted, de-duplicated variable names used by body.
func Variables(body string) []string {
	seen := map[string]bool{}
	names := []string{}
	for _, ph := range ParsePlaceholders(body) {
		if !seen[ph.Name] {
			seen[ph.Name] = true
			names = append(names, ph.Name)
		}
	}
	sort.Strings(names)
	return names
}

func parseOptions(raw string) map[string]string {
	opts := map[string]string{}
	if raw == "" {
		return opts
	}
	for _, seg := range optPattern.FindAllStringSubmatch(raw, -1) {
		key := strings.ToLower(strings.TrimSpace(seg[1]))
		opts[key] = decodeEscapes(unquote(strings.TrimSpace(seg[2])))
	}
	return opts
}

func unquote(val string) string {
	if len(val) >= 2 && (val[0] == '"' && val[len(val)-1] == '"' || val[0] == '\'' && val[len(val)-1] == '\'') {
		return val[1 : len(val)-1]
	}
	return val
}

// decodeEscapes handles \n, \t, \r and \; other escapes are kept verbatim.
func decodeEscapes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	esc := false
	for _, r := range s {
		if !esc {
			if r == '\\' {
				esc = true
				continue
			}
			b.WriteRune(r)
			continue
		}
		switch r {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
		esc = false
	}
	if esc {
		b.WriteByte('\\')
	}
	return b.String()
}
