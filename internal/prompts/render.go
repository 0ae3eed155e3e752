package prompts

import (
	"strings"
)

// Render substitutes every {{VAR:...}} placeholder in body. A variable missing
// from vars, or present but empty, falls back to the placeholder's default.
// Render performs no I/O, so identical inputs always yield identical output.
func Render(body string, vars map[string]string) string {
	return RenderFunc(body, func(name string) string { return vars[name] })
}

// RenderFunc is Render with the values supplied by resolve. resolve must be
// pure for the output to stay deterministic.
func RenderFunc(body string, resolve func(name string) string) string {
	matches := varPattern.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return body
	}

	var b strings.Builder
	b.Grow(len(body))
	last := 0
	for _, m := range matches {
		// [fullStart, fullEnd, nameStart, nameEnd, optsStart, optsEnd]
		b.WriteString(body[last:m[0]])

		name := body[m[2]:m[3]]
		opts := map[string]string{}
		if m[4] != -1 && m[5] > m[4] {
			opts = parseOptions(body[m[4]:m[5]])
		}

		val := resolve(name)
		if strings.TrimSpace(val) == "" {
			val = opts["default"]
		} else if sep, ok := opts["join"]; ok {
			val = strings.Join(nonEmptyLines(val), sep)
		}
		b.WriteString(val)
		last = m[1]
	}
	b.WriteString(body[last:])
	return collapseBlankLines(b.String())
}

func nonEmptyLines(s string) []string {
	out := []string{}
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// collapseBlankLines squeezes runs of empty lines left behind by empty
// variables down to a single blank line and trims the result.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
