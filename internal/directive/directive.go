// Package directive parses the //vespera: comment annotations that mark
// routes, schemas, enums, unions and model bridges in the target project.
package directive

import (
	"fmt"
	"go/ast"
	"strings"
)

// Kind identifies which annotation a comment carries.
type Kind int

const (
	KindNone Kind = iota
	KindRoute
	KindSchema
	KindEnum
	KindUnion
	KindModel
)

const prefix = "//vespera:"

// Directive is one parsed //vespera: annotation together with the doc text
// that surrounded it.
type Directive struct {
	Kind Kind
	Args map[string]string

	// Summary and Description come from the plain comment lines around the
	// directive, first line vs the rest.
	Summary     string
	Description string
}

// Parse scans a doc comment group for a vespera annotation. It returns nil
// when the group carries none. Unknown annotation names are ignored rather
// than rejected so the tool can coexist with future versions.
func Parse(doc *ast.CommentGroup) (*Directive, error) {
	if doc == nil {
		return nil, nil
	}

	var d *Directive
	var descLines []string

	for _, comment := range doc.List {
		text := comment.Text
		if strings.HasPrefix(text, prefix) {
			name, rest, _ := strings.Cut(strings.TrimPrefix(text, prefix), " ")
			kind := kindOf(name)
			if kind == KindNone {
				continue
			}
			args, err := parseArgs(rest)
			if err != nil {
				return nil, fmt.Errorf("vespera:%s: %w", name, err)
			}
			d = &Directive{Kind: kind, Args: args}
			continue
		}
		line := strings.TrimSpace(strings.TrimPrefix(text, "//"))
		descLines = append(descLines, line)
	}

	if d == nil {
		return nil, nil
	}
	// Drop trailing blank lines left over from comment formatting.
	for len(descLines) > 0 && descLines[len(descLines)-1] == "" {
		descLines = descLines[:len(descLines)-1]
	}
	if len(descLines) > 0 {
		d.Summary = descLines[0]
		d.Description = strings.Join(descLines, "\n")
	}
	return d, nil
}

// VariantRename looks for a //vespera:rename=<name> annotation on an
// individual enum constant or union field.
func VariantRename(doc *ast.CommentGroup) (string, bool) {
	if doc == nil {
		return "", false
	}
	for _, comment := range doc.List {
		if v, ok := strings.CutPrefix(comment.Text, prefix+"rename="); ok {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// DocText returns the plain comment lines of a group with any vespera
// annotations removed, joined with newlines.
func DocText(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	var lines []string
	for _, comment := range doc.List {
		if strings.HasPrefix(comment.Text, prefix) {
			continue
		}
		line := strings.TrimSpace(strings.TrimPrefix(comment.Text, "//"))
		lines = append(lines, line)
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func kindOf(name string) Kind {
	switch name {
	case "route":
		return KindRoute
	case "schema":
		return KindSchema
	case "enum":
		return KindEnum
	case "union":
		return KindUnion
	case "model":
		return KindModel
	default:
		return KindNone
	}
}

// parseArgs splits "method=get path=/memos tags=a,b" into a key/value map.
// Keys without a value are recorded as empty strings.
func parseArgs(s string) (map[string]string, error) {
	args := make(map[string]string)
	for _, field := range strings.Fields(s) {
		key, val, _ := strings.Cut(field, "=")
		if key == "" {
			return nil, fmt.Errorf("malformed argument %q", field)
		}
		if _, dup := args[key]; dup {
			return nil, fmt.Errorf("duplicate argument %q", key)
		}
		args[key] = val
	}
	return args, nil
}

// List splits a comma-separated argument value, trimming whitespace and
// dropping empty entries.
func List(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
