// Package pkglist parses package list files.
//
// A list holds one entry per line with the grammar
//
//	[source:]name[|condition]
//
// Blank lines and lines starting with '#' are skipped. A comment of the exact
// form "# --- Name ---" starts a section that labels every following entry.
// Malformed lines never abort parsing: they are reported as SyntaxError
// values and left out of the entries.
package pkglist

import (
	"fmt"
	"regexp"
	"strings"
)

// SourceKind says which package manager family an entry targets.
type SourceKind int

const (
	// SourceDefault defers to the distro's primary manager, chosen by the
	// caller.
	SourceDefault SourceKind = iota
	SourceAUR
	SourceApt
	// SourceOther is any other explicit prefix such as "flatpak".
	SourceOther
)

// Source is the package source of an entry. Name is the literal prefix for
// SourceOther and empty otherwise.
type Source struct {
	Kind SourceKind `json:"kind"`
	Name string     `json:"name,omitempty"`
}

// ParseSource maps a source prefix onto a Source. The empty prefix is the
// default source.
func ParseSource(prefix string) Source {
	switch p := strings.ToLower(strings.TrimSpace(prefix)); p {
	case "":
		return Source{Kind: SourceDefault}
	case "aur":
		return Source{Kind: SourceAUR}
	case "apt":
		return Source{Kind: SourceApt}
	default:
		return Source{Kind: SourceOther, Name: p}
	}
}

func (s Source) String() string {
	switch s.Kind {
	case SourceDefault:
		return "default"
	case SourceAUR:
		return "aur"
	case SourceApt:
		return "apt"
	default:
		return s.Name
	}
}

// Entry is one package reference from a list or registry.
type Entry struct {
	Name      string `json:"name"`
	Source    Source `json:"source"`
	Section   string `json:"section,omitempty"`
	Condition string `json:"condition,omitempty"`
	Line      int    `json:"line,omitempty"`
}

// Unconditional reports whether the entry is always included.
func (e Entry) Unconditional() bool {
	return e.Condition == ""
}

// Ref renders the entry back to "[source:]name" form.
func (e Entry) Ref() string {
	if e.Source.Kind == SourceDefault {
		return e.Name
	}
	return e.Source.String() + ":" + e.Name
}

func (e Entry) String() string {
	if e.Condition == "" {
		return e.Ref()
	}
	return e.Ref() + "|" + e.Condition
}

// SyntaxError describes one malformed line. Line is 1-based.
type SyntaxError struct {
	Line    int
	Content string
	Reason  string
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Content)
}

var sectionPattern = regexp.MustCompile(`^# --- (.+) ---$`)

// ParseAll processes lines in order and returns both the well-formed entries
// and every syntax error.
func ParseAll(lines []string) ([]Entry, []SyntaxError) {
	var (
		entries []Entry
		errs    []SyntaxError
		section string
	)

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if m := sectionPattern.FindStringSubmatch(line); m != nil {
				section = strings.TrimSpace(m[1])
			}
			continue
		}

		entry, reason := ParseLine(line)
		if reason != "" {
			errs = append(errs, SyntaxError{Line: i + 1, Content: raw, Reason: reason})
			continue
		}
		entry.Section = section
		entry.Line = i + 1
		entries = append(entries, entry)
	}
	return entries, errs
}

// Parse returns the well-formed entries of lines in file order. Malformed
// lines are dropped; use Validate to see them.
func Parse(lines []string) []Entry {
	entries, _ := ParseAll(lines)
	return entries
}

// Validate returns every malformed line of lines.
func Validate(lines []string) []SyntaxError {
	_, errs := ParseAll(lines)
	return errs
}

// ParseLine parses a single trimmed, non-comment entry. A non-empty reason
// means the line is malformed.
func ParseLine(line string) (Entry, string) {
	ref := line
	var cond string

	switch strings.Count(line, "|") {
	case 0:
	case 1:
		ref, cond, _ = strings.Cut(line, "|")
		cond = strings.TrimSpace(cond)
		if cond == "" {
			return Entry{}, "empty condition after '|'"
		}
		if strings.ContainsAny(cond, " \t") {
			return Entry{}, "condition contains whitespace"
		}
	default:
		return Entry{}, "multiple '|' separators"
	}

	src, name, reason := parseRef(ref)
	if reason != "" {
		return Entry{}, reason
	}
	return Entry{Name: name, Source: src, Condition: cond}, ""
}

// ParseRef parses a "[source:]name" package reference as used by the
// component registry. Conditions are not allowed here.
func ParseRef(ref string) (Entry, error) {
	if strings.Contains(ref, "|") {
		return Entry{}, fmt.Errorf("package reference %q: conditions are not allowed here", ref)
	}
	src, name, reason := parseRef(strings.TrimSpace(ref))
	if reason != "" {
		return Entry{}, fmt.Errorf("package reference %q: %s", ref, reason)
	}
	return Entry{Name: name, Source: src}, nil
}

func parseRef(ref string) (Source, string, string) {
	ref = strings.TrimSpace(ref)

	var prefix string
	name := ref
	switch strings.Count(ref, ":") {
	case 0:
	case 1:
		prefix, name, _ = strings.Cut(ref, ":")
		prefix = strings.TrimSpace(prefix)
		name = strings.TrimSpace(name)
		if prefix == "" {
			return Source{}, "", "empty source before ':'"
		}
		if name == "" {
			return Source{}, "", "empty package name after source"
		}
	default:
		return Source{}, "", "multiple ':' separators"
	}

	if name == "" {
		return Source{}, "", "empty package name"
	}
	if strings.ContainsAny(name, " \t") {
		return Source{}, "", "package name contains whitespace"
	}
	return ParseSource(prefix), name, ""
}
