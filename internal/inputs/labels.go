package inputs

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// CommonPath returns the longest directory prefix shared by the paths,
// compared whole component by whole component so sibling files never
// lose part of their names. A single path is its own common path,
// filename included. Absolute and relative paths cannot mix.
func CommonPath(paths []string) (string, error) {
	if len(paths) == 0 {
		return "", nil
	}
	abs := strings.HasPrefix(paths[0], "/")
	for _, p := range paths[1:] {
		if strings.HasPrefix(p, "/") != abs {
			return "", errors.New("cannot mix absolute and relative input paths")
		}
	}
	common := strings.Split(paths[0], "/")
	for _, p := range paths[1:] {
		parts := strings.Split(p, "/")
		n := 0
		for n < len(common) && n < len(parts) && common[n] == parts[n] {
			n++
		}
		common = common[:n]
	}
	return strings.Join(common, "/"), nil
}

// StripLiterals removes every occurrence of each comma-separated literal
// from name, in the order the literals are listed. Empty literals are
// skipped, so a trailing comma is harmless.
func StripLiterals(name, literals string) string {
	for _, lit := range strings.Split(literals, ",") {
		if lit == "" {
			continue
		}
		name = strings.ReplaceAll(name, lit, "")
	}
	return name
}

// StripMatches deletes pattern matches from name. A match with
// participating capture groups deletes only the group spans, so a
// pattern can anchor on context it wants to keep: `_(\d+_)` turns
// "unique_123_reg" into "unique_reg", underscore intact.
func StripMatches(name string, pattern *regexp.Regexp) string {
	matches := pattern.FindAllStringSubmatchIndex(name, -1)
	if len(matches) == 0 {
		return name
	}
	type span struct{ start, end int }
	var drops []span
	for _, m := range matches {
		grouped := false
		for i := 2; i+1 < len(m); i += 2 {
			if m[i] >= 0 {
				grouped = true
				drops = append(drops, span{m[i], m[i+1]})
			}
		}
		if !grouped {
			drops = append(drops, span{m[0], m[1]})
		}
	}
	sort.Slice(drops, func(i, j int) bool { return drops[i].start < drops[j].start })

	var b strings.Builder
	pos := 0
	for _, d := range drops {
		if d.start > pos {
			b.WriteString(name[pos:d.start])
		}
		if d.end > pos {
			pos = d.end
		}
	}
	b.WriteString(name[pos:])
	return b.String()
}

// A Labeler turns input paths into the labels a test list records:
// the inputs' common directory comes off first, then literal strips,
// then regex strips.
type Labeler struct {
	prefix   string
	literals string
	pattern  *regexp.Regexp
}

// NewLabeler builds a Labeler over the given input set. With fullPath
// set the common directory prefix is kept. An empty pattern disables
// regex stripping.
func NewLabeler(paths []string, fullPath bool, literals, pattern string) (*Labeler, error) {
	l := &Labeler{literals: literals}
	if !fullPath {
		common, err := CommonPath(paths)
		if err != nil {
			return nil, err
		}
		if common != "" {
			l.prefix = common + "/"
		}
	}
	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile test label strip pattern: %w", err)
		}
		l.pattern = re
	}
	return l, nil
}

// Label derives the test label for one input path.
func (l *Labeler) Label(path string) string {
	name := strings.TrimPrefix(path, l.prefix)
	name = StripLiterals(name, l.literals)
	if l.pattern != nil {
		name = StripMatches(name, l.pattern)
	}
	return name
}
