// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package rewrite

import "strings"

// Change records how many times one mapping entry was applied to a single
// content item.
type Change struct {
	Old   string `json:"old"`
	New   string `json:"new"`
	Count int    `json:"count"`
}

// Result is the rewritten content plus the changes that produced it.
type Result struct {
	Content string
	Changes []Change
}

// Changed reports whether any mapping entry matched.
func (r Result) Changed() bool {
	return len(r.Changes) > 0
}

// Replacements returns the total number of substitutions.
func (r Result) Replacements() int {
	return CountReplacements(r.Changes)
}

// Mode selects how a field value is rewritten.
type Mode string

const (
	// ModeHTML treats the value as markup: relative URLs only inside
	// href/src attributes, absolute URLs anywhere.
	ModeHTML Mode = "html"
	// ModeURL treats the whole value as a single URL.
	ModeURL Mode = "url"
	// ModeAuto picks ModeURL for a bare URL token and ModeHTML otherwise.
	ModeAuto Mode = "auto"
)

// Options toggles the URL handling strategies.
type Options struct {
	Relative         bool `json:"relative"`
	Absolute         bool `json:"absolute"`
	FixDoubleSlashes bool `json:"fix_double_slashes"`
}

// DefaultOptions enables every strategy.
func DefaultOptions() Options {
	return Options{Relative: true, Absolute: true, FixDoubleSlashes: true}
}

// Rewriter applies URL mappings to content strings.
type Rewriter struct {
	opts Options
}

// New creates a Rewriter with the given options.
func New(opts Options) *Rewriter {
	return &Rewriter{opts: opts}
}

// Apply rewrites value according to mode.
func (rw *Rewriter) Apply(value string, mode Mode, m Mapping) Result {
	switch mode {
	case ModeURL:
		return rw.RewriteURL(value, m)
	case ModeAuto:
		return rw.RewriteValue(value, m)
	default:
		return rw.Rewrite(value, m)
	}
}

// Rewrite applies m to an HTML content string. Relative keys are replaced
// only as exact href/src attribute values; absolute keys are replaced
// everywhere. Entries are applied in mapping order, each one scanning the
// output of the previous ones.
func (rw *Rewriter) Rewrite(content string, m Mapping) Result {
	if content == "" || len(m) == 0 {
		return Result{Content: content}
	}

	if rw.opts.FixDoubleSlashes {
		content = CollapseSlashes(content)
	}

	var changes []Change
	for _, p := range m {
		if !rw.usable(p) {
			continue
		}

		var n int
		if IsRelative(p.Old) {
			content, n = replaceAttributes(content, p.Old, p.New)
		} else {
			n = strings.Count(content, p.Old)
			if n > 0 {
				content = strings.ReplaceAll(content, p.Old, p.New)
			}
		}

		if n > 0 {
			changes = append(changes, Change{Old: p.Old, New: p.New, Count: n})
		}
	}

	return Result{Content: content, Changes: changes}
}

// RewriteURL applies m to a value that is itself a URL, such as a menu
// item link. Relative keys must match the whole path, optionally followed
// by a query string or fragment; absolute keys are replaced as substrings.
func (rw *Rewriter) RewriteURL(value string, m Mapping) Result {
	if value == "" || len(m) == 0 {
		return Result{Content: value}
	}

	if rw.opts.FixDoubleSlashes {
		value = CollapseSlashes(value)
	}

	var changes []Change
	for _, p := range m {
		if !rw.usable(p) {
			continue
		}

		var n int
		if IsRelative(p.Old) {
			if rest, ok := pathSuffix(value, p.Old); ok {
				value = p.New + rest
				n = 1
			}
		} else {
			n = strings.Count(value, p.Old)
			if n > 0 {
				value = strings.ReplaceAll(value, p.Old, p.New)
			}
		}

		if n > 0 {
			changes = append(changes, Change{Old: p.Old, New: p.New, Count: n})
		}
	}

	return Result{Content: value, Changes: changes}
}

// pathSuffix reports whether value is path, or path followed by a query
// string or fragment, and returns that trailing part.
func pathSuffix(value, path string) (string, bool) {
	if !strings.HasPrefix(value, path) {
		return "", false
	}
	rest := value[len(path):]
	if rest == "" || rest[0] == '?' || rest[0] == '#' {
		return rest, true
	}
	return "", false
}

// RewriteValue rewrites a free-form stored value: a bare URL is handled
// like a link field, anything else like HTML content.
func (rw *Rewriter) RewriteValue(value string, m Mapping) Result {
	if isSingleURL(value) {
		return rw.RewriteURL(value, m)
	}
	return rw.Rewrite(value, m)
}

// usable applies the URL guard and the per-strategy toggles.
func (rw *Rewriter) usable(p Pair) bool {
	if !IsURLLike(p.Old) || p.Old == p.New {
		return false
	}
	if IsRelative(p.Old) {
		return rw.opts.Relative
	}
	return rw.opts.Absolute
}

// replaceAttributes replaces old with repl in the four exact attribute
// forms href="old", href='old', src="old" and src='old'.
func replaceAttributes(content, old, repl string) (string, int) {
	total := 0
	for _, attr := range [...]string{"href=", "src="} {
		for _, q := range [...]string{`"`, `'`} {
			from := attr + q + old + q
			n := strings.Count(content, from)
			if n == 0 {
				continue
			}
			content = strings.ReplaceAll(content, from, attr+q+repl+q)
			total += n
		}
	}
	return content, total
}

// CollapseSlashes folds runs of "/" into a single slash. Runs that follow a
// scheme colon or open a protocol-relative URL (start of string, after a
// quote, "=", "(" or whitespace) are left alone.
func CollapseSlashes(s string) string {
	if !strings.Contains(s, "//") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '/' {
			b.WriteByte(s[i])
			i++
			continue
		}

		j := i
		for j < len(s) && s[j] == '/' {
			j++
		}
		if j-i == 1 || keepSlashRun(s, i) {
			b.WriteString(s[i:j])
		} else {
			b.WriteByte('/')
		}
		i = j
	}
	return b.String()
}

func keepSlashRun(s string, i int) bool {
	if i == 0 {
		return true
	}
	switch s[i-1] {
	case ':', '"', '\'', '=', '(', ' ', '\t', '\r', '\n':
		return true
	}
	return false
}

// MergeChanges folds b into a, summing counts for identical old/new pairs
// and keeping first-seen order.
func MergeChanges(a, b []Change) []Change {
	for _, c := range b {
		merged := false
		for i := range a {
			if a[i].Old == c.Old && a[i].New == c.New {
				a[i].Count += c.Count
				merged = true
				break
			}
		}
		if !merged {
			a = append(a, c)
		}
	}
	return a
}

// CountReplacements sums the counts of changes.
func CountReplacements(changes []Change) int {
	total := 0
	for _, c := range changes {
		total += c.Count
	}
	return total
}

// MappingFromChanges rebuilds the mapping that produced changes.
func MappingFromChanges(changes []Change) Mapping {
	pairs := make([]Pair, 0, len(changes))
	for _, c := range changes {
		pairs = append(pairs, Pair{Old: c.Old, New: c.New})
	}
	return NewMapping(pairs...)
}
