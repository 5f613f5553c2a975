// Package classify tags assembly source lines using lexical rules only.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"asmsplit/internal/types"
)

type Tag int

const (
	Unknown Tag = iota
	Data
	LabelOnly
	CommentOrBlank
	Assignment
	Directive
	Conditional
)

func (t Tag) String() string {
	names := [...]string{
		"Unknown",
		"Data",
		"LabelOnly",
		"CommentOrBlank",
		"Assignment",
		"Directive",
		"Conditional",
	}
	if t < 0 || int(t) >= len(names) {
		return "Unknown"
	}
	return names[t]
}

// Dialect describes the spellings an assembler accepts. Token lists hold bare names;
// a leading dot is accepted on every token at classification time.
type Dialect struct {
	Comment           string
	Include           string
	DataTokens        []string
	DirectiveTokens   []string
	ConditionalTokens []string
}

// DefaultDialect returns the asm6/asm6f token sets.
func DefaultDialect() Dialect {
	return Dialect{
		Comment: ";",
		Include: "incsrc",
		DataTokens: []string{
			"db", "dw", "byte", "word", "hex", "fill", "incbin",
			"dbyt", "dword", "dl",
		},
		DirectiveTokens: []string{
			"org", "base", "include", "incsrc", "equ", "set", "=",
			"macro", "endm", "rept", "endr", "enum", "ende",
			"fillvalue", "pad", "align", "error", "warning",
		},
		ConditionalTokens: []string{
			"if", "ifdef", "ifndef", "else", "elseif", "endif",
		},
	}
}

type Classifier struct {
	dialect Dialect

	blankPattern      *regexp.Regexp
	labelOnlyPattern  *regexp.Regexp
	leadPattern       *regexp.Regexp
	assignmentPattern *regexp.Regexp

	dataTokens        map[string]bool
	directiveTokens   map[string]bool
	conditionalTokens map[string]bool

	rules []rule
}

// rule is one entry of the priority-ordered match list.
type rule struct {
	tag   Tag
	match func(line string, token string) bool
}

// New compiles the dialect into a classifier. The result is immutable and safe to share.
func New(d Dialect) (*Classifier, error) {
	if strings.TrimSpace(d.Comment) == "" {
		return nil, fmt.Errorf("dialect: comment marker is required")
	}
	if strings.TrimSpace(d.Include) == "" {
		return nil, fmt.Errorf("dialect: include keyword is required")
	}
	if len(d.DataTokens) == 0 {
		return nil, fmt.Errorf("dialect: at least one data token is required")
	}

	c := regexp.QuoteMeta(d.Comment)
	cl := &Classifier{
		dialect:           d,
		blankPattern:      regexp.MustCompile(`^\s*(?:` + c + `.*)?$`),
		labelOnlyPattern:  regexp.MustCompile(`^\s*([A-Za-z_.][\w.]*:?)\s*:\s*(?:` + c + `.*)?$`),
		leadPattern:       regexp.MustCompile(`^\s*(?:([A-Za-z_.][\w.]*:?)\s*:)?\s*([.]?[A-Za-z_]\w*|=)`),
		assignmentPattern: regexp.MustCompile(`^\s*[A-Za-z_]\w*\s*=\s*\S.*?\s*(?:` + c + `.*)?$`),
		dataTokens:        tokenSet(d.DataTokens),
		directiveTokens:   tokenSet(d.DirectiveTokens),
		conditionalTokens: tokenSet(d.ConditionalTokens),
	}

	// Order is load-bearing: "if" or "org" would otherwise read as identifiers.
	cl.rules = []rule{
		{CommentOrBlank, func(line, _ string) bool { return cl.IsCommentOrBlank(line) }},
		{LabelOnly, func(line, _ string) bool { return cl.IsLabelOnly(line) }},
		{Conditional, func(_, tok string) bool { return cl.conditionalTokens[tok] }},
		{Directive, func(_, tok string) bool { return cl.directiveTokens[tok] }},
		{Assignment, func(line, _ string) bool { return cl.IsAssignment(line) }},
		{Data, func(_, tok string) bool { return cl.dataTokens[tok] }},
	}

	return cl, nil
}

// MustNew is New for dialects known to be valid.
func MustNew(d Dialect) *Classifier {
	c, err := New(d)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Classifier) Dialect() Dialect {
	return c.dialect
}

// Classify maps a single line to its tag. It is total and keeps no state.
func (c *Classifier) Classify(line string) Tag {
	tok := c.FirstToken(line)
	for _, r := range c.rules {
		if r.match(line, tok) {
			return r.tag
		}
	}
	return Unknown
}

// ClassifyAll tags every line in order.
func (c *Classifier) ClassifyAll(lines []types.SourceLine) []Tag {
	tags := make([]Tag, len(lines))
	for i, l := range lines {
		tags[i] = c.Classify(l.Text)
	}
	return tags
}

func (c *Classifier) IsCommentOrBlank(line string) bool {
	return c.blankPattern.MatchString(line)
}

func (c *Classifier) IsLabelOnly(line string) bool {
	return c.labelOnlyPattern.MatchString(line)
}

func (c *Classifier) IsAssignment(line string) bool {
	return c.assignmentPattern.MatchString(line)
}

// FirstToken returns the lowercased first token after an optional leading label, with a
// leading dot removed. Empty when the line has no token.
func (c *Classifier) FirstToken(line string) string {
	m := c.leadPattern.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return normalizeToken(m[2])
}

// Label returns the label defined at the start of the line, without colons. It covers
// both label-only lines and labels prefixing data or code on the same line.
func (c *Classifier) Label(line string) (string, bool) {
	if m := c.labelOnlyPattern.FindStringSubmatch(line); m != nil {
		return strings.TrimRight(m[1], ":"), true
	}
	m := c.leadPattern.FindStringSubmatch(line)
	if m == nil || m[1] == "" {
		return "", false
	}
	return strings.TrimRight(m[1], ":"), true
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if n := normalizeToken(t); n != "" {
			set[n] = true
		}
	}
	return set
}

func normalizeToken(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if len(t) > 1 {
		t = strings.TrimPrefix(t, ".")
	}
	return t
}
