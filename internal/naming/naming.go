// Package naming derives file names, destination paths and include directives for
// extracted blocks.
package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"asmsplit/internal/checksum"
	"asmsplit/internal/classify"
	"asmsplit/internal/types"
)

// Rule routes names containing any keyword into Dir under the data directory.
type Rule struct {
	Dir      string
	Keywords []string
}

// DefaultRules returns the music/ and layouts/ routing.
func DefaultRules() []Rule {
	return []Rule{
		{Dir: "music", Keywords: []string{"music", "fanfare", "channel"}},
		{Dir: "layouts", Keywords: []string{"layout", "phase"}},
	}
}

type Options struct {
	// DataDir is the root for extracted files.
	DataDir string
	// OutputDir is the directory of the rewritten main file; include paths are relative to it.
	OutputDir string
	Rules     []Rule
	// LookBehind and LookAhead bound the label search around a block.
	LookBehind int
	LookAhead  int
}

// Name is everything derived for one block.
type Name struct {
	Base    string
	File    string
	Path    string
	Include string
	Digest  string
}

type Namer struct {
	classifier *classify.Classifier
	opts       Options
}

func New(c *classify.Classifier, opts Options) *Namer {
	if opts.LookBehind <= 0 {
		opts.LookBehind = 3
	}
	if opts.LookAhead <= 0 {
		opts.LookAhead = 5
	}
	if opts.DataDir == "" {
		opts.DataDir = filepath.Join("src", "data")
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	return &Namer{classifier: c, opts: opts}
}

// Name computes the file name, routed path and include directive for blk.
func (n *Namer) Name(lines []types.SourceLine, blk types.Block) Name {
	label, ok := n.FindLabel(lines, blk)
	if !ok {
		label = fmt.Sprintf("block_%d", blk.Start+1)
	}
	base := Sanitize(label)
	digest := checksum.ShortDigest(types.BlockText(lines, blk))
	file := fmt.Sprintf("%s_%05d_%s.asm", base, blk.Start+1, digest)
	path := n.Route(base, file)

	return Name{
		Base:    base,
		File:    file,
		Path:    path,
		Include: n.IncludeLine(path),
		Digest:  digest,
	}
}

// FindLabel looks for a label naming the block: on its first line, then in the few
// lines right before it (nearest first), then a few lines into it.
func (n *Namer) FindLabel(lines []types.SourceLine, blk types.Block) (string, bool) {
	if label, ok := n.labelAt(lines[blk.Start].Text, true); ok {
		return label, true
	}

	for k := blk.Start - 1; k >= 0 && k >= blk.Start-n.opts.LookBehind; k-- {
		if label, ok := n.labelAt(lines[k].Text, false); ok {
			return label, true
		}
	}

	limit := min(blk.End, blk.Start+n.opts.LookAhead)
	for k := blk.Start; k < limit; k++ {
		if label, ok := n.labelAt(lines[k].Text, true); ok {
			return label, true
		}
	}

	return "", false
}

// labelAt extracts a label from a label-only line, or also from a labelled data line
// when withData is set.
func (n *Namer) labelAt(line string, withData bool) (string, bool) {
	switch n.classifier.Classify(line) {
	case classify.LabelOnly:
		return n.classifier.Label(line)
	case classify.Data:
		if withData {
			return n.classifier.Label(line)
		}
	}
	return "", false
}

// Route places file under the first rule directory whose keyword appears in base.
func (n *Namer) Route(base, file string) string {
	low := strings.ToLower(base)
	for _, r := range n.opts.Rules {
		for _, kw := range r.Keywords {
			if kw != "" && strings.Contains(low, strings.ToLower(kw)) {
				return filepath.Join(n.opts.DataDir, r.Dir, file)
			}
		}
	}
	return filepath.Join(n.opts.DataDir, file)
}

// IncludeLine renders the include directive for an extracted file at path.
func (n *Namer) IncludeLine(path string) string {
	return fmt.Sprintf(`%s "%s"`, n.classifier.Dialect().Include, IncludePath(n.opts.OutputDir, path))
}

// IncludePath returns target relative to fromDir with forward slashes. When no relative
// path exists (different volumes) the absolute target is used.
func IncludePath(fromDir, target string) string {
	absFrom, err := filepath.Abs(fromDir)
	if err != nil {
		absFrom = fromDir
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		absTarget = target
	}
	rel, err := filepath.Rel(absFrom, absTarget)
	if err != nil {
		rel = absTarget
	}
	return filepath.ToSlash(rel)
}

var (
	invalidRun    = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)
	underscoreRun = regexp.MustCompile(`_{2,}`)
)

// Sanitize turns a label into a file-name-safe token.
func Sanitize(s string) string {
	s = strings.TrimRight(s, ":")
	s = invalidRun.ReplaceAllString(s, "_")
	s = underscoreRun.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "block"
	}
	if !startsIdent(s[0]) {
		s = "block_" + s
	}
	return s
}

func startsIdent(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
