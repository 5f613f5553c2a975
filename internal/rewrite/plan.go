// Package rewrite turns accepted blocks into extracted units plus edits on the main file,
// and writes the result.
package rewrite

import (
	"errors"
	"io/fs"
	"os"
	"sort"
	"strings"

	"asmsplit/internal/naming"
	"asmsplit/internal/types"
)

// Namer names one block. *naming.Namer satisfies it.
type Namer interface {
	Name(lines []types.SourceLine, blk types.Block) naming.Name
}

// Unit is one extracted file.
type Unit struct {
	Block   types.Block
	Path    string
	Include string
	Content string
	Digest  string
}

// Edit replaces lines[Start:End] with the single line Replacement.
type Edit struct {
	Start       int
	End         int
	Replacement string
}

// Plan is the complete, unwritten result of a split.
type Plan struct {
	Units []Unit
	Edits []Edit
	// Lines is the rewritten main file, one entry per line.
	Lines []string
}

// Build creates one unit and one edit per block and applies the edits to a copy of the
// source. Blocks must be ordered and non-overlapping.
func Build(lines []types.SourceLine, blocks []types.Block, namer Namer) Plan {
	p := Plan{
		Units: make([]Unit, 0, len(blocks)),
		Edits: make([]Edit, 0, len(blocks)),
	}
	for _, blk := range blocks {
		name := namer.Name(lines, blk)
		p.Units = append(p.Units, Unit{
			Block:   blk,
			Path:    name.Path,
			Include: name.Include,
			Content: types.BlockText(lines, blk),
			Digest:  name.Digest,
		})
		p.Edits = append(p.Edits, Edit{Start: blk.Start, End: blk.End, Replacement: name.Include})
	}
	p.Lines = Apply(types.Texts(lines), p.Edits)
	return p
}

// MainText renders the rewritten main file.
func (p Plan) MainText() string {
	return Render(p.Lines)
}

// Apply returns a copy of lines with every edit applied. Edits run from the highest
// Start down, so each replacement leaves the indices of the remaining edits valid.
func Apply(lines []string, edits []Edit) []string {
	out := append([]string(nil), lines...)

	ordered := append([]Edit(nil), edits...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start > ordered[j].Start })

	for _, e := range ordered {
		tail := append([]string{e.Replacement}, out[e.End:]...)
		out = append(out[:e.Start], tail...)
	}
	return out
}

// Render joins lines with newlines and terminates the text with a newline.
func Render(lines []string) string {
	if len(lines) == 0 {
		return "\n"
	}
	return strings.Join(lines, "\n") + "\n"
}

// Conflicts lists unit paths that already exist on disk.
func Conflicts(units []Unit) ([]string, error) {
	var existing []string
	for _, u := range units {
		_, err := os.Lstat(u.Path)
		switch {
		case err == nil:
			existing = append(existing, u.Path)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}
	return existing, nil
}
