// Package segment finds contiguous data regions in a tagged line sequence.
//
// The scan is a single greedy forward pass over an index cursor. Each step is a pure
// function of (lines, tags, cursor) returning the next cursor and an optional block, so
// no helper shares or mutates scan state.
package segment

import (
	"asmsplit/internal/classify"
	"asmsplit/internal/types"
)

// Options controls block acceptance.
type Options struct {
	// MinLines is the minimum extracted block length. Values below 1 are treated as 1.
	MinLines int
}

// DefaultOptions matches the command-line defaults.
func DefaultOptions() Options {
	return Options{MinLines: 6}
}

type Segmenter struct {
	classifier *classify.Classifier
	opts       Options
}

func New(c *classify.Classifier, opts Options) *Segmenter {
	if opts.MinLines < 1 {
		opts.MinLines = 1
	}
	return &Segmenter{classifier: c, opts: opts}
}

// Segment returns the accepted candidate blocks, non-overlapping and ordered by Start.
func (s *Segmenter) Segment(lines []types.SourceLine) []types.Block {
	return s.SegmentTags(s.classifier.ClassifyAll(lines))
}

// SegmentTags runs the scan over a precomputed tag sequence.
func (s *Segmenter) SegmentTags(tags []classify.Tag) []types.Block {
	var blocks []types.Block
	cursor := 0
	for cursor < len(tags) {
		next, blk, ok := s.scanBlock(tags, cursor)
		if ok {
			blocks = append(blocks, blk)
		}
		cursor = next
	}
	return blocks
}

// scanBlock examines the line at cursor. When a block can open there it extends it,
// trims it and applies the acceptance filter. The returned cursor always advances.
func (s *Segmenter) scanBlock(tags []classify.Tag, cursor int) (int, types.Block, bool) {
	if !opensBlock(tags, cursor) {
		return cursor + 1, types.Block{}, false
	}

	start := cursor
	end := extend(tags, start)
	end = trimTail(tags, start, end)
	blk := types.Block{Start: start, End: end}

	next := max(end, cursor+1)
	if !s.accept(tags, blk) {
		return next, types.Block{}, false
	}
	return next, blk, true
}

// opensBlock reports whether a block may start at i: a data line, or a label-only line
// whose next significant line is data so the label stays with the table it names.
func opensBlock(tags []classify.Tag, i int) bool {
	switch tags[i] {
	case classify.Data:
		return true
	case classify.LabelOnly:
		k := nextSignificant(tags, i)
		return k < len(tags) && tags[k] == classify.Data
	}
	return false
}

// extend returns the exclusive end of the block opened at start.
func extend(tags []classify.Tag, start int) int {
	j := start
	for j < len(tags) {
		switch tags[j] {
		case classify.Data, classify.CommentOrBlank, classify.Assignment:
			j++
		case classify.LabelOnly:
			if !labelContinuesData(tags, j) {
				return j
			}
			j++
		default:
			// Directive, Conditional and Unknown all close the block.
			return j
		}
	}
	return j
}

// labelContinuesData reports whether the label at i introduces more data rather than the
// next code section.
func labelContinuesData(tags []classify.Tag, i int) bool {
	k := nextSignificant(tags, i)
	if k >= len(tags) {
		return false
	}
	return tags[k] == classify.Data || tags[k] == classify.Assignment
}

// nextSignificant returns the index of the first line after i that is not blank or a
// comment, or len(tags).
func nextSignificant(tags []classify.Tag, i int) int {
	k := i + 1
	for k < len(tags) && tags[k] == classify.CommentOrBlank {
		k++
	}
	return k
}

func trimTail(tags []classify.Tag, start, end int) int {
	for end > start {
		t := tags[end-1]
		if t != classify.CommentOrBlank && t != classify.LabelOnly {
			break
		}
		end--
	}
	return end
}

func (s *Segmenter) accept(tags []classify.Tag, blk types.Block) bool {
	if blk.Len() < s.opts.MinLines {
		return false
	}

	hasData := false
	counted := 0
	for _, t := range tags[blk.Start:blk.End] {
		switch t {
		case classify.Data:
			hasData = true
			counted++
		case classify.LabelOnly:
			counted++
		case classify.CommentOrBlank, classify.Assignment:
		case classify.Directive, classify.Conditional:
			// cannot appear after extend; not a reason to reject
		default:
			return false
		}
	}
	if !hasData {
		return false
	}
	return counted >= (s.opts.MinLines+1)/2
}
