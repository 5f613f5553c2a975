package segment

import (
	"asmsplit/internal/classify"
	"asmsplit/internal/types"
)

// CoalesceOptions bounds how adjacent blocks are merged.
type CoalesceOptions struct {
	// GapLimit is the largest number of comment/blank lines allowed between two merged blocks.
	GapLimit int
	// MaxTotal caps the length of a merged block.
	MaxTotal int
}

func DefaultCoalesceOptions() CoalesceOptions {
	return CoalesceOptions{GapLimit: 3, MaxTotal: 40}
}

// Coalesce merges neighbouring blocks separated only by a short run of comment or blank
// lines. It walks left to right extending one window; a merge that would exceed MaxTotal
// starts a new window. Input blocks must be ordered and non-overlapping.
func Coalesce(tags []classify.Tag, blocks []types.Block, opts CoalesceOptions) []types.Block {
	if len(blocks) == 0 {
		return nil
	}

	merged := make([]types.Block, 0, len(blocks))
	cur := blocks[0]
	for _, b := range blocks[1:] {
		if gapMergeable(tags, cur.End, b.Start, opts.GapLimit) && b.End-cur.Start <= opts.MaxTotal {
			cur.End = b.End
			continue
		}
		merged = append(merged, cur)
		cur = b
	}
	return append(merged, cur)
}

func gapMergeable(tags []classify.Tag, from, to, limit int) bool {
	if to-from > limit {
		return false
	}
	for _, t := range tags[from:to] {
		if t != classify.CommentOrBlank {
			return false
		}
	}
	return true
}
