package segment

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asmsplit/internal/classify"
	"asmsplit/internal/types"
)

func segmentText(t *testing.T, minLines int, src string) []types.Block {
	t.Helper()
	c := classify.MustNew(classify.DefaultDialect())
	return New(c, Options{MinLines: minLines}).Segment(types.SplitLines(src))
}

func TestSegmentLabelledTableStopsAtCodeLabel(t *testing.T) {
	src := "TABLE:\n  db 1,2,3\nCODE_X:\n  lda #0\n"
	got := segmentText(t, 2, src)
	want := []types.Block{{Start: 0, End: 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}
}

func TestSegment(t *testing.T) {
	tests := []struct {
		name     string
		minLines int
		src      []string
		want     []types.Block
	}{
		{
			name:     "plain table",
			minLines: 3,
			src:      []string{"  lda #0", "  db 1", "  db 2", "  db 3", "  rts"},
			want:     []types.Block{{Start: 1, End: 4}},
		},
		{
			name:     "too short",
			minLines: 4,
			src:      []string{"  db 1", "  db 2", "  db 3"},
			want:     nil,
		},
		{
			name:     "directive closes block",
			minLines: 2,
			src:      []string{"  db 1", "  db 2", "org $8000", "  db 3", "  db 4"},
			want:     []types.Block{{Start: 0, End: 2}, {Start: 3, End: 5}},
		},
		{
			name:     "conditional closes block",
			minLines: 2,
			src:      []string{"  db 1", "  db 2", "if FOO", "  db 3", "endif"},
			want:     []types.Block{{Start: 0, End: 2}},
		},
		{
			name:     "trailing comments and labels trimmed",
			minLines: 2,
			src:      []string{"  db 1", "  db 2", "; tail", "", "next:", "  lda #1"},
			want:     []types.Block{{Start: 0, End: 2}},
		},
		{
			name:     "inner comments and assignments kept",
			minLines: 4,
			src:      []string{"  db 1", "; note", "SIZE = 2", "  db 2", "  lda #0"},
			want:     []types.Block{{Start: 0, End: 4}},
		},
		{
			name:     "inner label followed by data continues",
			minLines: 4,
			src:      []string{"first:", "  db 1", "second:", "; c", "  db 2", "  rts"},
			want:     []types.Block{{Start: 0, End: 5}},
		},
		{
			name:     "label before code is not absorbed",
			minLines: 2,
			src:      []string{"  db 1", "  db 2", "routine:", "  rts"},
			want:     []types.Block{{Start: 0, End: 2}},
		},
		{
			name:     "label with no following data does not open",
			minLines: 1,
			src:      []string{"alone:", "  lda #0"},
			want:     nil,
		},
		{
			name:     "sparse block rejected by data density",
			minLines: 6,
			src:      []string{"  db 1", ";", ";", "A = 1", "B = 2", ";", "  db 2"},
			want:     nil,
		},
		{
			name:     "density threshold rounds up",
			minLines: 5,
			src:      []string{"  db 1", ";", ";", ";", "  db 2"},
			want:     nil,
		},
		{
			name:     "density threshold met",
			minLines: 5,
			src:      []string{"  db 1", ";", ";", "  db 2", "  db 3"},
			want:     []types.Block{{Start: 0, End: 5}},
		},
		{
			name:     "min lines below one clamps",
			minLines: 0,
			src:      []string{"  db 1"},
			want:     []types.Block{{Start: 0, End: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := segmentText(t, tt.minLines, strings.Join(tt.src, "\n")+"\n")
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("blocks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAcceptRejectsUnknown(t *testing.T) {
	c := classify.MustNew(classify.DefaultDialect())
	s := New(c, Options{MinLines: 2})
	tags := []classify.Tag{classify.Data, classify.Unknown, classify.Data}
	assert.False(t, s.accept(tags, types.Block{Start: 0, End: 3}))

	clean := []classify.Tag{classify.Data, classify.CommentOrBlank, classify.Data}
	assert.True(t, s.accept(clean, types.Block{Start: 0, End: 3}))
}

var randomLines = []string{
	"  db 1,2", "  dw $1234", "  hex 0011", "; comment", "", "label:", "tbl: db 0",
	"X = 3", "org $8000", "if FOO", "endif", "  lda #0", "  sta $2000", "code:",
}

func TestSegmentRandomInputs(t *testing.T) {
	c := classify.MustNew(classify.DefaultDialect())
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		n := 1 + rng.Intn(80)
		src := make([]string, n)
		for i := range src {
			src[i] = randomLines[rng.Intn(len(randomLines))]
		}
		lines := types.SplitLines(strings.Join(src, "\n") + "\n")
		tags := c.ClassifyAll(lines)
		minLines := 1 + rng.Intn(6)
		blocks := New(c, Options{MinLines: minLines}).SegmentTags(tags)

		for i, b := range blocks {
			require.Less(t, b.Start, b.End)
			require.LessOrEqual(t, b.End, len(lines))
			require.GreaterOrEqual(t, b.Len(), minLines)
			if i > 0 {
				require.LessOrEqual(t, blocks[i-1].End, b.Start, "blocks overlap or are unordered")
			}

			hasData := false
			for _, tag := range tags[b.Start:b.End] {
				require.NotEqual(t, classify.Unknown, tag)
				require.NotEqual(t, classify.Directive, tag)
				require.NotEqual(t, classify.Conditional, tag)
				if tag == classify.Data {
					hasData = true
				}
			}
			require.True(t, hasData)

			last := tags[b.End-1]
			require.NotEqual(t, classify.CommentOrBlank, last)
			require.NotEqual(t, classify.LabelOnly, last)
		}
	}
}
