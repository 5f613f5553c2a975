package types

import "strings"

// SourceLine is one line of the input file together with its 0-based position.
type SourceLine struct {
	Index int
	Text  string
}

// Block is a half-open range [Start, End) of line indices
type Block struct {
	Start int
	End   int
}

// Len returns the number of lines covered by the block.
func (b Block) Len() int {
	return b.End - b.Start
}

// Overlaps reports whether two blocks share at least one line.
func (b Block) Overlaps(o Block) bool {
	return b.Start < o.End && o.Start < b.End
}

// SplitLines breaks raw file text into source lines. CRLF endings are reduced to the
// bare line text and a trailing newline does not produce an empty final line.
func SplitLines(text string) []SourceLine {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	raw := strings.Split(text, "\n")

	lines := make([]SourceLine, len(raw))
	for i, r := range raw {
		lines[i] = SourceLine{Index: i, Text: strings.TrimSuffix(r, "\r")}
	}
	return lines
}

// Texts returns the bare text of each line.
func Texts(lines []SourceLine) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

// BlockText joins the lines covered by b with newlines and terminates the result with
// a newline, which is the exact content written to an extracted file.
func BlockText(lines []SourceLine, b Block) string {
	var sb strings.Builder
	for _, l := range lines[b.Start:b.End] {
		sb.WriteString(l.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}
