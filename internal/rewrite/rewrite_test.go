package rewrite

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asmsplit/internal/classify"
	"asmsplit/internal/naming"
	"asmsplit/internal/types"
)

func TestApply(t *testing.T) {
	lines := []string{"a", "b", "c", "d", "e", "f"}
	edits := []Edit{
		{Start: 1, End: 3, Replacement: "X"},
		{Start: 4, End: 6, Replacement: "Y"},
	}

	got := Apply(lines, edits)
	if diff := cmp.Diff([]string{"a", "X", "d", "Y"}, got); diff != "" {
		t.Errorf("apply mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, lines, "input must not change")

	reversed := Apply(lines, []Edit{edits[1], edits[0]})
	assert.Equal(t, got, reversed)
}

func TestRender(t *testing.T) {
	assert.Equal(t, "\n", Render(nil))
	assert.Equal(t, "a\nb\n", Render([]string{"a", "b"}))
}

// inline resolves include lines back to their unit contents.
func inline(mainText string, units []Unit) string {
	byInclude := make(map[string]string, len(units))
	for _, u := range units {
		byInclude[u.Include] = u.Content
	}
	var sb strings.Builder
	for _, l := range types.SplitLines(mainText) {
		if content, ok := byInclude[l.Text]; ok {
			sb.WriteString(content)
			continue
		}
		sb.WriteString(l.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func TestBuildRoundTrip(t *testing.T) {
	src := strings.Join([]string{
		"  org $8000",
		"reset:",
		"  lda #0",
		"palette:",
		"  db $0f,$00,$10,$20",
		"  db $0f,$06,$16,$26",
		"; end of palette",
		"  rts",
		"music_intro:",
		"  db 1",
		"  db 2",
	}, "\n") + "\n"
	lines := types.SplitLines(src)
	blocks := []types.Block{{Start: 3, End: 7}, {Start: 8, End: 11}}

	dir := t.TempDir()
	namer := naming.New(classify.MustNew(classify.DefaultDialect()), naming.Options{
		DataDir:   filepath.Join(dir, "data"),
		OutputDir: dir,
		Rules:     naming.DefaultRules(),
	})
	plan := Build(lines, blocks, namer)

	require.Len(t, plan.Units, 2)
	require.Len(t, plan.Edits, 2)
	assert.Equal(t, "palette:\n  db $0f,$00,$10,$20\n  db $0f,$06,$16,$26\n; end of palette\n", plan.Units[0].Content)
	assert.Contains(t, plan.Units[1].Path, filepath.Join("data", "music"))
	assert.Len(t, plan.Lines, len(lines)-7+2)
	assert.Equal(t, plan.Units[0].Include, plan.Lines[3])

	assert.Equal(t, src, inline(plan.MainText(), plan.Units))
}

func TestCommit(t *testing.T) {
	dir := t.TempDir()
	mainPath := filepath.Join(dir, "main.asm")
	units := []Unit{
		{Path: filepath.Join(dir, "data", "a.asm"), Content: "  db 1\n"},
		{Path: filepath.Join(dir, "data", "music", "b.asm"), Content: "  db 2\n"},
	}

	require.NoError(t, Commit(units, mainPath, "incsrc \"data/a.asm\"\n", CommitOptions{}))

	for _, u := range units {
		got, err := os.ReadFile(u.Path)
		require.NoError(t, err)
		assert.Equal(t, u.Content, string(got))
	}
	main, err := os.ReadFile(mainPath)
	require.NoError(t, err)
	assert.Equal(t, "incsrc \"data/a.asm\"\n", string(main))

	assertNoTemps(t, dir)
}

func TestCommitKeepsMainFileMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}
	dir := t.TempDir()
	mainPath := filepath.Join(dir, "main.asm")
	require.NoError(t, os.WriteFile(mainPath, []byte("original\n"), 0o644))
	require.NoError(t, os.Chmod(mainPath, 0o640))

	unit := Unit{Path: filepath.Join(dir, "data", "a.asm"), Content: "  db 1\n"}
	require.NoError(t, Commit([]Unit{unit}, mainPath, "rewritten\n", CommitOptions{}))

	fi, err := os.Stat(mainPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), fi.Mode().Perm())

	fi, err = os.Stat(unit.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), fi.Mode().Perm())
}

func TestCommitConflict(t *testing.T) {
	dir := t.TempDir()
	mainPath := filepath.Join(dir, "main.asm")
	require.NoError(t, os.WriteFile(mainPath, []byte("original\n"), 0o644))
	existing := filepath.Join(dir, "a.asm")
	require.NoError(t, os.WriteFile(existing, []byte("keep\n"), 0o644))

	units := []Unit{
		{Path: filepath.Join(dir, "new.asm"), Content: "  db 1\n"},
		{Path: existing, Content: "  db 2\n"},
	}
	err := Commit(units, mainPath, "rewritten\n", CommitOptions{})

	require.ErrorIs(t, err, ErrExists)
	var ce *ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{existing}, ce.Paths)

	got, _ := os.ReadFile(existing)
	assert.Equal(t, "keep\n", string(got))
	got, _ = os.ReadFile(mainPath)
	assert.Equal(t, "original\n", string(got))
	assert.NoFileExists(t, filepath.Join(dir, "new.asm"))
	assertNoTemps(t, dir)

	require.NoError(t, Commit(units, mainPath, "rewritten\n", CommitOptions{Force: true}))
	got, _ = os.ReadFile(existing)
	assert.Equal(t, "  db 2\n", string(got))
}

func TestCommitRenameFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	// a directory at the main path makes the final rename fail after the units are placed
	mainPath := filepath.Join(dir, "main.asm")
	require.NoError(t, os.MkdirAll(filepath.Join(mainPath, "occupied"), 0o755))

	unit := Unit{Path: filepath.Join(dir, "data", "a.asm"), Content: "  db 1\n"}
	err := Commit([]Unit{unit}, mainPath, "main\n", CommitOptions{})

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPartialWrite))
	assert.NoFileExists(t, unit.Path)
	assertNoTemps(t, dir)
}

func TestConflicts(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "a.asm")
	require.NoError(t, os.WriteFile(present, nil, 0o644))

	got, err := Conflicts([]Unit{{Path: present}, {Path: filepath.Join(dir, "b.asm")}})
	require.NoError(t, err)
	assert.Equal(t, []string{present}, got)
}

func TestBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.asm")
	require.NoError(t, os.WriteFile(path, []byte("v1\n"), 0o600))

	first, err := Backup(path)
	require.NoError(t, err)
	assert.Equal(t, path+".backup", first)

	require.NoError(t, os.WriteFile(path, []byte("v2\n"), 0o600))
	second, err := Backup(path)
	require.NoError(t, err)
	assert.Equal(t, path+".backup1", second)

	third, err := Backup(path)
	require.NoError(t, err)
	assert.Equal(t, path+".backup2", third)

	got, _ := os.ReadFile(first)
	assert.Equal(t, "v1\n", string(got))
	got, _ = os.ReadFile(second)
	assert.Equal(t, "v2\n", string(got))
}

func TestPartialWriteError(t *testing.T) {
	cause := errors.New("disk full")
	err := error(&PartialWriteError{Orphans: []string{"a.asm"}, Err: cause})
	assert.ErrorIs(t, err, ErrPartialWrite)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "a.asm")
}

func assertNoTemps(t *testing.T, dir string) {
	t.Helper()
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".asmsplit-") {
			t.Errorf("temp file left behind: %s", path)
		}
		return nil
	})
	require.NoError(t, err)
}
