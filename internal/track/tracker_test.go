package track

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turntrack/internal/blob"
	"turntrack/internal/errs"
)

// newTestRepo creates a temp directory with a .git marker so diff
// headers use tidy repo-relative paths.
func newTestRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	return root
}

func writeFile(t *testing.T, path string, content string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
}

func TestBaselineImmutability(t *testing.T) {
	root := newTestRepo(t)
	path := filepath.Join(root, "f.txt")
	writeFile(t, path, "one\ntwo\nthree\n", 0o644)

	tracker := New()
	require.NoError(t, tracker.OnPatchBegin([]PathChange{{Path: path, Change: Update{}}}))

	id, ok := tracker.IdentityOf(path)
	require.True(t, ok)
	base, err := tracker.Baseline(id)
	require.NoError(t, err)
	assert.Equal(t, "4cb29ea38f70d7c61b2a3a25b02e3bdf44905402", base.OID)
	assert.Equal(t, []byte("one\ntwo\nthree\n"), base.Content)

	// Mutating the file and re-observing must not touch the baseline.
	writeFile(t, path, "one\ntwo\nthree\nfour\n", 0o644)
	require.NoError(t, tracker.OnPatchBegin([]PathChange{{Path: path, Change: Update{}}}))

	again, err := tracker.Baseline(id)
	require.NoError(t, err)
	assert.Equal(t, base.OID, again.OID)
	assert.Equal(t, []byte("one\ntwo\nthree\n"), again.Content)

	sameID, ok := tracker.IdentityOf(path)
	require.True(t, ok)
	assert.Equal(t, id, sameID)
}

func TestUnifiedDiffIdempotent(t *testing.T) {
	root := newTestRepo(t)
	path := filepath.Join(root, "f.txt")
	writeFile(t, path, "one\n", 0o644)

	tracker := New()
	require.NoError(t, tracker.OnPatchBegin([]PathChange{{Path: path, Change: Update{}}}))
	writeFile(t, path, "one\ntwo\n", 0o644)

	first, err := tracker.UnifiedDiff()
	require.NoError(t, err)
	second, err := tracker.UnifiedDiff()
	require.NoError(t, err)
	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestNoOpDetection(t *testing.T) {
	root := newTestRepo(t)
	path := filepath.Join(root, "f.txt")
	writeFile(t, path, "same\n", 0o644)

	tracker := New()
	require.NoError(t, tracker.OnPatchBegin([]PathChange{{Path: path, Change: Update{}}}))

	// Rewrite with identical bytes.
	writeFile(t, path, "same\n", 0o644)

	out, err := tracker.UnifiedDiff()
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEmptyTracker(t *testing.T) {
	out, err := New().UnifiedDiff()
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestAddScenario(t *testing.T) {
	root := newTestRepo(t)
	path := filepath.Join(root, "new.txt")

	tracker := New()
	require.NoError(t, tracker.OnPatchBegin([]PathChange{
		{Path: path, Change: Add{Content: []byte("hello\n")}},
	}))
	writeFile(t, path, "hello\n", 0o644)

	out, err := tracker.UnifiedDiff()
	require.NoError(t, err)

	want := "diff --git a/new.txt b/new.txt\n" +
		"new file mode 100644\n" +
		"index 0000000..ce01362\n" +
		"--- /dev/null\n" +
		"+++ b/new.txt\n" +
		"@@ -0,0 +1 @@\n" +
		"+hello\n"
	assert.Equal(t, want, out)
}

func TestDeleteScenario(t *testing.T) {
	root := newTestRepo(t)
	path := filepath.Join(root, "bye.txt")
	writeFile(t, path, "bye\n", 0o644)

	tracker := New()
	require.NoError(t, tracker.OnPatchBegin([]PathChange{
		{Path: path, Change: Delete{Content: []byte("bye\n")}},
	}))
	require.NoError(t, os.Remove(path))

	out, err := tracker.UnifiedDiff()
	require.NoError(t, err)

	want := "diff --git a/bye.txt b/bye.txt\n" +
		"deleted file mode 100644\n" +
		"index b023018..0000000\n" +
		"--- a/bye.txt\n" +
		"+++ /dev/null\n" +
		"@@ -1 +0,0 @@\n" +
		"-bye\n"
	assert.Equal(t, want, out)
}

func TestBinaryScenario(t *testing.T) {
	root := newTestRepo(t)
	path := filepath.Join(root, "bin.dat")
	writeFile(t, path, "hello\n", 0o644)

	tracker := New()
	require.NoError(t, tracker.OnPatchBegin([]PathChange{{Path: path, Change: Update{}}}))
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 'b', 'i', 'n'}, 0o644))

	out, err := tracker.UnifiedDiff()
	require.NoError(t, err)

	want := "diff --git a/bin.dat b/bin.dat\n" +
		"index ce01362..3e4ede8\n" +
		"--- a/bin.dat\n" +
		"+++ b/bin.dat\n" +
		"Binary files differ\n"
	assert.Equal(t, want, out)
	assert.NotContains(t, out, "@@")
}

func TestRenameTracking(t *testing.T) {
	root := newTestRepo(t)
	pathA := filepath.Join(root, "a.txt")
	pathB := filepath.Join(root, "b.txt")
	writeFile(t, pathA, "x\n", 0o644)

	tracker := New()
	require.NoError(t, tracker.OnPatchBegin([]PathChange{
		{Path: pathA, Change: Update{MovePath: pathB}},
	}))

	id, ok := tracker.IdentityOf(pathB)
	require.True(t, ok)
	current, err := tracker.CurrentPath(id)
	require.NoError(t, err)
	assert.Equal(t, pathB, current)

	// The old path no longer resolves to the renamed identity; a new
	// observation of it starts an unrelated one.
	_, ok = tracker.IdentityOf(pathA)
	assert.False(t, ok)

	require.NoError(t, tracker.OnPatchBegin([]PathChange{{Path: pathA, Change: Add{}}}))
	fresh, ok := tracker.IdentityOf(pathA)
	require.True(t, ok)
	assert.NotEqual(t, id, fresh)
	assert.Len(t, tracker.Identities(), 2)
}

func TestRenameWithModify(t *testing.T) {
	root := newTestRepo(t)
	pathA := filepath.Join(root, "a.txt")
	pathB := filepath.Join(root, "b.txt")
	writeFile(t, pathA, "x\n", 0o644)

	tracker := New()
	require.NoError(t, tracker.OnPatchBegin([]PathChange{
		{Path: pathA, Change: Update{MovePath: pathB}},
	}))
	require.NoError(t, os.Rename(pathA, pathB))
	writeFile(t, pathB, "x\ny\n", 0o644)

	out, err := tracker.UnifiedDiff()
	require.NoError(t, err)

	want := "diff --git a/a.txt b/b.txt\n" +
		"index 587be6b..b77b4eb\n" +
		"--- a/a.txt\n" +
		"+++ b/b.txt\n" +
		"@@ -1 +1,2 @@\n" +
		" x\n" +
		"+y\n"
	assert.Equal(t, want, out)
}

func TestPureRename(t *testing.T) {
	root := newTestRepo(t)
	pathA := filepath.Join(root, "a.txt")
	pathB := filepath.Join(root, "b.txt")
	writeFile(t, pathA, "x\n", 0o644)

	tracker := New()
	require.NoError(t, tracker.OnPatchBegin([]PathChange{
		{Path: pathA, Change: Update{MovePath: pathB}},
	}))
	require.NoError(t, os.Rename(pathA, pathB))

	out, err := tracker.UnifiedDiff()
	require.NoError(t, err)

	// Same content on both sides: header and index only, no hunks.
	want := "diff --git a/a.txt b/b.txt\n" +
		"index 587be6b..587be6b\n"
	assert.Equal(t, want, out)
}

func TestDoubleRenameInOneBatch(t *testing.T) {
	root := newTestRepo(t)
	pathA := filepath.Join(root, "a.txt")
	pathB := filepath.Join(root, "b.txt")
	pathC := filepath.Join(root, "c.txt")
	writeFile(t, pathA, "x\n", 0o644)

	tracker := New()
	require.NoError(t, tracker.OnPatchBegin([]PathChange{
		{Path: pathA, Change: Update{MovePath: pathB}},
		{Path: pathB, Change: Update{MovePath: pathC}},
	}))

	// The second rename wins; the intermediate path was never
	// independently baselined.
	assert.Len(t, tracker.Identities(), 1)

	id, ok := tracker.IdentityOf(pathC)
	require.True(t, ok)
	current, err := tracker.CurrentPath(id)
	require.NoError(t, err)
	assert.Equal(t, pathC, current)

	base, err := tracker.Baseline(id)
	require.NoError(t, err)
	assert.Equal(t, pathA, base.Path)
}

func TestModeChange(t *testing.T) {
	root := newTestRepo(t)
	path := filepath.Join(root, "run.sh")
	writeFile(t, path, "hello\n", 0o644)

	tracker := New()
	require.NoError(t, tracker.OnPatchBegin([]PathChange{{Path: path, Change: Update{}}}))
	require.NoError(t, os.Chmod(path, 0o755))

	out, err := tracker.UnifiedDiff()
	require.NoError(t, err)

	want := "diff --git a/run.sh b/run.sh\n" +
		"old mode 100644\n" +
		"new mode 100755\n" +
		"index ce01362..ce01362\n"
	assert.Equal(t, want, out)
}

func TestSymlinkBaseline(t *testing.T) {
	root := newTestRepo(t)
	target := filepath.Join(root, "target.txt")
	link := filepath.Join(root, "link")
	writeFile(t, target, "data\n", 0o644)
	require.NoError(t, os.Symlink(target, link))

	tracker := New()
	require.NoError(t, tracker.OnPatchBegin([]PathChange{{Path: link, Change: Delete{}}}))

	id, ok := tracker.IdentityOf(link)
	require.True(t, ok)
	base, err := tracker.Baseline(id)
	require.NoError(t, err)
	assert.True(t, base.Mode.Symlink)
	assert.Equal(t, "120000", base.Mode.GitMode())
	assert.Equal(t, []byte(target), base.Content)

	require.NoError(t, os.Remove(link))
	out, err := tracker.UnifiedDiff()
	require.NoError(t, err)
	assert.Contains(t, out, "deleted file mode 120000\n")
}

func TestFragmentsSortedByCurrentPath(t *testing.T) {
	root := newTestRepo(t)
	pathA := filepath.Join(root, "aaa.txt")
	pathZ := filepath.Join(root, "zzz.txt")

	tracker := New()
	// Observe in reverse order; output must still sort by path.
	require.NoError(t, tracker.OnPatchBegin([]PathChange{
		{Path: pathZ, Change: Add{}},
		{Path: pathA, Change: Add{}},
	}))
	writeFile(t, pathA, "a\n", 0o644)
	writeFile(t, pathZ, "z\n", 0o644)

	out, err := tracker.UnifiedDiff()
	require.NoError(t, err)
	first := strings.Index(out, "diff --git a/aaa.txt")
	second := strings.Index(out, "diff --git a/zzz.txt")
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, second, 0)
	assert.Less(t, first, second)
}

func TestUnknownIdentity(t *testing.T) {
	tracker := New()

	_, err := tracker.CurrentPath(uuid.New())
	assert.True(t, errs.IsNotFound(err))

	_, err = tracker.Baseline(uuid.New())
	assert.True(t, errs.IsNotFound(err))
}

func TestUnreadablePathFailsWholeDiff(t *testing.T) {
	root := newTestRepo(t)
	readable := filepath.Join(root, "aaa.txt")
	writeFile(t, readable, "one\n", 0o644)

	dir := filepath.Join(root, "d")
	require.NoError(t, os.Mkdir(dir, 0o755))
	blocked := filepath.Join(dir, "zzz.txt")
	writeFile(t, blocked, "two\n", 0o644)

	tracker := New()
	require.NoError(t, tracker.OnPatchBegin([]PathChange{
		{Path: readable, Change: Update{}},
		{Path: blocked, Change: Update{}},
	}))

	// The readable file now has a fragment to report.
	writeFile(t, readable, "one\nmore\n", 0o644)

	// Swap the blocked file's parent directory for a regular file so
	// its live read fails with something other than not-exist.
	require.NoError(t, os.RemoveAll(dir))
	writeFile(t, dir, "not a directory\n", 0o644)

	// The aggregate is all-or-nothing: the readable file's fragment
	// sorts first and was already synthesized, but must be discarded.
	out, err := tracker.UnifiedDiff()
	assert.True(t, errs.IsUnreadable(err))
	assert.Empty(t, out)
}

func TestAbsentBaselineNeverMaterialized(t *testing.T) {
	root := newTestRepo(t)
	path := filepath.Join(root, "ghost.txt")

	tracker := New()
	require.NoError(t, tracker.OnPatchBegin([]PathChange{{Path: path, Change: Add{}}}))

	id, ok := tracker.IdentityOf(path)
	require.True(t, ok)
	base, err := tracker.Baseline(id)
	require.NoError(t, err)
	assert.Equal(t, blob.ZeroOID, base.OID)
	assert.Empty(t, base.Content)

	// The file was never actually created: no fragment.
	out, err := tracker.UnifiedDiff()
	require.NoError(t, err)
	assert.Empty(t, out)
}
