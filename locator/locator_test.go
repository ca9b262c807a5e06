package locator

import (
	"testing"

	"github.com/SmilyOrg/timeship/tserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmptyPathIdempotence(t *testing.T) {
	for _, raw := range []string{"", "/", "."} {
		got, err := Normalize(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, "", got, raw)
	}
}

func TestNormalizeCollapsesDuplicateSlashes(t *testing.T) {
	got, err := Normalize("a//b///c")
	require.NoError(t, err)
	assert.Equal(t, "a/b/c", got)
}

func TestNormalizeStripsLeadingSlash(t *testing.T) {
	got, err := Normalize("/docs/note.txt")
	require.NoError(t, err)
	assert.Equal(t, "docs/note.txt", got)
}

func TestNormalizeRejectsTraversal(t *testing.T) {
	cases := []string{
		"../outside.txt",
		"docs/../../outside.txt",
		"docs/../../../etc/passwd",
		"..",
		"a/../../b",
	}
	for _, raw := range cases {
		_, err := Normalize(raw)
		require.Error(t, err, raw)
		assert.Equal(t, tserr.InvalidPath, tserr.KindOf(err), raw)
	}
}

func TestNormalizeRejectsDoubleAbsolute(t *testing.T) {
	_, err := Normalize("//etc/passwd")
	require.Error(t, err)
	assert.Equal(t, tserr.InvalidPath, tserr.KindOf(err))
}

func TestNormalizeRejectsNulByte(t *testing.T) {
	_, err := Normalize("docs/\x00note.txt")
	require.Error(t, err)
	assert.Equal(t, tserr.InvalidPath, tserr.KindOf(err))
}

func TestNormalizeDropsDotSegments(t *testing.T) {
	got, err := Normalize("./docs/./note.txt")
	require.NoError(t, err)
	assert.Equal(t, "docs/note.txt", got)
}

func TestParseBuildsLocator(t *testing.T) {
	loc, err := Parse("local", "docs/note.txt", "snapshot=zfs%3Aauto-daily-2025-11-09_00-00")
	require.NoError(t, err)
	assert.Equal(t, "local", loc.Storage)
	assert.Equal(t, "docs/note.txt", loc.RelPath)
	assert.Equal(t, "zfs:auto-daily-2025-11-09_00-00", loc.Snapshot)
}

func TestParseRejectsTraversalInPathTail(t *testing.T) {
	_, err := Parse("local", "../outside.txt", "")
	require.Error(t, err)
	assert.Equal(t, tserr.InvalidPath, tserr.KindOf(err))
}

func TestParseRejectsMalformedSnapshotID(t *testing.T) {
	_, err := Parse("local", "docs", "snapshot=notakindname")
	require.Error(t, err)
	assert.Equal(t, tserr.InvalidSnapshot, tserr.KindOf(err))
}

func TestParsePercentDecodesPathTail(t *testing.T) {
	loc, err := Parse("local", "my%20docs/a%2Fb.txt", "")
	require.NoError(t, err)
	assert.Equal(t, "my docs/a/b.txt", loc.RelPath)
}

func TestChildPreservesStorageDropsSnapshot(t *testing.T) {
	loc := Locator{Storage: "local", RelPath: "docs", Snapshot: "zfs:auto-daily"}
	child := loc.Child("note.txt")
	assert.Equal(t, "local", child.Storage)
	assert.Equal(t, "docs/note.txt", child.RelPath)
	assert.Equal(t, "", child.Snapshot)
}

func TestChildAtRoot(t *testing.T) {
	loc := Locator{Storage: "local"}
	child := loc.Child("docs")
	assert.Equal(t, "docs", child.RelPath)
}

func TestStringRendersWireForm(t *testing.T) {
	loc := Locator{Storage: "local", RelPath: "docs/note.txt", Snapshot: "zfs:auto-daily"}
	assert.Equal(t, "local://docs/note.txt?snapshot=zfs%3Aauto-daily", loc.String())
}
