package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/SmilyOrg/timeship/backend/zfs"
	"github.com/SmilyOrg/timeship/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, rootDir string, withSnapshots bool) *httptest.Server {
	t.Helper()
	var engine *zfs.Engine
	caps := storage.CapList | storage.CapRead | storage.CapStat
	if withSnapshots {
		engine = zfs.New(rootDir, nil)
		caps |= storage.CapSnapshotList
	}
	fac, err := storage.NewFacade("local", rootDir, caps, engine, nil)
	require.NoError(t, err)

	reg := storage.NewRegistry(nil)
	reg.Register(fac, true)

	srv := httptest.NewServer(NewRouter(reg, nil))
	t.Cleanup(func() {
		srv.Close()
		_ = reg.Close()
	})
	return srv
}

// (A) Directory listing with mixed entries.
func TestScenarioAMixedDirectoryListing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "subdir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file1.txt"), []byte("12345678"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file2.md"), []byte("abcdefgh"), 0o644))

	srv := newTestServer(t, dir, false)
	resp, err := http.Get(srv.URL + "/storages/local/nodes")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Files []struct {
			Basename string `json:"basename"`
			Type     string `json:"type"`
			Ext      string `json:"extension"`
			Size     int64  `json:"file_size"`
			MimeType string `json:"mime_type"`
		} `json:"files"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	require.Len(t, listing.Files, 3)
	assert.Equal(t, "subdir", listing.Files[0].Basename)
	assert.Equal(t, "dir", listing.Files[0].Type)
	assert.Equal(t, "file1.txt", listing.Files[1].Basename)
	assert.Equal(t, "txt", listing.Files[1].Ext)
	assert.Equal(t, int64(8), listing.Files[1].Size)
	assert.Contains(t, listing.Files[1].MimeType, "text/plain")
	assert.Equal(t, "file2.md", listing.Files[2].Basename)
}

// (B) Traversal refusal.
func TestScenarioBTraversalRefusal(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(filepath.Dir(dir), "outside.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))
	t.Cleanup(func() { _ = os.Remove(outside) })

	srv := newTestServer(t, dir, false)
	resp, err := http.Get(srv.URL + "/storages/local/nodes/../outside.txt")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "secret")
	assert.NotContains(t, string(body), "outside.txt")
}

// (C) File streaming with download flag.
func TestScenarioCFileStreamingWithDownload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.txt"), []byte("Hello, World!"), 0o644))

	srv := newTestServer(t, dir, false)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/storages/local/nodes/test.txt?download=true", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!", string(body))
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "13", resp.Header.Get("Content-Length"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
}

// (D) File metadata.
func TestScenarioDFileMetadata(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.txt"), []byte("Hello, World!"), 0o644))

	srv := newTestServer(t, dir, false)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/storages/local/nodes/test.txt", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var node struct {
		Path     string `json:"path"`
		Type     string `json:"type"`
		Basename string `json:"basename"`
		Ext      string `json:"extension"`
		Size     int64  `json:"file_size"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&node))
	assert.Equal(t, "test.txt", node.Path)
	assert.Equal(t, "file", node.Type)
	assert.Equal(t, "test.txt", node.Basename)
	assert.Equal(t, "txt", node.Ext)
	assert.Equal(t, int64(13), node.Size)
}

// (E) Snapshot enumeration.
func TestScenarioESnapshotEnumeration(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, ".zfs", "snapshot")
	require.NoError(t, os.MkdirAll(filepath.Join(base, "auto-daily-2025-11-09_00-00"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "auto-hourly-2025-11-09_13-30"), 0o755))

	srv := newTestServer(t, dir, true)
	resp, err := http.Get(srv.URL + "/storages/local/snapshots")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var list storage.SnapshotList
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Snapshots, 2)
	assert.Equal(t, "zfs:auto-hourly-2025-11-09_13-30", list.Snapshots[0].ID)
	assert.Equal(t, "zfs:auto-daily-2025-11-09_00-00", list.Snapshots[1].ID)
	assert.Greater(t, list.Snapshots[0].Timestamp, list.Snapshots[1].Timestamp)
}

// (F) Snapshot-scoped listing.
func TestScenarioFSnapshotScopedListing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0o755))
	snapDocs := filepath.Join(dir, ".zfs", "snapshot", "auto-daily-2025-11-09_00-00", "docs")
	require.NoError(t, os.MkdirAll(snapDocs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(snapDocs, "note.txt"), []byte("old"), 0o644))

	srv := newTestServer(t, dir, true)

	resp, err := http.Get(srv.URL + "/storages/local/nodes/docs?snapshot=zfs:auto-daily-2025-11-09_00-00")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Files []struct {
			Basename string `json:"basename"`
		} `json:"files"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	require.Len(t, listing.Files, 1)
	assert.Equal(t, "note.txt", listing.Files[0].Basename)

	liveResp, err := http.Get(srv.URL + "/storages/local/nodes/docs")
	require.NoError(t, err)
	defer liveResp.Body.Close()
	var liveListing struct {
		Files []any `json:"files"`
	}
	require.NoError(t, json.NewDecoder(liveResp.Body).Decode(&liveListing))
	assert.Empty(t, liveListing.Files)
}

// (G) Unknown storage.
func TestScenarioGUnknownStorage(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServer(t, dir, false)

	resp, err := http.Get(srv.URL + "/storages/does-not-exist/nodes")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.False(t, env.Status)
}

func TestReservedWriteRoutesReturn501(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServer(t, dir, false)

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodPost, "/storages/local/nodes"},
		{http.MethodPatch, "/storages/local/nodes/test.txt"},
		{http.MethodDelete, "/storages/local/nodes/test.txt"},
	} {
		req, err := http.NewRequest(tc.method, srv.URL+tc.path, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotImplemented, resp.StatusCode, tc.path)
		resp.Body.Close()
	}
}

func TestStoragesIndexSorted(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServer(t, dir, false)

	resp, err := http.Get(srv.URL + "/storages")
	require.NoError(t, err)
	defer resp.Body.Close()

	var names []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&names))
	assert.Equal(t, []string{"local"}, names)
}
