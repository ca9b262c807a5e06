// Package zfs implements the Snapshot Engine: discovery of ZFS's
// ".zfs/snapshot" sidecar directories, enumeration of the snapshots found
// there, and opening a snapshot's own copy of the tree as a new Rooted FS
// Gateway.
//
// Grounded on _examples/other_examples/..._4nonX-D-PlaneOS__zfs_timemachine.go
// for the "<mountpoint>/.zfs/snapshot/<name>/<path>" sidecar convention
// (the pack's clearest example of browsing a ZFS snapshot over HTTP), and
// on the teacher's fail-soft directory walk in backend/local/local.go for
// "log the per-entry error and keep going" semantics during enumeration.
package zfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/SmilyOrg/timeship/backend/local"
	"github.com/SmilyOrg/timeship/tserr"
)

const sidecarDir = ".zfs/snapshot"

// Descriptor describes one snapshot, derived from sidecar directory
// entries on each request and never persisted.
type Descriptor struct {
	ID        string
	Kind      string
	Timestamp int64
	Name      string
	Size      int64 // -1: unknown: zfs dataset sizes aren't read from the plain directory walk this engine does
	Metadata  map[string]string
}

// Engine discovers and enumerates snapshots for one storage's root.
type Engine struct {
	rootDir string
	logger  *slog.Logger
}

// New builds an Engine scoped to rootDir, the same absolute directory the
// storage's live Rooted FS Gateway is pinned to.
func New(rootDir string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{rootDir: filepath.Clean(rootDir), logger: logger}
}

// discoverSidecarRoot walks from relAbs upward toward e.rootDir (inclusive),
// returning the nearest ancestor that hosts a ".zfs/snapshot" directory.
func (e *Engine) discoverSidecarRoot(relAbs string) (string, bool) {
	cur := filepath.Clean(relAbs)
	for {
		if isDir(filepath.Join(cur, sidecarDir)) {
			return cur, true
		}
		if cur == e.rootDir || len(cur) <= len(e.rootDir) {
			return "", false
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", false
		}
		cur = parent
	}
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}

// Enumerate lists the snapshots visible at relpath, in descending order of
// timestamp (stable for ties). An empty result with a nil error means "no
// snapshots": a path with nothing to version is a normal, unremarkable
// outcome, not a failure.
func (e *Engine) Enumerate(ctx context.Context, relpath string) ([]Descriptor, error) {
	relAbs := filepath.Join(e.rootDir, filepath.FromSlash(relpath))
	ancestor, ok := e.discoverSidecarRoot(relAbs)
	if !ok {
		return nil, nil
	}

	snapDir := filepath.Join(ancestor, sidecarDir)
	entries, err := os.ReadDir(snapDir)
	if err != nil {
		return nil, tserr.New("enumerate", tserr.Internal, relpath, err)
	}

	descs := make([]Descriptor, 0, len(entries))
	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}
		name := ent.Name()
		ts, ok := parseTimestamp(name)
		if !ok {
			info, err := ent.Info()
			if err != nil {
				// Fail-soft: a snapshot directory that raced away between
				// ReadDir and Info is skipped, not fatal to the whole list.
				e.logger.Warn("snapshot info unavailable", "snapshot", name, "error", err)
				continue
			}
			ts = info.ModTime().Unix()
		}
		descs = append(descs, Descriptor{
			ID:        "zfs:" + name,
			Kind:      "zfs",
			Timestamp: ts,
			Name:      name,
			Size:      -1,
			Metadata:  map[string]string{"zfs_root": ancestor},
		})
	}

	sort.SliceStable(descs, func(i, j int) bool {
		return descs[i].Timestamp > descs[j].Timestamp
	})
	return descs, nil
}

// Open resolves snapshotID against relpath's sidecar-bearing ancestor and
// returns a new Rooted FS Gateway scoped to that snapshot, together with
// the portion of relpath below the ancestor (the path the caller should
// use against the returned gateway). The caller owns the returned gateway
// and must Close it.
func (e *Engine) Open(ctx context.Context, relpath, snapshotID string) (*local.Gateway, string, error) {
	kind, name, err := splitSnapshotID(snapshotID)
	if err != nil {
		return nil, "", tserr.New("open", tserr.InvalidSnapshot, relpath, err)
	}
	if kind != "zfs" {
		return nil, "", tserr.New("open", tserr.InvalidSnapshot, relpath, fmt.Errorf("unsupported snapshot kind %q", kind))
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, "", tserr.New("open", tserr.InvalidSnapshot, relpath, fmt.Errorf("invalid snapshot name %q", name))
	}

	relAbs := filepath.Join(e.rootDir, filepath.FromSlash(relpath))
	ancestor, ok := e.discoverSidecarRoot(relAbs)
	if !ok {
		return nil, "", tserr.New("open", tserr.NotFound, relpath, errors.New("no snapshots available for this path"))
	}

	snapRoot := filepath.Join(ancestor, sidecarDir, name)
	fi, err := os.Stat(snapRoot)
	if err != nil || !fi.IsDir() {
		return nil, "", tserr.New("open", tserr.NotFound, relpath, fmt.Errorf("snapshot %q not found", name))
	}

	rel, err := filepath.Rel(ancestor, relAbs)
	if err != nil {
		rel = ""
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		rel = ""
	}

	gw, err := local.New(snapshotID, snapRoot)
	if err != nil {
		return nil, "", tserr.New("open", tserr.Internal, relpath, err)
	}
	return gw, rel, nil
}

func splitSnapshotID(id string) (kind, name string, err error) {
	idx := strings.IndexByte(id, ':')
	if idx <= 0 || idx == len(id)-1 {
		return "", "", fmt.Errorf("malformed snapshot id %q", id)
	}
	return id[:idx], id[idx+1:], nil
}
