// Package local implements the Rooted FS Gateway: a filesystem handle that
// confines every relative open beneath a fixed directory regardless of
// symlinks, "..", or absolute components, by delegating the actual
// confinement check to the operating system rather than to string
// normalization.
//
// Grounded on the teacher's backend/local (the rclone connector that talks
// to a real local directory tree). Unlike the fail-soft, log-and-continue
// directory read in backend/local/local.go's Fs.List, ReadDir here returns
// an error for a directory it cannot read and logs nothing; skipping an
// entry that cannot be stat'ed is done by the listing pipeline.
package local

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/SmilyOrg/timeship/tserr"
)

// Gateway is a single-assignment, long-lived handle rooted at one directory.
// Every relative open, stat, and directory read goes through the embedded
// *os.Root, which refuses at the OS level to resolve outside that root —
// an openat-style beneath-root check enforced by the kernel, not by
// inspecting the path string beforehand.
// The same Gateway services every request against its storage for the
// storage's whole lifetime and is safe for unbounded concurrent use; it
// holds no per-request state.
type Gateway struct {
	name string
	root *os.Root
}

// New pins a Gateway to rootDir. rootDir must exist and be a directory.
func New(name, rootDir string) (*Gateway, error) {
	root, err := os.OpenRoot(rootDir)
	if err != nil {
		return nil, tserr.New("open-root", tserr.Internal, "", err)
	}
	fi, err := root.Stat(".")
	if err != nil || !fi.IsDir() {
		_ = root.Close()
		return nil, tserr.New("open-root", tserr.Internal, "", errors.New("root is not a directory"))
	}
	return &Gateway{name: name, root: root}, nil
}

// Name is the storage name this gateway was constructed for, used only for
// logging — never exposed on the wire and never used to build paths.
func (g *Gateway) Name() string { return g.name }

// Close releases the root handle. Safe to call once per Gateway lifetime.
func (g *Gateway) Close() error {
	if g.root == nil {
		return nil
	}
	return g.root.Close()
}

func normalizeRel(rel string) string {
	if rel == "" {
		return "."
	}
	return rel
}

// Open opens rel (relative to the root) for reading.
func (g *Gateway) Open(ctx context.Context, rel string) (*os.File, error) {
	f, err := g.root.Open(normalizeRel(rel))
	if err != nil {
		return nil, translateErr("open", rel, err)
	}
	return f, nil
}

// Stat follows symlinks, confined to the root.
func (g *Gateway) Stat(ctx context.Context, rel string) (fs.FileInfo, error) {
	fi, err := g.root.Stat(normalizeRel(rel))
	if err != nil {
		return nil, translateErr("stat", rel, err)
	}
	return fi, nil
}

// Lstat does not follow a final symlink component, so callers can detect
// and skip symlinks (required by the recursive total-size walk).
func (g *Gateway) Lstat(ctx context.Context, rel string) (fs.FileInfo, error) {
	fi, err := g.root.Lstat(normalizeRel(rel))
	if err != nil {
		return nil, translateErr("lstat", rel, err)
	}
	return fi, nil
}

// ReadDir lists the immediate children of rel.
func (g *Gateway) ReadDir(ctx context.Context, rel string) ([]fs.DirEntry, error) {
	entries, err := fs.ReadDir(g.root.FS(), normalizeRel(rel))
	if err != nil {
		return nil, translateErr("readdir", rel, err)
	}
	return entries, nil
}

// translateErr maps an os.Root error onto a tserr.Kind without leaking the
// absolute on-disk path into the message and, deliberately, without
// distinguishing "does not exist" from "attempted to escape the root" or
// "permission denied": all three collapse to NotFound so a client probing
// for traversal bugs learns nothing it doesn't already know.
func translateErr(op, rel string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return tserr.New(op, tserr.NotFound, rel, errStrip(err))
	}
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return tserr.New(op, tserr.NotFound, rel, errStrip(err))
	}
	return tserr.New(op, tserr.Internal, rel, errStrip(err))
}

// errStrip discards the wrapped *fs.PathError's absolute Path field by
// re-describing the error with only its Op and Err, so the relative
// locator supplied by the caller is the only path that ever reaches a log
// line or an HTTP response.
func errStrip(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}

// LogAttrs returns structured logging attributes identifying this gateway,
// for use by callers building a slog.Logger record.
func (g *Gateway) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("storage", g.name)}
}
