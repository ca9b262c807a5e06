// Package storage implements the Storage Facade and the Registry: the
// uniform capability surface the HTTP layer consumes, and the named
// collection of storages built once at boot.
//
// Grounded on the teacher's fs.Fs interface (backend/local/local.go):
// a single method set implemented per backend, with optional extra
// capabilities probed via fs.Features() rather than an inheritance
// chain. Timeship narrows that to four read-only operations and a small
// capability bitmask in place of rclone's much larger Features struct.
package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/SmilyOrg/timeship/backend/local"
	"github.com/SmilyOrg/timeship/backend/zfs"
	"github.com/SmilyOrg/timeship/fsnode"
	"github.com/SmilyOrg/timeship/listing"
	"github.com/SmilyOrg/timeship/locator"
	"github.com/SmilyOrg/timeship/tserr"
)

// Capability is a bitmask of the operations a storage advertises. A
// storage declares the set it satisfies rather than fitting into an
// inheritance chain, so adding a storage type that can list but not
// stream, say, needs no change to the ones that can do both.
type Capability uint8

const (
	CapList Capability = 1 << iota
	CapRead
	CapStat
	CapSnapshotList
)

// Has reports whether cap is included in c.
func (c Capability) Has(cap Capability) bool { return c&cap != 0 }

// Descriptor is the wire shape of one snapshot entry:
// `{ id, type, timestamp, name, size, metadata }`.
type Descriptor struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Timestamp int64             `json:"timestamp"`
	Name      string            `json:"name"`
	Size      int64             `json:"size"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SnapshotList is the response shape for a snapshots request.
type SnapshotList struct {
	Storage   string       `json:"storage"`
	Path      string       `json:"path"`
	Snapshots []Descriptor `json:"snapshots"`
}

// StreamResult is what ReadStream hands back to the HTTP surface: a
// reader, its declared media type, size, and modification time. Closing
// Reader releases every resource the call opened, including a
// snapshot-scoped gateway if one was used.
type StreamResult struct {
	Reader   io.ReadCloser
	MimeType string
	Size     int64
	ModTime  time.Time
}

// Facade is one registered storage: a name, its capability set, its live
// Rooted FS Gateway, and (if snapshots are supported) its Snapshot Engine.
type Facade struct {
	name   string
	caps   Capability
	live   *local.Gateway
	engine *zfs.Engine
	logger *slog.Logger
}

// NewFacade builds a Facade named name, rooted at rootDir, with caps
// advertised to callers. engine may be nil, in which case CapSnapshotList
// is cleared regardless of caps.
func NewFacade(name, rootDir string, caps Capability, engine *zfs.Engine, logger *slog.Logger) (*Facade, error) {
	gw, err := local.New(name, rootDir)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		caps &^= CapSnapshotList
	}
	return &Facade{name: name, caps: caps, live: gw, engine: engine, logger: logger}, nil
}

// Name is the registered storage name.
func (f *Facade) Name() string { return f.name }

// Capabilities returns the set this storage advertises.
func (f *Facade) Capabilities() Capability { return f.caps }

// Close releases the live gateway's root handle.
func (f *Facade) Close() error { return f.live.Close() }

// gatewayFor resolves loc to the gateway that should service it: the
// storage's live gateway when loc carries no snapshot, or a fresh
// snapshot-scoped gateway from the engine otherwise. The returned cleanup
// must always be called by the caller, typically via defer, even on the
// no-snapshot path where it is a no-op.
func (f *Facade) gatewayFor(ctx context.Context, loc locator.Locator) (gw *local.Gateway, rel string, cleanup func() error, err error) {
	if loc.Snapshot == "" {
		return f.live, loc.RelPath, func() error { return nil }, nil
	}
	if !f.caps.Has(CapSnapshotList) || f.engine == nil {
		return nil, "", nil, tserr.New("gateway-for", tserr.NotSupported, loc.RelPath, nil)
	}
	gw, rel, err = f.engine.Open(ctx, loc.RelPath, loc.Snapshot)
	if err != nil {
		return nil, "", nil, err
	}
	return gw, rel, gw.Close, nil
}

// List produces an enriched directory listing for loc.
func (f *Facade) List(ctx context.Context, loc locator.Locator, storages []string, opts listing.Options) (listing.Result, error) {
	if !f.caps.Has(CapList) {
		return listing.Result{}, tserr.New("list", tserr.NotSupported, loc.RelPath, nil)
	}
	gw, rel, cleanup, err := f.gatewayFor(ctx, loc)
	if err != nil {
		return listing.Result{}, err
	}
	defer cleanup()
	return listing.Build(ctx, gw, rel, storages, opts)
}

// Stat produces the Node for loc itself (not its children).
func (f *Facade) Stat(ctx context.Context, loc locator.Locator) (fsnode.Node, error) {
	if !f.caps.Has(CapStat) {
		return fsnode.Node{}, tserr.New("stat", tserr.NotSupported, loc.RelPath, nil)
	}
	gw, rel, cleanup, err := f.gatewayFor(ctx, loc)
	if err != nil {
		return fsnode.Node{}, err
	}
	defer cleanup()
	info, err := gw.Stat(ctx, rel)
	if err != nil {
		return fsnode.Node{}, err
	}
	return listing.NodeFromStat(ctx, gw, displayRel(rel), info), nil
}

// ReadStream opens loc for reading, sniffs its media type, and returns a
// StreamResult whose Reader the caller must Close exactly once.
func (f *Facade) ReadStream(ctx context.Context, loc locator.Locator) (StreamResult, error) {
	if !f.caps.Has(CapRead) {
		return StreamResult{}, tserr.New("read-stream", tserr.NotSupported, loc.RelPath, nil)
	}
	gw, rel, cleanup, err := f.gatewayFor(ctx, loc)
	if err != nil {
		return StreamResult{}, err
	}

	info, err := gw.Stat(ctx, rel)
	if err != nil {
		cleanup()
		return StreamResult{}, err
	}
	if info.IsDir() {
		cleanup()
		return StreamResult{}, tserr.New("read-stream", tserr.InvalidPath, rel, nil)
	}

	file, err := gw.Open(ctx, rel)
	if err != nil {
		cleanup()
		return StreamResult{}, err
	}

	mime, err := listing.SniffFile(file)
	if err != nil {
		file.Close()
		cleanup()
		return StreamResult{}, tserr.New("read-stream", tserr.Internal, rel, err)
	}

	return StreamResult{
		Reader:   &closeChain{File: file, after: cleanup},
		MimeType: mime,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}, nil
}

// Snapshots enumerates the snapshots visible at loc, descending by
// timestamp.
func (f *Facade) Snapshots(ctx context.Context, loc locator.Locator) ([]Descriptor, error) {
	if !f.caps.Has(CapSnapshotList) || f.engine == nil {
		return nil, tserr.New("snapshots", tserr.NotSupported, loc.RelPath, nil)
	}
	descs, err := f.engine.Enumerate(ctx, loc.RelPath)
	if err != nil {
		return nil, err
	}
	out := make([]Descriptor, len(descs))
	for i, d := range descs {
		out[i] = Descriptor{
			ID:        d.ID,
			Type:      d.Kind,
			Timestamp: d.Timestamp,
			Name:      d.Name,
			Size:      d.Size,
			Metadata:  d.Metadata,
		}
	}
	return out, nil
}

func displayRel(rel string) string {
	if rel == "." {
		return ""
	}
	return rel
}

// closeChain closes an *os.File and then runs an additional cleanup
// (releasing a snapshot-scoped gateway, if one was opened) exactly once.
type closeChain struct {
	*os.File
	after func() error
}

func (c *closeChain) Close() error {
	err := c.File.Close()
	if afterErr := c.after(); err == nil {
		err = afterErr
	}
	return err
}
