// Package listing implements the Listing Pipeline: directory enumeration,
// node enrichment, sort, filter, and optional recursive total-size
// aggregation.
//
// The enumeration and enrichment stages are grounded on the teacher's
// backend/local/local.go Fs.List (fail-soft directory read: a per-entry
// stat failure is skipped, not fatal); the recursive total-size stage is
// grounded on the teacher's errgroup-based fan-out in
// backend/raid3/helpers.go.
package listing

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"runtime"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/SmilyOrg/timeship/fsnode"
	"golang.org/x/sync/errgroup"
)

// Gateway is the subset of backend/local.Gateway the listing pipeline
// needs. Declaring it here (rather than importing the concrete type) keeps
// this package usable against any rooted gateway, live or snapshot-scoped.
type Gateway interface {
	ReadDir(ctx context.Context, rel string) ([]fs.DirEntry, error)
	Stat(ctx context.Context, rel string) (fs.FileInfo, error)
	Lstat(ctx context.Context, rel string) (fs.FileInfo, error)
	Open(ctx context.Context, rel string) (*os.File, error)
}

// Options carries the query parameters that shape a listing.
type Options struct {
	Type      string // "file" | "dir" | ""
	Filter    string // substring pattern; "*" is stripped
	Search    string // case-insensitive substring
	TotalSize bool
}

// Result is the directory listing response shape.
type Result struct {
	Dirname   string        `json:"dirname"`
	ReadOnly  bool          `json:"read_only"`
	Storages  []string      `json:"storages"`
	Files     []fsnode.Node `json:"files"`
	TotalSize *int64        `json:"total_size,omitempty"`
}

// Build runs the full pipeline for the directory at rel and returns the
// listing response.
func Build(ctx context.Context, gw Gateway, rel string, storages []string, opts Options) (Result, error) {
	entries, err := gw.ReadDir(ctx, rel)
	if err != nil {
		return Result{}, err
	}

	nodes := make([]fsnode.Node, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			// Fail-soft: an entry removed or replaced between ReadDir and
			// Info is dropped from the listing rather than aborting it.
			continue
		}
		node := nodeFrom(rel, e.Name(), info)
		if node.Type == fsnode.File {
			enrichMimeType(ctx, gw, childRel(rel, e.Name()), &node)
		}
		nodes = append(nodes, node)
	}

	sortNodes(nodes)
	nodes = filterNodes(nodes, opts)

	result := Result{
		Dirname:  displayDirname(rel),
		ReadOnly: true,
		Storages: storages,
		Files:    nodes,
	}

	if opts.TotalSize {
		total, err := TotalSize(ctx, gw, rel)
		if err == nil {
			result.TotalSize = &total
		}
	}

	return result, nil
}

// NodeFromStat builds the Node for a single file or directory given its
// already-resolved fs.FileInfo, sniffing its media type if it is a file.
func NodeFromStat(ctx context.Context, gw Gateway, rel string, info fs.FileInfo) fsnode.Node {
	displayPath := rel
	basename := info.Name()
	if rel == "" {
		basename = ""
	}
	node := fsnode.Node{
		Path:         displayPath,
		Basename:     basename,
		Extension:    extensionOf(basename),
		LastModified: info.ModTime().Unix(),
	}
	if info.IsDir() {
		node.Type = fsnode.Dir
		node.Size = 0
	} else {
		node.Type = fsnode.File
		node.Size = info.Size()
		enrichMimeType(ctx, gw, rel, &node)
	}
	return node
}

func enrichMimeType(ctx context.Context, gw Gateway, rel string, node *fsnode.Node) {
	f, err := gw.Open(ctx, rel)
	if err != nil {
		return
	}
	defer f.Close()
	mime, err := SniffFile(f)
	if err != nil {
		return
	}
	node.MimeType = mime
}

func childRel(parent, name string) string {
	if parent == "" {
		return name
	}
	return path.Join(parent, name)
}

func displayDirname(rel string) string {
	if rel == "." {
		return ""
	}
	return rel
}

func nodeFrom(parentRel, name string, info fs.FileInfo) fsnode.Node {
	node := fsnode.Node{
		Path:         childRel(displayDirname(parentRel), name),
		Basename:     name,
		Extension:    extensionOf(name),
		LastModified: info.ModTime().Unix(),
	}
	if info.IsDir() {
		node.Type = fsnode.Dir
		node.Size = 0
	} else {
		node.Type = fsnode.File
		node.Size = info.Size()
	}
	return node
}

// extensionOf returns the run of letters after the final '.' in name, or
// "" when there is none, or when the characters after the final '.' are
// not all letters (e.g. "archive.tar.gz" -> "gz", "data.v2" -> "").
func extensionOf(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	ext := name[i+1:]
	for _, r := range ext {
		if !unicode.IsLetter(r) {
			return ""
		}
	}
	return ext
}

// sortNodes orders directories before files, then by basename ascending,
// stably.
func sortNodes(nodes []fsnode.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if (a.Type == fsnode.Dir) != (b.Type == fsnode.Dir) {
			return a.Type == fsnode.Dir
		}
		return a.Basename < b.Basename
	})
}

// filterNodes applies type/filter/search after sorting, preserving order.
func filterNodes(nodes []fsnode.Node, opts Options) []fsnode.Node {
	pattern := strings.ReplaceAll(opts.Filter, "*", "")
	search := strings.ToLower(opts.Search)
	if opts.Type == "" && pattern == "" && search == "" {
		return nodes
	}
	out := make([]fsnode.Node, 0, len(nodes))
	for _, n := range nodes {
		if opts.Type == "file" && n.Type != fsnode.File {
			continue
		}
		if opts.Type == "dir" && n.Type != fsnode.Dir {
			continue
		}
		if pattern != "" && !strings.Contains(n.Basename, pattern) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(n.Basename), search) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// TotalSize sums the sizes of regular files under rel, walking
// concurrently via errgroup. Symbolic links are not followed. The walk is
// fail-soft: a per-directory read error or per-entry stat error is logged
// and simply contributes nothing to the sum, rather than aborting it.
func TotalSize(ctx context.Context, gw Gateway, rel string) (int64, error) {
	var total int64
	var mu sync.Mutex

	limit := runtime.GOMAXPROCS(0) * 4
	if limit < 4 {
		limit = 4
	}
	sem := make(chan struct{}, limit)

	g, gctx := errgroup.WithContext(ctx)

	var walk func(dir string)
	walk = func(dir string) {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			entries, err := gw.ReadDir(gctx, dir)
			if err != nil {
				slog.Default().Warn("total size: directory read failed", "path", dir, "error", err)
				return nil
			}
			for _, e := range entries {
				child := childRel(dir, e.Name())
				if e.IsDir() {
					walk(child)
					continue
				}

				sem <- struct{}{}
				lfi, lerr := gw.Lstat(gctx, child)
				<-sem
				if lerr != nil {
					slog.Default().Warn("total size: stat failed", "path", child, "error", lerr)
					continue
				}
				if lfi.Mode()&fs.ModeSymlink != 0 {
					continue
				}
				mu.Lock()
				total += lfi.Size()
				mu.Unlock()
			}
			return nil
		})
	}
	walk(rel)
	_ = g.Wait()

	return total, nil
}
