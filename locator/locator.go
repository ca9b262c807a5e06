// Package locator parses the URL-shaped address of a node — a storage name,
// a relative path inside that storage, and an optional snapshot id — and
// guarantees the relative path can never leave its storage root before any
// filesystem call is made.
//
// The wire form is "<storage>://<relpath>[?snapshot=<id>]"; in HTTP routes
// storage appears as a path segment and relpath as the remainder, following
// the same scheme+path+query shape the teacher's fs.Fs remotes use for
// "[remote]/path/to/thing".
package locator

import (
	"net/url"
	"path"
	"strings"

	"github.com/SmilyOrg/timeship/tserr"
)

// Locator names a node and, optionally, the snapshot in which to observe
// it. It is a value type: built per request, never retained.
type Locator struct {
	Storage  string
	RelPath  string // always normalized: no leading/trailing slash, no ".." segment, "" means the storage root
	Snapshot string // "" means the live tree
}

// Normalize strips a leading slash, collapses duplicate slashes, drops "."
// segments, and rejects ".." segments, embedded NUL bytes, and any residual
// absolute form. The empty string and "/" both normalize to "".
func Normalize(raw string) (string, error) {
	if strings.IndexByte(raw, 0) >= 0 {
		return "", tserr.New("normalize", tserr.InvalidPath, raw, errInvalid("contains a NUL byte"))
	}

	trimmed := strings.TrimPrefix(raw, "/")
	if strings.HasPrefix(trimmed, "/") {
		// A second leading slash (e.g. the caller supplied "//etc/passwd")
		// is still absolute after stripping one level — reject outright
		// rather than silently stripping further.
		return "", tserr.New("normalize", tserr.InvalidPath, raw, errInvalid("absolute path"))
	}

	if trimmed == "" {
		return "", nil
	}

	segments := strings.Split(trimmed, "/")
	clean := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", tserr.New("normalize", tserr.InvalidPath, raw, errInvalid("parent segment not allowed"))
		default:
			clean = append(clean, seg)
		}
	}
	if len(clean) == 0 {
		return "", nil
	}
	return path.Join(clean...), nil
}

// Parse builds a Locator from the pieces of an HTTP route: the {storage}
// path segment, the raw (percent-encoded) path tail, and the raw query
// string. It only validates format — whether storageName actually names a
// registered storage is the Storage Facade's concern, not the path model's.
func Parse(storageName, rawPathTail, rawQuery string) (Locator, error) {
	decoded, err := url.PathUnescape(rawPathTail)
	if err != nil {
		return Locator{}, tserr.New("parse", tserr.InvalidPath, rawPathTail, err)
	}

	rel, err := Normalize(decoded)
	if err != nil {
		return Locator{}, err
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Locator{}, tserr.New("parse", tserr.InvalidParameter, rel, err)
	}

	snap := values.Get("snapshot")
	if snap != "" {
		if strings.IndexByte(snap, ':') < 0 {
			return Locator{}, tserr.New("parse", tserr.InvalidSnapshot, rel, errInvalid("snapshot id must be \"<kind>:<name>\""))
		}
	}

	return Locator{
		Storage:  storageName,
		RelPath:  rel,
		Snapshot: snap,
	}, nil
}

// Child returns the Locator for a direct child of l named basename. The
// snapshot query is dropped on the emitted child locator — the client
// already carries the snapshot id alongside the listing it came from and
// re-asserts it on the next request rather than having it echoed back on
// every entry.
func (l Locator) Child(basename string) Locator {
	rel := basename
	if l.RelPath != "" {
		rel = path.Join(l.RelPath, basename)
	}
	return Locator{Storage: l.Storage, RelPath: rel}
}

// String renders the wire form "<storage>://<relpath>?snapshot=<id>".
func (l Locator) String() string {
	s := l.Storage + "://" + l.RelPath
	if l.Snapshot != "" {
		s += "?snapshot=" + url.QueryEscape(l.Snapshot)
	}
	return s
}

type invalidError string

func (e invalidError) Error() string { return string(e) }

func errInvalid(msg string) error { return invalidError(msg) }
