package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/SmilyOrg/timeship/fsnode"
	"github.com/SmilyOrg/timeship/listing"
	"github.com/SmilyOrg/timeship/locator"
	"github.com/SmilyOrg/timeship/storage"
)

// getNode implements "GET /storages/{storage}/nodes[/{path...}]", the
// single endpoint that unifies directory listing, file metadata, and byte
// streaming.
func (h *handlers) getNode(w http.ResponseWriter, r *http.Request) {
	storageName := chi.URLParam(r, "storage")
	fac, err := h.reg.MustGet(storageName)
	if err != nil {
		writeError(w, r, err)
		return
	}

	loc, err := locator.Parse(storageName, chi.URLParam(r, "*"), r.URL.RawQuery)
	if err != nil {
		writeError(w, r, err)
		return
	}

	node, err := fac.Stat(r.Context(), loc)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if node.Type == fsnode.Dir {
		h.writeListing(w, r, fac, loc)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, node)
		return
	}

	h.writeStream(w, r, fac, loc, node)
}

// writeListing runs the listing pipeline for loc (always a directory at
// this point) and serializes it as JSON.
func (h *handlers) writeListing(w http.ResponseWriter, r *http.Request, fac *storage.Facade, loc locator.Locator) {
	opts := listing.Options{
		Type:      r.URL.Query().Get("type"),
		Filter:    r.URL.Query().Get("filter"),
		Search:    r.URL.Query().Get("search"),
		TotalSize: strings.Contains(r.URL.Query().Get("fields"), "total_size"),
	}
	result, err := fac.List(r.Context(), loc, h.reg.Names(), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeStream opens loc and copies its bytes to w, honoring the download
// query parameter and the sniffed media type / exact byte length.
func (h *handlers) writeStream(w http.ResponseWriter, r *http.Request, fac *storage.Facade, loc locator.Locator, node fsnode.Node) {
	stream, err := fac.ReadStream(r.Context(), loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer stream.Reader.Close()

	w.Header().Set("Content-Type", stream.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(stream.Size, 10))
	if r.URL.Query().Get("download") == "true" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", node.Basename))
	}
	w.WriteHeader(http.StatusOK)

	// Cancellation is cooperative: if the client disconnects mid-copy,
	// io.Copy returns once the broken connection surfaces a write error,
	// and the deferred Close above releases the source handle.
	_, _ = io.Copy(w, stream.Reader)
}

// wantsJSON reports whether the request asked for metadata/listing JSON
// rather than a raw byte stream: only an Accept header naming
// "application/json" selects the JSON variant, everything else streams.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
