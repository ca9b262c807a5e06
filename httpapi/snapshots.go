package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/SmilyOrg/timeship/locator"
	"github.com/SmilyOrg/timeship/storage"
)

const (
	defaultSnapshotLimit  = 1000
	defaultSnapshotOffset = 0
)

// getSnapshots implements "GET /storages/{storage}/snapshots[/{path...}]".
func (h *handlers) getSnapshots(w http.ResponseWriter, r *http.Request) {
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

	descs, err := fac.Snapshots(r.Context(), loc)
	if err != nil {
		writeError(w, r, err)
		return
	}

	limit := queryInt(r, "limit", defaultSnapshotLimit)
	offset := queryInt(r, "offset", defaultSnapshotOffset)
	descs = paginate(descs, offset, limit)

	writeJSON(w, http.StatusOK, storage.SnapshotList{
		Storage:   storageName,
		Path:      loc.RelPath,
		Snapshots: descs,
	})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// paginate applies offset/limit after the caller's sort.
func paginate(descs []storage.Descriptor, offset, limit int) []storage.Descriptor {
	if offset >= len(descs) {
		return []storage.Descriptor{}
	}
	descs = descs[offset:]
	if limit < len(descs) {
		descs = descs[:limit]
	}
	return descs
}
