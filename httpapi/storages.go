package httpapi

import "net/http"

// listStorages implements "GET /storages".
func (h *handlers) listStorages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reg.Names())
}
