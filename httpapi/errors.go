package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/SmilyOrg/timeship/tserr"
)

// envelope is the wire shape of every error response: a human-readable
// message and a status flag that is always false, matched pairwise so a
// client can switch on either field.
type envelope struct {
	Message string `json:"message"`
	Status  bool   `json:"status"`
}

// statusForKind maps a tserr.Kind onto the HTTP status that best fits its
// meaning: bad input is a 400, anything missing is a 404, anything this
// read-only surface refuses to do is a 501, and everything else collapses
// to a 500 rather than leaking internal detail through the status line.
func statusForKind(k tserr.Kind) int {
	switch k {
	case tserr.InvalidPath, tserr.InvalidSnapshot, tserr.InvalidParameter:
		return http.StatusBadRequest
	case tserr.StorageNotFound, tserr.NotFound:
		return http.StatusNotFound
	case tserr.NotSupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as the standard envelope, choosing its status
// from the error's Kind (Internal for anything unclassified).
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := tserr.KindOf(err)
	status := statusForKind(kind)

	msg := kind.String()
	if detail := detailOf(err); detail != "" {
		msg += ": " + detail
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Message: msg, Status: false})
}

// notSupported writes the standard envelope for a reserved write route.
func notSupported(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, tserr.New(r.Method, tserr.NotSupported, r.URL.Path, nil))
}

// errInternal wraps a recovered panic value as an Internal tserr.Error.
func errInternal(recovered any) error {
	return tserr.New("recover", tserr.Internal, "", fmt.Errorf("%v", recovered))
}

// detailOf extracts the detail half of err's message, if err wraps a
// *tserr.Error, falling back to err's own message for anything else.
func detailOf(err error) string {
	if err == nil {
		return ""
	}
	var terr *tserr.Error
	if errors.As(err, &terr) {
		return terr.Detail()
	}
	return err.Error()
}
