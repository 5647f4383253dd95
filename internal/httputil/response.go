package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/banshee-data/trialviewer/internal/monitoring"
)

var logf = monitoring.Tagged("httputil")

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// WriteJSON writes data as JSON with the given status code. A value that
// cannot be encoded is answered with a 500 instead.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		logf("failed to encode json response: %v", err)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorBody{Error: "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

// WriteJSONOK writes data with 200 OK.
func WriteJSONOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSONError writes msg as an ErrorBody.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorBody{Error: msg})
}

func MethodNotAllowed(w http.ResponseWriter) {
	WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// ErrorStatus reports errors matching Err (by errors.Is) with Status.
type ErrorStatus struct {
	Err    error
	Status int
}

// StatusFor returns the status of the first entry in table that err matches,
// or 500 when none does.
func StatusFor(err error, table []ErrorStatus) int {
	for _, e := range table {
		if errors.Is(err, e.Err) {
			return e.Status
		}
	}
	return http.StatusInternalServerError
}

// WriteError writes err with the status StatusFor picks. Server errors are
// logged; client errors are the caller's problem.
func WriteError(w http.ResponseWriter, err error, table []ErrorStatus) {
	status := StatusFor(err, table)
	if status >= http.StatusInternalServerError {
		logf("%d: %v", status, err)
	}
	WriteJSONError(w, status, err.Error())
}
