// Package httputil holds the JSON response helpers shared by the ingest,
// history and feed handlers.
package httputil

import (
	"encoding/json"
	"net/http"
)

// errorBody is the uniform error envelope of the API.
type errorBody struct {
	Error string `json:"error"`
}

// WriteJSON writes v as a JSON body with the given HTTP status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// WriteError writes the API's error envelope with the given status.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, errorBody{Error: message})
}
