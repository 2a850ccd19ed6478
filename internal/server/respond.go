package server

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// writeJSON encodes v into a buffer first so a failed encode never sends a
// partial body.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// writeJSONPretty indents the body when the request asks for ?pretty=1.
func writeJSONPretty(w http.ResponseWriter, r *http.Request, status int, v any) error {
	if p := r.URL.Query().Get("pretty"); p != "1" && p != "true" {
		return writeJSON(w, status, v)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return writeJSON(w, status, v)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, err = w.Write(append(b, '\n'))
	return err
}
