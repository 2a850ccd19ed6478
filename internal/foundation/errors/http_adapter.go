package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// HTTPErrorAdapter writes classified errors as JSON responses.
type HTTPErrorAdapter struct {
	logger *slog.Logger
}

// NewHTTPErrorAdapter creates an adapter. A nil logger uses slog.Default().
func NewHTTPErrorAdapter(logger *slog.Logger) *HTTPErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorAdapter{logger: logger}
}

// HTTPErrorResponse is the JSON error payload.
type HTTPErrorResponse struct {
	Error     string         `json:"error"`
	Code      string         `json:"code,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
}

// StatusCodeFor maps an error to an HTTP status.
func (a *HTTPErrorAdapter) StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	ce, ok := AsClassified(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch ce.Category() {
	case CategoryValidation, CategoryConfig:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryGeneration, CategoryNetwork, CategoryPublish:
		return http.StatusBadGateway
	case CategoryParse, CategoryRender:
		return http.StatusUnprocessableEntity
	case CategoryCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FormatErrorResponse builds the payload for err.
func (a *HTTPErrorAdapter) FormatErrorResponse(err error) HTTPErrorResponse {
	if err == nil {
		return HTTPErrorResponse{}
	}
	ce, ok := AsClassified(err)
	if !ok {
		return HTTPErrorResponse{Error: err.Error()}
	}
	resp := HTTPErrorResponse{Error: ce.Message(), Code: string(ce.Category()), Retryable: ce.CanRetry()}
	if len(ce.Context()) > 0 {
		resp.Details = map[string]any(ce.Context())
	}
	return resp
}

// WriteErrorResponse writes err as JSON and logs it.
func (a *HTTPErrorAdapter) WriteErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status := a.StatusCodeFor(err)
	body, jerr := json.Marshal(a.FormatErrorResponse(err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if jerr != nil {
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}
	_, _ = w.Write(body)

	if ce, ok := AsClassified(err); ok {
		a.logger.Log(r.Context(), levelFor(ce.Severity()), ce.Error(), "path", r.URL.Path)
		return
	}
	if err != nil {
		a.logger.Error(err.Error(), "path", r.URL.Path)
	}
}
