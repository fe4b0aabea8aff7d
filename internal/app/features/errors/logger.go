// internal/app/features/errors/logger.go
package errors

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// ErrorLogger logs a handler failure with request context and then shows
// the user a friendly message. JSON callers get {"error": msg}.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger wraps logger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: logger}
}

// LogServerError logs at error level and responds 500.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, logMsg string, err error, userMsg, backURL string) {
	e.log.Error(logMsg, append(reqFields(r), zap.Error(err))...)
	if wantsJSON(r) {
		writeJSON(w, http.StatusInternalServerError, userMsg)
		return
	}
	RenderServerError(w, r, userMsg, backURL)
}

// LogBadRequest logs at warn level and responds 400.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, logMsg string, err error, userMsg, backURL string) {
	e.log.Warn(logMsg, append(reqFields(r), zap.Error(err))...)
	if wantsJSON(r) {
		writeJSON(w, http.StatusBadRequest, userMsg)
		return
	}
	RenderBadRequest(w, r, userMsg, backURL)
}

func reqFields(r *http.Request) []zap.Field {
	return []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
