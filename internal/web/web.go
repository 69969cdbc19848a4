// Package web holds the small HTTP response helpers shared by the fixture
// server.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func JSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("json encode", "err", err)
	}
}

func HTML(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Error("html write", "err", err)
	}
}

func Error(w http.ResponseWriter, code int, err error) {
	ErrorCode(w, code, "error", err.Error(), nil)
}

func ErrorCode(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	payload := map[string]any{
		"error": message,
		"code":  code,
	}
	if len(details) > 0 {
		payload["details"] = details
	}
	JSON(w, status, payload)
}
