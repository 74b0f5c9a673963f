package models

import (
	"encoding/json"
	"net/http"
)

// WriteProblem — единый формат ошибок (application/problem+json).
func WriteProblem(w http.ResponseWriter, status int, title, detail string, extra map[string]string) {
	w.Header().Set("Content-Type", "application/problem+json; charset=utf-8")
	w.WriteHeader(status)
	body := map[string]any{
		"status": status,
		"title":  title,
		"detail": detail,
	}
	for k, v := range extra {
		body[k] = v
	}
	_ = json.NewEncoder(w).Encode(body)
}
