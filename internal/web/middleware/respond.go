package middleware

import (
	"encoding/json"
	"net/http"
)

// reject writes the JSON error body shared with the web package's ErrorResponse.
func reject(w http.ResponseWriter, status int, msg, action, code string) {
	body := map[string]string{"error": msg, "code": code}
	if action != "" {
		body["action"] = action
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
