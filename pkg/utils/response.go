package utils

import (
	"encoding/json"
	"net/http"
)

// Success 是成功响应的统一外壳。
type Success struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// RespondJSON 发送JSON响应。payload 无法编码时返回 500。
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"failed to encode response"}` + "\n"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

// RespondSuccess 发送 {"success": true, "data": ...}。
func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, Success{Success: true, Data: data})
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}
