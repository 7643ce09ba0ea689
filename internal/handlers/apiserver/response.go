package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"dm-go/internal/logger"
	"dm-go/internal/services"
)

// Response is the envelope of every API response.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// writeJSONResponse 是一个辅助函数，用于发送 JSON 响应。
func writeJSONResponse(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	resp := Response{Success: statusCode < http.StatusBadRequest, Message: message, Data: data}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		// 头部已发送，只能记录
		logger.Warn("could not encode JSON response", zap.Error(err))
	}
}

// writeJSONError 是一个辅助函数，用于发送 JSON 格式的错误响应。
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, statusCode, message, nil)
}

// writeServiceError maps service errors onto status codes. Storage and unexpected
// errors are logged and answered with fallback so internals do not leak.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var vErr *services.ValidationError
	var sErr *services.StorageError
	switch {
	case errors.As(err, &vErr):
		writeJSONError(w, vErr.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrPermissionDenied):
		writeJSONError(w, "Access denied: admin only", http.StatusForbidden)
	case errors.Is(err, services.ErrInvalidCredentials):
		writeJSONError(w, err.Error(), http.StatusUnauthorized)
	case errors.As(err, &sErr):
		logger.Error("storage failure", zap.String("path", r.URL.Path), zap.String("op", sErr.Op), zap.Error(sErr.Err))
		writeJSONError(w, fallback, http.StatusInternalServerError)
	default:
		logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSONError(w, fallback, http.StatusInternalServerError)
	}
}
