package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"dm-go/internal/config"
	"dm-go/internal/imtypes"
	"dm-go/internal/logger"
	"dm-go/internal/middleware"
	"dm-go/internal/models"
	"dm-go/internal/services"
)

const (
	defaultMaxMemory = 32 << 20 // 32 MB default max memory for multipart forms
	mediaFormField   = "media"
)

// MessageHandler 封装了私信相关的 HTTP 处理器方法。
type MessageHandler struct {
	messaging      services.MessagingService
	storageService imtypes.StorageService
	cfg            config.StorageConfig
}

// NewMessageHandler 创建一个新的 MessageHandler 实例。
func NewMessageHandler(messaging services.MessagingService, storageService imtypes.StorageService, cfg config.StorageConfig) *MessageHandler {
	return &MessageHandler{
		messaging:      messaging,
		storageService: storageService,
		cfg:            cfg,
	}
}

// SendMessageRequest is the JSON form of a send. Multipart requests carry the same
// fields as form values plus files under "media".
type SendMessageRequest struct {
	ReceiverID  string             `json:"receiverId"`
	MessageType string             `json:"messageType"`
	Content     string             `json:"content,omitempty"`
	PostID      string             `json:"postId,omitempty"`
	Media       []models.MediaFile `json:"media,omitempty"`
}

// ThreadRequest is the body of the get-message endpoints.
type ThreadRequest struct {
	UserID string `json:"userId"`
}

func (h *MessageHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, false)
}

func (h *MessageHandler) AdminSendMessageHandler(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, true)
}

func (h *MessageHandler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	h.thread(w, r, false)
}

func (h *MessageHandler) AdminGetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	h.thread(w, r, true)
}

func (h *MessageHandler) GetAllMessagesHandler(w http.ResponseWriter, r *http.Request) {
	h.allThreads(w, r, false)
}

func (h *MessageHandler) AdminGetAllMessagesHandler(w http.ResponseWriter, r *http.Request) {
	h.allThreads(w, r, true)
}

func (h *MessageHandler) send(w http.ResponseWriter, r *http.Request, asAdmin bool) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		writeJSONError(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}
	// 权限检查先于解析和上传
	if asAdmin && !caller.IsAdmin() {
		writeServiceError(w, r, services.ErrPermissionDenied, "Failed to send message")
		return
	}

	var (
		req      SendMessageRequest
		uploaded []*imtypes.FileInfo
		err      error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		req, uploaded, err = h.readMultipart(w, r)
	} else {
		err = json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			err = &services.ValidationError{Field: "body", Message: "request body must be valid JSON"}
		}
	}
	if err != nil {
		h.cleanup(r.Context(), uploaded)
		writeServiceError(w, r, err, "Failed to send message")
		return
	}

	payload, err := services.ParsePayload(req.MessageType, req.Content, req.Media, req.PostID)
	if err != nil {
		h.cleanup(r.Context(), uploaded)
		writeServiceError(w, r, err, "Failed to send message")
		return
	}

	view, err := h.messaging.Send(r.Context(), caller, services.SendRequest{
		ReceiverID: req.ReceiverID,
		Payload:    payload,
		AsAdmin:    asAdmin,
	})
	if err != nil {
		h.cleanup(r.Context(), uploaded)
		writeServiceError(w, r, err, "Failed to send message")
		return
	}
	writeJSONResponse(w, http.StatusCreated, "Message sent successfully", view)
}

// readMultipart parses form fields and stores the attached media files. Files are
// only stored for image messages.
func (h *MessageHandler) readMultipart(w http.ResponseWriter, r *http.Request) (SendMessageRequest, []*imtypes.FileInfo, error) {
	var req SendMessageRequest

	maxFiles := h.cfg.MaxMediaFiles
	if maxFiles <= 0 {
		maxFiles = 1
	}
	maxFileSize := h.cfg.MaxFileSizeMB << 20
	if maxFileSize <= 0 {
		maxFileSize = defaultMaxMemory
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFileSize*int64(maxFiles)+(1<<20))

	if err := r.ParseMultipartForm(defaultMaxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, nil, &services.ValidationError{Field: mediaFormField, Message: fmt.Sprintf("upload exceeds %d MB per file", maxFileSize>>20)}
		}
		return req, nil, &services.ValidationError{Field: "body", Message: "malformed multipart form"}
	}

	req.ReceiverID = r.FormValue("receiverId")
	req.MessageType = r.FormValue("messageType")
	req.Content = r.FormValue("content")
	req.PostID = r.FormValue("postId")

	files := r.MultipartForm.File[mediaFormField]
	if len(files) > maxFiles {
		return req, nil, &services.ValidationError{Field: mediaFormField, Message: fmt.Sprintf("at most %d file(s) allowed", maxFiles)}
	}
	if models.MessageType(req.MessageType) != models.ImageMessage {
		return req, nil, nil
	}

	var uploaded []*imtypes.FileInfo
	for _, fh := range files {
		if fh.Size > maxFileSize {
			return req, uploaded, &services.ValidationError{Field: mediaFormField, Message: fmt.Sprintf("%s exceeds %d MB", fh.Filename, maxFileSize>>20)}
		}
		info, err := h.store(r.Context(), fh)
		if err != nil {
			return req, uploaded, err
		}
		uploaded = append(uploaded, info)
		req.Media = append(req.Media, models.MediaFile{Path: info.URL, MimeType: info.MimeType})
	}
	return req, uploaded, nil
}

func (h *MessageHandler) store(ctx context.Context, fh *multipart.FileHeader) (*imtypes.FileInfo, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer file.Close()

	mimeType := fh.Header.Get("Content-Type")
	info, err := h.storageService.UploadFile(ctx, file, fh.Size, fh.Filename, mimeType)
	if err != nil {
		return nil, fmt.Errorf("store upload %s: %w", fh.Filename, err)
	}
	logger.Debug("stored message media", zap.String("file", fh.Filename), zap.Int64("size", fh.Size), zap.String("url", info.URL))
	return info, nil
}

// cleanup removes files stored for a send that did not go through.
func (h *MessageHandler) cleanup(ctx context.Context, uploaded []*imtypes.FileInfo) {
	for _, info := range uploaded {
		if err := h.storageService.DeleteFile(ctx, info.Path); err != nil {
			logger.Warn("could not remove orphaned upload", zap.String("path", info.Path), zap.Error(err))
		}
	}
}

func (h *MessageHandler) thread(w http.ResponseWriter, r *http.Request, asAdmin bool) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		writeJSONError(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	var req ThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid userId: request body must be valid JSON", http.StatusBadRequest)
		return
	}

	messages, err := h.messaging.GetThread(r.Context(), caller, req.UserID, asAdmin)
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch messages")
		return
	}
	if len(messages) == 0 {
		writeJSONResponse(w, http.StatusOK, "No messages found", messages)
		return
	}
	writeJSONResponse(w, http.StatusOK, "Messages fetched successfully", messages)
}

func (h *MessageHandler) allThreads(w http.ResponseWriter, r *http.Request, asAdmin bool) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		writeJSONError(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	conversations, err := h.messaging.GetAllThreads(r.Context(), caller, r.URL.Query().Get("searchQuery"), asAdmin)
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch conversations")
		return
	}
	writeJSONResponse(w, http.StatusOK, "Conversations fetched successfully", conversations)
}
