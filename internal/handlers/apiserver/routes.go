package apiserver

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterMessageRoutes mounts the direct-message endpoints on an authenticated router.
func RegisterMessageRoutes(api *mux.Router, h *MessageHandler) {
	api.HandleFunc("/message", h.SendMessageHandler).Methods(http.MethodPost)
	api.HandleFunc("/get-message", h.GetMessagesHandler).Methods(http.MethodPost)
	api.HandleFunc("/all-message", h.GetAllMessagesHandler).Methods(http.MethodGet)

	// 管理员路由; the service rejects non-admin callers
	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/message", h.AdminSendMessageHandler).Methods(http.MethodPost)
	admin.HandleFunc("/get-message", h.AdminGetMessagesHandler).Methods(http.MethodPost)
	admin.HandleFunc("/all-message", h.AdminGetAllMessagesHandler).Methods(http.MethodGet)
}

// RegisterAuthRoutes mounts login on the public router and logout on the authenticated one.
func RegisterAuthRoutes(public, api *mux.Router, h *AuthHandler) {
	public.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.LogoutHandler).Methods(http.MethodPost)
}
