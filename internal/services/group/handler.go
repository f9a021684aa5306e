package group

import (
	"net/http"

	"littlelemon/internal/access"
	"littlelemon/internal/apperr"
	"littlelemon/internal/logger"
	"littlelemon/internal/web"
)

type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// Register mounts /groups/{group}/users for the manager and delivery-crew groups.
// Only GET, POST and DELETE are routed.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /groups/{group}/users", h.ListMembers)
	mux.HandleFunc("POST /groups/{group}/users", h.AddMember)
	mux.HandleFunc("DELETE /groups/{group}/users/{id}", h.RemoveMember)
}

type addMemberRequest struct {
	UserID int64 `json:"user_id"`
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	g, err := groupFromPath(r)
	if err != nil {
		web.WriteError(w, r, h.logger, "list_group_members_failed", err)
		return
	}
	users, err := h.service.Members(r.Context(), access.FromContext(r.Context()), g)
	if err != nil {
		web.WriteError(w, r, h.logger, "list_group_members_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, users)
}

func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	g, err := groupFromPath(r)
	if err != nil {
		web.WriteError(w, r, h.logger, "add_group_member_failed", err)
		return
	}
	var req addMemberRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, r, h.logger, "add_group_member_failed", err)
		return
	}
	user, err := h.service.Add(r.Context(), access.FromContext(r.Context()), g, req.UserID)
	if err != nil {
		web.WriteError(w, r, h.logger, "add_group_member_failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, user)
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	g, err := groupFromPath(r)
	if err != nil {
		web.WriteError(w, r, h.logger, "remove_group_member_failed", err)
		return
	}
	userID, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, r, h.logger, "remove_group_member_failed", err)
		return
	}
	if err := h.service.Remove(r.Context(), access.FromContext(r.Context()), g, userID); err != nil {
		web.WriteError(w, r, h.logger, "remove_group_member_failed", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func groupFromPath(r *http.Request) (Group, error) {
	g, ok := Lookup(r.PathValue("group"))
	if !ok {
		return Group{}, apperr.NotFound("Group")
	}
	return g, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	if err := web.WriteJSON(w, status, v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", logger.RequestIDFromContext(r.Context()), err, nil)
	}
}
