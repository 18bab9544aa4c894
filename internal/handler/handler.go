package handler

import (
	"net/http"

	"github.com/memberd-dev/memberd/internal/config"
	"github.com/memberd-dev/memberd/internal/service"
	"github.com/memberd-dev/memberd/internal/utils"
)

type Handler struct {
	auth service.AuthService
	cfg  *config.Config
}

func New(auth service.AuthService, cfg *config.Config) *Handler {
	return &Handler{auth, cfg}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	utils.WriteData(w, http.StatusOK, map[string]string{"status": "ok"})
}
