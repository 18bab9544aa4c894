package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/memberd-dev/memberd/internal/api"
	"github.com/memberd-dev/memberd/internal/errors"
	"github.com/memberd-dev/memberd/internal/utils"
)

func (h *Handler) SetAccountActive(w http.ResponseWriter, r *http.Request) {
	id, err := parseIdParam(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var body api.SetActiveRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteError(w, err)
		return
	}

	if err := h.auth.SetAccountActive(id, *body.Active); err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteData(w, http.StatusOK, map[string]bool{"active": *body.Active})
}

func (h *Handler) GrantRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseIdParam(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	role := chi.URLParam(r, "role")

	if err := h.auth.GrantRole(id, role); err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteData(w, http.StatusCreated, map[string]string{"granted": role})
}

func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseIdParam(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	role := chi.URLParam(r, "role")

	if err := h.auth.RevokeRole(id, role); err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteData(w, http.StatusOK, map[string]string{"revoked": role})
}

func (h *Handler) GetRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.auth.Roles()
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	resp := make([]api.RoleResponse, 0, len(roles))
	for _, role := range roles {
		resp = append(resp, api.RoleResponse{Name: role.Name, Description: role.Description})
	}
	utils.WriteData(w, http.StatusOK, resp)
}

func parseIdParam(r *http.Request, name string) (int64, error) {
	val, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, &errors.ErrorWithStatusCode{
			Message:    fmt.Sprintf("invalid %s: must be an integer", name),
			StatusCode: http.StatusBadRequest,
			Code:       errors.CodeBadRequest,
		}
	}
	return val, nil
}
