package handler

import (
	"net/http"

	"github.com/memberd-dev/memberd/internal/api"
	"github.com/memberd-dev/memberd/internal/domain"
	"github.com/memberd-dev/memberd/internal/middleware"
	"github.com/memberd-dev/memberd/internal/utils"
)

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccountFromContext(r)

	utils.WriteData(w, http.StatusOK, api.NewAccountResponse(*account))
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccountFromContext(r)

	var body api.UpdateProfileRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteError(w, err)
		return
	}

	err := h.auth.UpdateProfile(account.Id, domain.ProfileUpdate{
		FirstName:  body.FirstName,
		LastName:   body.LastName,
		Phone:      body.Phone,
		SchoolName: body.SchoolName,
		Position:   body.Position,
	})
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	updated, err := h.auth.Account(account.Id)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteData(w, http.StatusOK, api.NewAccountResponse(updated))
}
