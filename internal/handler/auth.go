package handler

import (
	"net/http"

	"github.com/memberd-dev/memberd/internal/api"
	"github.com/memberd-dev/memberd/internal/domain"
	"github.com/memberd-dev/memberd/internal/errors"
	"github.com/memberd-dev/memberd/internal/utils"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body api.RegisterRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteError(w, err)
		return
	}

	err := h.auth.Register(domain.Registration{
		Email:      body.Email,
		Password:   body.Password,
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

	utils.WriteData(w, http.StatusCreated, map[string]string{
		"message": "Registered. Check your inbox for a verification link",
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body api.LoginRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteError(w, err)
		return
	}

	account, pair, err := h.auth.Login(domain.Credentials{Email: body.Email, Password: body.Password})
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	h.setAccessCookie(w, pair.AccessToken)

	utils.WriteData(w, http.StatusOK, api.LoginResponse{
		Account:      api.NewAccountResponse(account),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body api.RefreshRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteError(w, err)
		return
	}

	account, pair, err := h.auth.Refresh(body.RefreshToken)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	h.setAccessCookie(w, pair.AccessToken)

	utils.WriteData(w, http.StatusOK, api.LoginResponse{
		Account:      api.NewAccountResponse(account),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// VerifyEmail consumes the emailed link. Safe to open twice: the second visit
// reports success without changing anything.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		utils.WriteError(w, &errors.ErrorWithStatusCode{
			Message:    "Missing token query parameter",
			StatusCode: http.StatusBadRequest,
			Code:       errors.CodeBadRequest,
		})
		return
	}

	if err := h.auth.VerifyEmail(tokenStr); err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteData(w, http.StatusOK, map[string]string{"message": "Email verified. You can use your account now"})
}

func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var body api.ResendVerificationRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteError(w, err)
		return
	}

	if err := h.auth.ResendVerification(body.Email); err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteData(w, http.StatusOK, map[string]string{
		"message": "If the address is registered and unverified, a new link was sent",
	})
}

// Logout is client-side token discard; the server holds no session state.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     "accessToken",
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.Public.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	utils.WriteData(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *Handler) setAccessCookie(w http.ResponseWriter, accessToken string) {
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     "accessToken",
		Value:    accessToken,
		MaxAge:   int(h.cfg.AccessTokenTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.Public.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
