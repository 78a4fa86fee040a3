package handlers

import (
	"net/http"
	"time"

	"tour-server/middleware"
	"tour-server/models"
	"tour-server/services"
)

// CookieConfig controls the jwt cookie sent with every new session.
type CookieConfig struct {
	Expires time.Duration
	Secure  bool
}

type AuthHandler struct {
	auth   *services.AuthService
	cookie CookieConfig
}

func NewAuthHandler(auth *services.AuthService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{auth: auth, cookie: cookie}
}

// sendSession sets the jwt cookie and writes the token and user.
func (h *AuthHandler) sendSession(w http.ResponseWriter, status int, session *services.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  time.Now().Add(h.cookie.Expires),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, status, map[string]any{
		"status": "success",
		"token":  session.Token,
		"data":   map[string]any{"user": session.User},
	})
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var input models.SignupInput
	if err := decodeJSON(r, &input); err != nil {
		fail(w, err)
		return
	}
	session, err := h.auth.Signup(r.Context(), input)
	if err != nil {
		fail(w, err)
		return
	}
	h.sendSession(w, http.StatusCreated, session)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &input); err != nil {
		fail(w, err)
		return
	}
	session, err := h.auth.Login(r.Context(), input.Email, input.Password)
	if err != nil {
		fail(w, err)
		return
	}
	h.sendSession(w, http.StatusOK, session)
}

// Logout overwrites the cookie with a value that never verifies.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "loggedout",
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Second),
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &input); err != nil {
		fail(w, err)
		return
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	resetBase := scheme + "://" + r.Host + "/api/v1/users/resetPassword/"
	if err := h.auth.ForgotPassword(r.Context(), input.Email, resetBase); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Token sent to email!",
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var input models.PasswordInput
	if err := decodeJSON(r, &input); err != nil {
		fail(w, err)
		return
	}
	session, err := h.auth.ResetPassword(r.Context(), muxVar(r, "token"), input)
	if err != nil {
		fail(w, err)
		return
	}
	h.sendSession(w, http.StatusOK, session)
}

func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		fail(w, err)
		return
	}
	var input struct {
		PasswordCurrent string `json:"passwordCurrent"`
		models.PasswordInput
	}
	if err := decodeJSON(r, &input); err != nil {
		fail(w, err)
		return
	}
	session, err := h.auth.UpdatePassword(r.Context(), user.ID, input.PasswordCurrent, input.PasswordInput)
	if err != nil {
		fail(w, err)
		return
	}
	h.sendSession(w, http.StatusOK, session)
}
