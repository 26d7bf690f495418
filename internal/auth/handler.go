package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Handler exposes the login endpoint running the full gate sequence.
type Handler struct {
	svc     *Service
	session *SessionIssuer
	logger  *zap.SugaredLogger
}

func NewHandler(svc *Service, session *SessionIssuer, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, session: session, logger: logger}
}

// LoginResponse carries the issued session token.
type LoginResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var claim Claim
	if err := json.NewDecoder(r.Body).Decode(&claim); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	email, err := h.svc.Authenticate(r.Context(), claim)
	if err != nil {
		h.logger.Debugw("login rejected", "err", err)
		// Security-sensitive rejections stay deliberately generic: the
		// response never reveals which gate failed.
		switch {
		case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorizedEmail):
			h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid Credentials or Unauthorized Email"})
		case errors.Is(err, ErrInvalidTOTP):
			h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid TOTP Code"})
		case errors.Is(err, ErrFederatedExpired):
			h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Federated session expired"})
		case errors.Is(err, ErrFederatedRevoked):
			h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Federated session revoked"})
		case errors.Is(err, ErrFederatedFailed):
			h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication Failed"})
		default:
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "login failed"})
		}
		return
	}

	token, err := h.session.Issue(email)
	if err != nil {
		h.logger.Errorw("session token issue failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "login failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, LoginResponse{Token: token, Email: email})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
