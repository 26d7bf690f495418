package hardware

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Handler exposes the device self-registration endpoint.
type Handler struct {
	gate   *Gate
	logger *zap.SugaredLogger
}

func NewHandler(gate *Gate, logger *zap.SugaredLogger) *Handler {
	return &Handler{gate: gate, logger: logger}
}

// RegisterDeviceRequest carries the operator-entered registration code.
type RegisterDeviceRequest struct {
	Code string `json:"code"`
}

func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	id, err := h.gate.RegisterCurrent(req.Code)
	if err != nil {
		h.logger.Warnw("device registration rejected", "err", err)
		switch {
		case errors.Is(err, ErrRegistrationDisabled), errors.Is(err, ErrBadRegistrationCode):
			h.writeJSON(w, http.StatusForbidden, map[string]string{"error": "registration denied"})
		default:
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
		}
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"currentId": id})
}

// Middleware blocks every request on an unauthorized machine. Fails closed.
func Middleware(gate *Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			status := gate.Check()
			if !status.Authorized {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized hardware"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
