// Package hardware implements the machine-fingerprint gate that fronts
// every operator-facing endpoint.
package hardware

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/denisbrodbeck/machineid"
	"go.uber.org/zap"
)

const (
	// CloudEnvID is the sentinel reported when running under a recognized
	// cloud/CI environment, where no stable machine ID exists.
	CloudEnvID = "CLOUD_ENV"
	// ErrorID is the sentinel reported when fingerprint retrieval fails.
	ErrorID = "ERROR_RETRIEVING_ID"

	registrationPrefix = "REGISTER-"
)

var (
	ErrRegistrationDisabled = errors.New("device registration is not configured")
	ErrBadRegistrationCode  = errors.New("invalid device registration code")
)

// Status is the outcome of one gate evaluation.
type Status struct {
	Authorized bool   `json:"authorized"`
	CurrentID  string `json:"currentId"`
}

// Gate checks the local machine fingerprint against the authorized set.
// The set is re-read on every check so membership is always a function of
// current configuration.
type Gate struct {
	logger *zap.SugaredLogger
	// fingerprint is swappable for tests.
	fingerprint func() (string, error)
	overlayPath string
}

func NewGate(logger *zap.SugaredLogger) *Gate {
	overlay := os.Getenv("DEVICE_OVERLAY_FILE")
	if overlay == "" {
		overlay = ".authorized-devices"
	}
	return &Gate{
		logger:      logger,
		fingerprint: machineid.ID,
		overlayPath: overlay,
	}
}

// Check evaluates the gate. It fails closed: any retrieval failure yields
// an unauthorized status with the error sentinel ID.
func (g *Gate) Check() Status {
	// Cloud/CI runners have no hardware identity to pin.
	if os.Getenv("VERCEL") != "" || os.Getenv("CI") != "" {
		g.logger.Infow("cloud/CI environment detected, bypassing hardware lock")
		return Status{Authorized: true, CurrentID: CloudEnvID}
	}

	currentID, err := g.fingerprint()
	if err != nil {
		g.logger.Errorw("hardware fingerprint retrieval failed", "err", err)
		return Status{Authorized: false, CurrentID: ErrorID}
	}

	authorized := g.authorizedIDs()
	// Operator-debug output, intentionally includes the evaluated ID.
	g.logger.Debugw("checking hardware id", "id", currentID, "authorized_count", len(authorized))

	for _, id := range authorized {
		if id == currentID {
			g.logger.Debugw("hardware authorized", "id", currentID)
			return Status{Authorized: true, CurrentID: currentID}
		}
	}
	g.logger.Warnw("hardware not authorized", "id", currentID)
	return Status{Authorized: false, CurrentID: currentID}
}

// RegisterCurrent binds the current machine fingerprint to the authorized
// set, guarded by a registration code of the form REGISTER-<secret>. The
// fingerprint is appended to the overlay file which Check re-reads on
// every evaluation.
func (g *Gate) RegisterCurrent(code string) (string, error) {
	secret := strings.TrimSpace(os.Getenv("DEVICE_REGISTRATION_SECRET"))
	if secret == "" {
		return "", ErrRegistrationDisabled
	}
	if code != registrationPrefix+secret {
		return "", ErrBadRegistrationCode
	}

	currentID, err := g.fingerprint()
	if err != nil {
		return "", fmt.Errorf("retrieve fingerprint: %w", err)
	}
	for _, id := range g.overlayIDs() {
		if id == currentID {
			return currentID, nil
		}
	}

	f, err := os.OpenFile(g.overlayPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("open device overlay: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, currentID); err != nil {
		return "", fmt.Errorf("append device overlay: %w", err)
	}
	g.logger.Infow("device fingerprint registered", "id", currentID)
	return currentID, nil
}

// authorizedIDs merges the env allow-list with the overlay file, fresh on
// each call.
func (g *Gate) authorizedIDs() []string {
	var ids []string
	for _, part := range strings.Split(os.Getenv("AUTHORIZED_HARDWARE_IDS"), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return append(ids, g.overlayIDs()...)
}

func (g *Gate) overlayIDs() []string {
	raw, err := os.ReadFile(g.overlayPath)
	if err != nil {
		return nil
	}
	var ids []string
	for _, line := range strings.Split(string(raw), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}
