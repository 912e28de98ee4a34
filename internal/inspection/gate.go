// Package inspection exposes the inspection listing/detail API and the
// state gate deciding which actions are valid for a caller against an
// inspection in its current status.
package inspection

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/rebuildcl/inspector/internal/api"
	"github.com/rebuildcl/inspector/internal/lifecycle"
	"github.com/rebuildcl/inspector/internal/models"
)

var (
	// ErrAlreadyTaken means another inspector won the race for a requested
	// inspection. Surfaced as a user-facing conflict, never a crash.
	ErrAlreadyTaken = errors.New("inspection already taken")

	// ErrSessionExpired maps a 401 from the backend.
	ErrSessionExpired = errors.New("session expired")

	// ErrForbidden maps a 403: the caller is neither the assigned
	// inspector nor the owner.
	ErrForbidden = errors.New("not allowed for this inspection")

	// ErrNotFound maps a 404.
	ErrNotFound = errors.New("inspection not found")
)

// Role is the caller's relationship to an inspection.
type Role int

const (
	RoleNone Role = iota
	RoleInspector
	RoleOwner
)

// Action is a client-initiated operation the gate can permit.
type Action string

const (
	ActionTake     Action = "take"
	ActionReport   Action = "report"
	ActionSign     Action = "sign"
	ActionFinalize Action = "finalize"
)

// Service wraps the inspection endpoints and the lifecycle gate.
type Service struct {
	client *api.Client
	logger *zap.Logger
}

// NewService creates an inspection service over the given backend client.
func NewService(client *api.Client, logger *zap.Logger) *Service {
	return &Service{client: client, logger: logger}
}

type listResponse struct {
	Inspections []models.Inspection `json:"inspections"`
}

type detailResponse struct {
	Inspection *models.Inspection `json:"inspection"`
}

// List fetches inspections filtered by lifecycle status.
func (s *Service) List(ctx context.Context, status lifecycle.Status) ([]models.Inspection, error) {
	var payload listResponse
	path := fmt.Sprintf("/inspections?status=%s", status)
	if err := s.client.GetJSON(ctx, path, &payload); err != nil {
		return nil, mapAccessError(err)
	}
	return payload.Inspections, nil
}

// Get fetches one inspection with its nested property, owner and inspector.
func (s *Service) Get(ctx context.Context, id string) (*models.Inspection, error) {
	var payload detailResponse
	if err := s.client.GetJSON(ctx, "/inspections/"+id, &payload); err != nil {
		return nil, mapAccessError(err)
	}
	if payload.Inspection == nil {
		return nil, ErrNotFound
	}
	return payload.Inspection, nil
}

type takeRequest struct {
	ID             string `json:"id"`
	ProfessionalID string `json:"professionalId"`
	Status         string `json:"status"`
}

// Take assigns a requested inspection to the calling professional,
// transitioning Requested to Pending. Losing the race with another
// inspector yields ErrAlreadyTaken and leaves local state untouched.
func (s *Service) Take(ctx context.Context, insp *models.Inspection, professionalID string) error {
	machine, err := lifecycle.NewInspectionMachine(lifecycle.Status(insp.Status))
	if err != nil {
		return fmt.Errorf("inspection %s: %w", insp.ID, err)
	}
	if !machine.CanFire(lifecycle.TriggerTake) {
		return ErrAlreadyTaken
	}

	body := takeRequest{
		ID:             insp.ID,
		ProfessionalID: professionalID,
		Status:         lifecycle.StatusPending.String(),
	}
	if err := s.client.PatchJSON(ctx, "/inspections", body, nil); err != nil {
		if api.StatusOf(err) == http.StatusConflict {
			s.logger.Info("Take lost race",
				zap.String("inspection_id", insp.ID),
				zap.String("professional_id", professionalID))
			return ErrAlreadyTaken
		}
		return mapAccessError(err)
	}

	if err := machine.Fire(ctx, lifecycle.TriggerTake); err != nil {
		return err
	}
	insp.Status = machine.Status().String()
	insp.InspectorID = professionalID

	s.logger.Info("Inspection taken",
		zap.String("inspection_id", insp.ID),
		zap.String("professional_id", professionalID))
	return nil
}

// Access is the client-side pre-check of the caller's identity against the
// inspection's inspector and owner references. It exists for fast, specific
// messaging only; the server's 401/403/404 responses stay authoritative.
func Access(insp *models.Inspection, callerID string) (Role, error) {
	if insp == nil {
		return RoleNone, ErrNotFound
	}
	if callerID == "" {
		return RoleNone, ErrSessionExpired
	}
	if insp.InspectorID != "" && callerID == insp.InspectorID {
		return RoleInspector, nil
	}
	if insp.OwnerID != "" && callerID == insp.OwnerID {
		return RoleOwner, nil
	}
	return RoleNone, ErrForbidden
}

// AllowedActions computes which actions are valid for the given status and
// caller role.
func AllowedActions(status lifecycle.Status, role Role) []Action {
	switch status {
	case lifecycle.StatusRequested:
		return []Action{ActionTake}
	case lifecycle.StatusPending:
		if role == RoleInspector || role == RoleOwner {
			return []Action{ActionReport, ActionSign, ActionFinalize}
		}
	}
	return nil
}

// mapAccessError converts backend status codes into the user-facing
// sentinels distinguishing expired session, wrong person, and missing
// inspection.
func mapAccessError(err error) error {
	switch api.StatusOf(err) {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
