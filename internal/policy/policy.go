package policy

import (
	"context"

	"messaging-service/internal/directory"
	"messaging-service/internal/models"
)

// Engine decides who an actor may address. The eligible set is
// recomputed on every call from current roles and project assignments;
// caching it would leak or deny access after an assignment change.
type Engine struct {
	users       directory.UserDirectory
	assignments directory.AssignmentDirectory
}

// NewEngine builds an Engine.
func NewEngine(users directory.UserDirectory, assignments directory.AssignmentDirectory) *Engine {
	return &Engine{users: users, assignments: assignments}
}

// EligibleRecipients computes the set of identities the actor may send
// to, per the role communication graph:
//
//	super_admin/admin  -> every active identity
//	project_manager    -> admins + contractors on projects they manage
//	contractor         -> admins + managers of projects they work on
//	anything else      -> empty
func (e *Engine) EligibleRecipients(ctx context.Context, actorID int, actorRole string) (map[int]struct{}, error) {
	eligible := map[int]struct{}{}

	switch actorRole {
	case models.RoleSuperAdmin, models.RoleAdmin:
		users, err := e.users.ListActive(ctx)
		if err != nil {
			return nil, &models.StoreError{Op: "directory", Err: err}
		}
		for _, u := range users {
			eligible[u.ID] = struct{}{}
		}

	case models.RoleProjectManager:
		if err := e.addActiveAdmins(ctx, eligible); err != nil {
			return nil, err
		}
		contractors, err := e.assignments.ContractorsManagedBy(ctx, actorID)
		if err != nil {
			return nil, &models.StoreError{Op: "directory", Err: err}
		}
		for _, id := range contractors {
			eligible[id] = struct{}{}
		}

	case models.RoleContractor:
		if err := e.addActiveAdmins(ctx, eligible); err != nil {
			return nil, err
		}
		managers, err := e.assignments.ManagersForContractor(ctx, actorID)
		if err != nil {
			return nil, &models.StoreError{Op: "directory", Err: err}
		}
		for _, id := range managers {
			eligible[id] = struct{}{}
		}
	}

	delete(eligible, actorID)
	return eligible, nil
}

// Validate checks a proposed recipient list against the actor's
// eligible set. The actor's own id is dropped silently. Returns the
// cleaned list in proposal order.
func (e *Engine) Validate(ctx context.Context, actorID int, actorRole string, proposed []int) ([]int, error) {
	switch actorRole {
	case models.RoleSuperAdmin, models.RoleAdmin, models.RoleProjectManager, models.RoleContractor:
	default:
		return nil, &models.ForbiddenError{Reason: "role " + actorRole + " may not send messages"}
	}

	remaining := make([]int, 0, len(proposed))
	seen := map[int]struct{}{actorID: {}}
	for _, id := range proposed {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		remaining = append(remaining, id)
	}
	if len(remaining) == 0 {
		return nil, &models.ValidationError{Field: "recipient_ids", Reason: "must name at least one recipient other than the sender"}
	}

	eligible, err := e.EligibleRecipients(ctx, actorID, actorRole)
	if err != nil {
		return nil, err
	}

	var ineligible []int
	for _, id := range remaining {
		if _, ok := eligible[id]; !ok {
			ineligible = append(ineligible, id)
		}
	}
	if len(ineligible) > 0 {
		return nil, &models.ForbiddenError{Reason: "recipients not eligible", UserIDs: ineligible}
	}
	return remaining, nil
}

func (e *Engine) addActiveAdmins(ctx context.Context, eligible map[int]struct{}) error {
	admins, err := e.users.ListActiveByRole(ctx, models.RoleSuperAdmin, models.RoleAdmin)
	if err != nil {
		return &models.StoreError{Op: "directory", Err: err}
	}
	for _, u := range admins {
		eligible[u.ID] = struct{}{}
	}
	return nil
}
