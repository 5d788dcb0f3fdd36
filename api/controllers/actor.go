package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/opticore/opticore-backend/api/middleware"
	"github.com/opticore/opticore-backend/pkg/enums"
	pkgerrors "github.com/opticore/opticore-backend/pkg/errors"
)

// actor is the authenticated caller as seeded by the auth middleware.
type actor struct {
	UserID   uuid.UUID
	Role     enums.Role
	BranchID *uuid.UUID
}

func actorFromRequest(r *http.Request) (*actor, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}

	role, err := enums.ParseRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid role")
	}

	a := &actor{UserID: userID, Role: role}
	if branch := middleware.BranchIDFromContext(r.Context()); branch != "" {
		branchID, err := uuid.Parse(branch)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid branch id")
		}
		a.BranchID = &branchID
	}
	return a, nil
}

// requireBranchScope admits admins everywhere and staff only on their home
// branch.
func (a *actor) requireBranchScope(branchID uuid.UUID) error {
	if a.Role == enums.RoleAdmin {
		return nil
	}
	if a.BranchID != nil && *a.BranchID == branchID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "branch out of scope")
}

// branchFilter narrows list queries: staff are pinned to their home branch,
// admins may pass an explicit filter or none.
func (a *actor) branchFilter(requested *uuid.UUID) (*uuid.UUID, error) {
	if a.Role == enums.RoleAdmin {
		return requested, nil
	}
	if a.BranchID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no branch assignment")
	}
	if requested != nil && *requested != *a.BranchID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "branch out of scope")
	}
	return a.BranchID, nil
}
