package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opticore/opticore-backend/pkg/db/models"
	"github.com/opticore/opticore-backend/pkg/enums"
	pkgerrors "github.com/opticore/opticore-backend/pkg/errors"
)

// Service exposes the user directory to the workflow services. Identity
// lifecycle (signup, credentials) lives upstream; this service only reads
// roles and manages the home-branch assignment.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	StaffForBranch(ctx context.Context, branchID uuid.UUID) ([]models.User, error)
	Admins(ctx context.Context) ([]models.User, error)
	AssignBranchIfEmpty(ctx context.Context, tx *gorm.DB, userID, branchID uuid.UUID) error
}

type service struct {
	repo Repository
}

// NewService wires user directory dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func (s *service) StaffForBranch(ctx context.Context, branchID uuid.UUID) ([]models.User, error) {
	if branchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id required")
	}
	staff, err := s.repo.ListByRole(ctx, enums.RoleStaff, &branchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list branch staff")
	}
	return staff, nil
}

func (s *service) Admins(ctx context.Context) ([]models.User, error) {
	admins, err := s.repo.ListByRole(ctx, enums.RoleAdmin, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list admins")
	}
	return admins, nil
}

// AssignBranchIfEmpty pins a customer to the branch of their first
// reservation. Losing the race to another writer is fine.
func (s *service) AssignBranchIfEmpty(ctx context.Context, tx *gorm.DB, userID, branchID uuid.UUID) error {
	if userID == uuid.Nil || branchID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id and branch id required")
	}
	if _, err := s.repo.AssignBranch(ctx, tx, userID, branchID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign branch")
	}
	return nil
}
