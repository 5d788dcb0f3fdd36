package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opticore/opticore-backend/pkg/db/models"
	"github.com/opticore/opticore-backend/pkg/enums"
)

// Repository manages persistence for the user directory.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListByRole(ctx context.Context, role enums.Role, branchID *uuid.UUID) ([]models.User, error)
	AssignBranch(ctx context.Context, tx *gorm.DB, userID, branchID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a users repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) ListByRole(ctx context.Context, role enums.Role, branchID *uuid.UUID) ([]models.User, error) {
	query := r.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", role, true)
	if branchID != nil {
		query = query.Where("branch_id = ?", *branchID)
	}
	var users []models.User
	if err := query.Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// AssignBranch sets the user's home branch only while it is still empty.
func (r *repository) AssignBranch(ctx context.Context, tx *gorm.DB, userID, branchID uuid.UUID) (bool, error) {
	conn := tx
	if conn == nil {
		conn = r.db
	}
	res := conn.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND branch_id IS NULL", userID).
		Update("branch_id", branchID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
