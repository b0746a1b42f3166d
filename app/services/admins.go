package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/app/repositories"
	"github.com/rrnagar/marketplace/pkg/logger"
	"github.com/rrnagar/marketplace/pkg/response"
)

type AdminService struct {
	db *gorm.DB
}

type AdminInput struct {
	Name  string `json:"name"  validate:"required,max=120"`
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role"  validate:"nullable,in=admin|moderator|super_admin"`
}

func (s *AdminService) Find(ctx context.Context, id uint) (*models.Admin, error) {
	return repositories.NewAdminRepository(s.db).Find(ctx, id)
}

// requireSuper returns ErrForbidden unless actorID is an approved
// super_admin.
func (s *AdminService) requireSuper(ctx context.Context, actorID uint) error {
	a, err := s.Find(ctx, actorID)
	if errors.Is(err, ErrNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return err
	}
	if !a.Approved || a.Role != models.AdminRoleSuper {
		return ErrForbidden
	}
	return nil
}

// Create adds an unapproved admin. Only a super_admin may do this.
func (s *AdminService) Create(ctx context.Context, actorID uint, in AdminInput) (*models.Admin, error) {
	if err := s.requireSuper(ctx, actorID); err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = models.AdminRoleAdmin
	}
	a := &models.Admin{
		Name:  strings.TrimSpace(in.Name),
		Email: normalizeEmail(in.Email),
		Role:  role,
	}
	repo := repositories.NewAdminRepository(s.db)
	if _, err := repo.FindByEmail(ctx, a.Email); err == nil {
		return nil, invalid("email", "The email has already been taken.")
	}
	if err := repo.Create(ctx, a); err != nil {
		return nil, uniqueErr(err, "email", "The email has already been taken.")
	}
	logger.WithCtx(ctx).Info("admin created", "admin_id", a.ID, "by", actorID)
	return a, nil
}

// Approve lets a pending admin log in.
func (s *AdminService) Approve(ctx context.Context, actorID, id uint) (*models.Admin, error) {
	if err := s.requireSuper(ctx, actorID); err != nil {
		return nil, err
	}
	repo := repositories.NewAdminRepository(s.db)
	if err := repo.Update(ctx, id, map[string]any{"approved": true}); err != nil {
		return nil, err
	}
	return repo.Find(ctx, id)
}

func (s *AdminService) List(ctx context.Context, page, perPage int) ([]models.Admin, response.Pagination, error) {
	return repositories.NewAdminRepository(s.db).Paginate(ctx, page, perPage, repositories.OrderBy("id ASC"))
}

// Customers is the admin listing of customers, newest first.
func (s *AdminService) Customers(ctx context.Context, search string, page, perPage int) ([]models.Customer, response.Pagination, error) {
	scopes := []repositories.Scope{repositories.OrderBy("id DESC")}
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		scopes = append(scopes, repositories.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?", like, like, like))
	}
	return repositories.NewCustomerRepository(s.db).Paginate(ctx, page, perPage, scopes...)
}

func (s *AdminService) Dashboard(ctx context.Context) (*Overview, error) {
	return overview(ctx, s.db)
}
