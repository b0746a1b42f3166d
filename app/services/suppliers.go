package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/app/repositories"
	"github.com/rrnagar/marketplace/pkg/auth"
	"github.com/rrnagar/marketplace/pkg/crypt"
	"github.com/rrnagar/marketplace/pkg/event"
	"github.com/rrnagar/marketplace/pkg/logger"
	"github.com/rrnagar/marketplace/pkg/response"
)

type SupplierService struct {
	db  *gorm.DB
	bus *event.Bus
}

type SupplierRegisterInput struct {
	Name         string   `json:"name"         validate:"required,max=120"`
	BusinessName string   `json:"businessName" validate:"nullable,max=190"`
	Email        string   `json:"email"        validate:"required,email"`
	Phone        string   `json:"phone"        validate:"nullable,phone"`
	Password     string   `json:"password"     validate:"required,min=8,max=72"`
	Area         string   `json:"area"         validate:"nullable,max=120"`
	Zone         string   `json:"zone"         validate:"nullable,max=60"`
	Latitude     *float64 `json:"latitude"     validate:"nullable,between=-90|90"`
	Longitude    *float64 `json:"longitude"    validate:"nullable,between=-180|180"`
}

type SupplierLoginInput struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type KYCInput struct {
	PAN            string `json:"pan"            validate:"required,max=10"`
	GSTIN          string `json:"gstin"          validate:"nullable,max=15"`
	BankAccount    string `json:"bankAccount"    validate:"required,min=6,max=18"`
	IFSC           string `json:"ifsc"           validate:"required,max=11"`
	KYCDocumentURL string `json:"kycDocumentUrl" validate:"nullable,max=500"`
}

// Register creates a pending supplier.
func (s *SupplierService) Register(ctx context.Context, in SupplierRegisterInput) (*models.Supplier, error) {
	hash, err := auth.HashPassword(in.Password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		return nil, invalid("password", "The password must be at least 8 characters.")
	}
	if err != nil {
		return nil, err
	}
	sup := &models.Supplier{
		Name:         strings.TrimSpace(in.Name),
		BusinessName: strings.TrimSpace(in.BusinessName),
		Email:        normalizeEmail(in.Email),
		Phone:        NormalizePhone(in.Phone),
		Password:     hash,
		Area:         in.Area,
		Zone:         in.Zone,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		Status:       models.SupplierPending,
	}
	if sup.BusinessName == "" {
		sup.BusinessName = sup.Name
	}
	repo := repositories.NewSupplierRepository(s.db)
	if _, err := repo.FindByEmail(ctx, sup.Email); err == nil {
		return nil, invalid("email", "The email has already been taken.")
	}
	if err := repo.Create(ctx, sup); err != nil {
		return nil, uniqueErr(err, "email", "The email has already been taken.")
	}
	s.bus.Fire(ctx, EventSupplierRegistered, SupplierEvent{Supplier: *sup})
	return sup, nil
}

// Login checks the password. Unapproved suppliers may log in to finish
// KYC; listing products needs approval.
func (s *SupplierService) Login(ctx context.Context, in SupplierLoginInput) (*models.Supplier, error) {
	sup, err := repositories.NewSupplierRepository(s.db).FindByEmail(ctx, normalizeEmail(in.Email))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(sup.Password, in.Password) {
		return nil, ErrInvalidCredentials
	}
	return sup, nil
}

func (s *SupplierService) Profile(ctx context.Context, id uint) (*models.Supplier, error) {
	return repositories.NewSupplierRepository(s.db).Find(ctx, id)
}

type SupplierProfileInput struct {
	Name         string   `json:"name"         validate:"nullable,max=120"`
	BusinessName string   `json:"businessName" validate:"nullable,max=190"`
	Phone        string   `json:"phone"        validate:"nullable,phone"`
	Area         string   `json:"area"         validate:"nullable,max=120"`
	Zone         string   `json:"zone"         validate:"nullable,max=60"`
	Latitude     *float64 `json:"latitude"     validate:"nullable,between=-90|90"`
	Longitude    *float64 `json:"longitude"    validate:"nullable,between=-180|180"`
}

func (s *SupplierService) UpdateProfile(ctx context.Context, id uint, in SupplierProfileInput) (*models.Supplier, error) {
	changes := map[string]any{}
	set := func(col, v string) {
		if v = strings.TrimSpace(v); v != "" {
			changes[col] = v
		}
	}
	set("name", in.Name)
	set("business_name", in.BusinessName)
	set("area", in.Area)
	set("zone", in.Zone)
	if in.Phone != "" {
		changes["phone"] = NormalizePhone(in.Phone)
	}
	if in.Latitude != nil && in.Longitude != nil {
		changes["latitude"] = *in.Latitude
		changes["longitude"] = *in.Longitude
	}
	repo := repositories.NewSupplierRepository(s.db)
	if len(changes) > 0 {
		if err := repo.Update(ctx, id, changes); err != nil {
			return nil, err
		}
	}
	return repo.Find(ctx, id)
}

// SubmitKYC stores the KYC record and moves the supplier to kyc_submitted.
func (s *SupplierService) SubmitKYC(ctx context.Context, id uint, in KYCInput) (*models.Supplier, error) {
	repo := repositories.NewSupplierRepository(s.db)
	now := time.Now()
	ok, err := repo.TransitionStatus(ctx, id,
		[]string{models.SupplierPending, models.SupplierKYCPending, models.SupplierRejected},
		models.SupplierKYCSubmitted,
		map[string]any{
			"pan":              crypt.String(strings.ToUpper(strings.TrimSpace(in.PAN))),
			"gstin":            strings.ToUpper(strings.TrimSpace(in.GSTIN)),
			"bank_account":     crypt.String(strings.TrimSpace(in.BankAccount)),
			"ifsc":             strings.ToUpper(strings.TrimSpace(in.IFSC)),
			"kyc_document_url": in.KYCDocumentURL,
			"kyc_submitted_at": now,
			"rejection_reason": "",
		})
	if err != nil {
		return nil, err
	}
	sup, err := repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, transitionError("status", sup.Status, models.SupplierKYCSubmitted)
	}
	s.bus.Fire(ctx, EventSupplierKYCSubmitted, SupplierEvent{Supplier: *sup})
	return sup, nil
}

// KYC returns the supplier's KYC record with PAN and account masked.
func (s *SupplierService) KYC(ctx context.Context, id uint) (*models.KYCView, error) {
	sup, err := repositories.NewSupplierRepository(s.db).Find(ctx, id)
	if err != nil {
		return nil, err
	}
	view := sup.KYC()
	return &view, nil
}

// List is the admin view of suppliers, optionally by status.
func (s *SupplierService) List(ctx context.Context, status string, page, perPage int) ([]models.Supplier, response.Pagination, error) {
	scopes := []repositories.Scope{repositories.OrderBy("id DESC")}
	if status != "" {
		scopes = append(scopes, repositories.Where("status = ?", status))
	}
	return repositories.NewSupplierRepository(s.db).Paginate(ctx, page, perPage, scopes...)
}

// PendingApprovals lists suppliers waiting on an admin decision.
func (s *SupplierService) PendingApprovals(ctx context.Context, page, perPage int) ([]models.Supplier, response.Pagination, error) {
	return repositories.NewSupplierRepository(s.db).Paginate(ctx, page, perPage,
		repositories.Where("status IN ?", reviewable),
		repositories.OrderBy("kyc_submitted_at ASC"), repositories.OrderBy("id ASC"))
}

var reviewable = []string{models.SupplierKYCSubmitted, models.SupplierKYCPending}

func (s *SupplierService) Approve(ctx context.Context, adminID, id uint) (*models.Supplier, error) {
	return s.decide(ctx, adminID, id, models.SupplierApproved, "")
}

func (s *SupplierService) Reject(ctx context.Context, adminID, id uint, reason string) (*models.Supplier, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("reason", "The reason field is required.")
	}
	return s.decide(ctx, adminID, id, models.SupplierRejected, reason)
}

func (s *SupplierService) decide(ctx context.Context, adminID, id uint, to, reason string) (*models.Supplier, error) {
	repo := repositories.NewSupplierRepository(s.db)
	ok, err := repo.TransitionStatus(ctx, id, reviewable, to, map[string]any{"rejection_reason": reason})
	if err != nil {
		return nil, err
	}
	sup, err := repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, transitionError("status", sup.Status, to)
	}
	logger.WithCtx(ctx).Info("supplier reviewed", "supplier_id", id, "status", to, "admin_id", adminID)

	name := EventSupplierApproved
	if to == models.SupplierRejected {
		name = EventSupplierRejected
	}
	s.bus.Fire(ctx, name, SupplierEvent{Supplier: *sup, Reason: reason})
	return sup, nil
}
