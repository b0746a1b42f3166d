package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrnagar/marketplace/app/models"
)

func registerRavi(t *testing.T, f *fixture) *models.Supplier {
	t.Helper()
	s, err := f.svc.Suppliers.Register(f.ctx, SupplierRegisterInput{
		Name: "Ravi", BusinessName: "Ravi Stores", Email: "Ravi@Example.com", Password: "s3cret-pass",
	})
	require.NoError(t, err)
	return s
}

func TestSupplierRegisterAndLogin(t *testing.T) {
	f := setup(t)
	s := registerRavi(t, f)
	assert.Equal(t, models.SupplierPending, s.Status)
	assert.Equal(t, "ravi@example.com", s.Email)
	assert.NotEqual(t, "s3cret-pass", s.Password)
	assert.Equal(t, int64(1), f.feedCount(t, "supplier_registered"))

	_, err := f.svc.Suppliers.Register(f.ctx, SupplierRegisterInput{Name: "Ravi", Email: "ravi@example.com", Password: "another-pass"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")

	_, err = f.svc.Suppliers.Login(f.ctx, SupplierLoginInput{Email: "ravi@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Suppliers.Login(f.ctx, SupplierLoginInput{Email: "nobody@example.com", Password: "s3cret-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	got, err := f.svc.Suppliers.Login(f.ctx, SupplierLoginInput{Email: "ravi@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
}

func TestSupplierKYCReview(t *testing.T) {
	f := setup(t)
	s := registerRavi(t, f)
	admin := f.admin(t, "ops@example.com", models.AdminRoleAdmin, true)

	_, err := f.svc.Suppliers.Approve(f.ctx, admin.ID, s.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "no KYC yet")

	kyc := KYCInput{PAN: "abcde1234f", BankAccount: "123456789012", IFSC: "sbin0001234"}
	got, err := f.svc.Suppliers.SubmitKYC(f.ctx, s.ID, kyc)
	require.NoError(t, err)
	assert.Equal(t, models.SupplierKYCSubmitted, got.Status)

	view, err := f.svc.Suppliers.KYC(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "******234F", view.PAN)
	assert.Equal(t, "SBIN0001234", view.IFSC)

	var raw string
	require.NoError(t, f.db.Raw("SELECT pan FROM suppliers WHERE id = ?", s.ID).Scan(&raw).Error)
	assert.NotContains(t, raw, "ABCDE1234F", "PAN is encrypted at rest")

	_, err = f.svc.Suppliers.Reject(f.ctx, admin.ID, s.ID, "")
	assert.IsType(t, &ValidationError{}, err)

	got, err = f.svc.Suppliers.Reject(f.ctx, admin.ID, s.ID, "PAN does not match")
	require.NoError(t, err)
	assert.Equal(t, models.SupplierRejected, got.Status)
	assert.Equal(t, "PAN does not match", got.RejectionReason)
	assert.Len(t, f.mail.to("ravi@example.com"), 1)

	_, err = f.svc.Suppliers.SubmitKYC(f.ctx, s.ID, kyc)
	require.NoError(t, err)
	got, err = f.svc.Suppliers.Approve(f.ctx, admin.ID, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SupplierApproved, got.Status)
	assert.Empty(t, got.RejectionReason)
	assert.Equal(t, int64(1), f.feedCount(t, "supplier_approved"))

	_, err = f.svc.Suppliers.SubmitKYC(f.ctx, s.ID, kyc)
	assert.ErrorIs(t, err, ErrInvalidTransition, "approved suppliers cannot resubmit")
}

func TestPendingApprovals(t *testing.T) {
	f := setup(t)
	f.supplier(t, "a@example.com", models.SupplierKYCSubmitted)
	f.supplier(t, "b@example.com", models.SupplierKYCPending)
	f.supplier(t, "c@example.com", models.SupplierApproved)

	items, p, err := f.svc.Suppliers.PendingApprovals(f.ctx, 1, 20)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int64(2), p.Total)
}
