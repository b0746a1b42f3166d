package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/config"
	"github.com/rrnagar/marketplace/pkg/cache"
)

func TestCustomerEmailCodeRoundTrip(t *testing.T) {
	f := setup(t)

	require.NoError(t, f.svc.OTP.RequestCustomerCode(f.ctx, " Asha@Example.com "))
	code := f.mail.lastCode(t, "asha@example.com")

	c, err := f.svc.OTP.VerifyCustomerCode(f.ctx, "asha@example.com", code)
	require.NoError(t, err)
	assert.Equal(t, "asha", c.Name)

	// codes are single use
	_, err = f.svc.OTP.VerifyCustomerCode(f.ctx, "asha@example.com", code)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestCustomerCodeMismatchAndExpiry(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.svc.OTP.RequestCustomerCode(f.ctx, "asha@example.com"))
	code := f.mail.lastCode(t, "asha@example.com")

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err := f.svc.OTP.VerifyCustomerCode(f.ctx, "asha@example.com", wrong)
	assert.ErrorIs(t, err, ErrInvalidCode)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, f.db.Model(&models.Customer{}).Where("email = ?", "asha@example.com").
		Update("otp_expires_at", past).Error)
	_, err = f.svc.OTP.VerifyCustomerCode(f.ctx, "asha@example.com", code)
	assert.ErrorIs(t, err, ErrCodeExpired)

	_, err = f.svc.OTP.VerifyCustomerCode(f.ctx, "nobody@example.com", code)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestFiveWrongAttemptsInvalidateCode(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.svc.OTP.RequestCustomerCode(f.ctx, "asha@example.com"))
	code := f.mail.lastCode(t, "asha@example.com")

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 1; i < 5; i++ {
		_, err := f.svc.OTP.VerifyCustomerCode(f.ctx, "asha@example.com", wrong)
		require.ErrorIs(t, err, ErrInvalidCode, "attempt %d", i)
	}
	_, err := f.svc.OTP.VerifyCustomerCode(f.ctx, "asha@example.com", wrong)
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	_, err = f.svc.OTP.VerifyCustomerCode(f.ctx, "asha@example.com", code)
	assert.ErrorIs(t, err, ErrInvalidCode, "the right code no longer works")
}

func TestParallelWrongGuessesShareTheLimit(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.svc.OTP.RequestCustomerCode(f.ctx, "asha@example.com"))
	code := f.mail.lastCode(t, "asha@example.com")
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	const guesses = 40
	errs := make(chan error, guesses)
	var wg sync.WaitGroup
	for i := 0; i < guesses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.OTP.VerifyCustomerCode(f.ctx, "asha@example.com", wrong)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	invalid := 0
	for err := range errs {
		if errors.Is(err, ErrInvalidCode) {
			invalid++
			continue
		}
		require.ErrorIs(t, err, ErrTooManyAttempts)
	}
	assert.LessOrEqual(t, invalid, config.OTPMaxAttempts()-1)

	_, err := f.svc.OTP.VerifyCustomerCode(f.ctx, "asha@example.com", code)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestPurgeExpiredCodes(t *testing.T) {
	f := setup(t)
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	code := func(expires time.Time) map[string]any {
		return map[string]any{"otp_code": "123456", "otp_expires_at": expires, "otp_attempts": 2}
	}

	stale := f.customer(t, "stale@example.com")
	live := f.customer(t, "live@example.com")
	ops := f.admin(t, "ops@example.com", models.AdminRoleAdmin, true)
	require.NoError(t, f.db.Model(stale).Updates(code(past)).Error)
	require.NoError(t, f.db.Model(live).Updates(code(future)).Error)
	require.NoError(t, f.db.Model(ops).Updates(code(past)).Error)

	n, err := f.svc.PurgeExpiredCodes(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var c models.Customer
	require.NoError(t, f.db.First(&c, stale.ID).Error)
	assert.Empty(t, c.OTPCode)
	assert.Nil(t, c.OTPExpiresAt)
	assert.Zero(t, c.OTPAttempts)

	require.NoError(t, f.db.First(&c, live.ID).Error)
	assert.Equal(t, "123456", c.OTPCode)
	assert.Equal(t, 2, c.OTPAttempts)

	var a models.Admin
	require.NoError(t, f.db.First(&a, ops.ID).Error)
	assert.Empty(t, a.OTPCode)

	n, err = f.svc.PurgeExpiredCodes(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCodeRequestsAreThrottled(t *testing.T) {
	f := setup(t)
	for i := 0; i < otpRequestLimit; i++ {
		require.NoError(t, f.svc.OTP.RequestCustomerCode(f.ctx, "asha@example.com"))
	}
	assert.ErrorIs(t, f.svc.OTP.RequestCustomerCode(f.ctx, "asha@example.com"), ErrThrottled)
}

func TestAdminCodeNeedsApproval(t *testing.T) {
	f := setup(t)
	f.admin(t, "ops@example.com", models.AdminRoleAdmin, false)

	assert.ErrorIs(t, f.svc.OTP.RequestAdminCode(f.ctx, "stranger@example.com"), ErrNotFound)

	require.NoError(t, f.svc.OTP.RequestAdminCode(f.ctx, "ops@example.com"))
	_, err := f.svc.OTP.VerifyAdminCode(f.ctx, "ops@example.com", f.mail.lastCode(t, "ops@example.com"))
	assert.ErrorIs(t, err, ErrNotApproved)

	require.NoError(t, f.db.Model(&models.Admin{}).Where("email = ?", "ops@example.com").Update("approved", true).Error)
	require.NoError(t, f.svc.OTP.RequestAdminCode(f.ctx, "ops@example.com"))
	a, err := f.svc.OTP.VerifyAdminCode(f.ctx, "ops@example.com", f.mail.lastCode(t, "ops@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", a.Email)
}

func TestPhoneCodeCreatesCustomer(t *testing.T) {
	f := setup(t)

	assert.IsType(t, &ValidationError{}, f.svc.OTP.RequestPhoneCode(f.ctx, "12345"))

	require.NoError(t, f.svc.OTP.RequestPhoneCode(f.ctx, "+91 98450 12345"))
	var code string
	require.True(t, cache.Get(phoneKey("9845012345"), &code))

	c, err := f.svc.OTP.VerifyPhoneCode(f.ctx, "9845012345", code)
	require.NoError(t, err)
	assert.Equal(t, "9845012345", c.Phone)
	assert.NotZero(t, c.ID)

	_, err = f.svc.OTP.VerifyPhoneCode(f.ctx, "9845012345", code)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

// brokenCounter is a store whose Incr always fails.
type brokenCounter struct{ cache.Store }

func (brokenCounter) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("counter down")
}

func TestPhoneCodeDroppedWhenAttemptsCannotBeCounted(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.svc.OTP.RequestPhoneCode(f.ctx, "9845012345"))
	var code string
	require.True(t, cache.Get(phoneKey("9845012345"), &code))
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	cache.Use(brokenCounter{cache.Default()})
	_, err := f.svc.OTP.VerifyPhoneCode(f.ctx, "9845012345", wrong)
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	_, err = f.svc.OTP.VerifyPhoneCode(f.ctx, "9845012345", code)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "9845012345", NormalizePhone("+91-98450 12345"))
	assert.Equal(t, "9845012345", NormalizePhone("09845012345"))
	assert.Equal(t, "12345", NormalizePhone("12345"))
}
