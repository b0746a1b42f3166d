package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/app/jobs"
	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/app/repositories"
	"github.com/rrnagar/marketplace/config"
	"github.com/rrnagar/marketplace/pkg/cache"
	"github.com/rrnagar/marketplace/pkg/logger"
	"github.com/rrnagar/marketplace/pkg/metrics"
	"github.com/rrnagar/marketplace/pkg/queue"
)

// Per-identifier limit on code requests.
const (
	otpRequestLimit  = 5
	otpRequestWindow = 10 * time.Minute
)

// OTPService issues and checks one-time login codes. Email codes live on
// the customer/admin row; phone codes live in the cache.
type OTPService struct {
	db      *gorm.DB
	queue   *queue.Manager
	limiter cache.Limiter
}

func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("otp: entropy: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

var nonDigits = regexp.MustCompile(`\D`)

// NormalizePhone keeps the 10 digit subscriber number.
func NormalizePhone(phone string) string {
	d := nonDigits.ReplaceAllString(phone, "")
	if len(d) > 10 {
		d = d[len(d)-10:]
	}
	return d
}

func (s *OTPService) throttle(ctx context.Context, key string) error {
	res, err := s.limiter.Allow(ctx, key, otpRequestLimit, otpRequestWindow)
	if err != nil {
		logger.WithCtx(ctx).Warn("otp: limiter unavailable", "error", err)
		return nil
	}
	if !res.Allowed {
		return ErrThrottled
	}
	return nil
}

func (s *OTPService) mailCode(ctx context.Context, email, code string) error {
	ttl := config.OTPTTL()
	job := &jobs.SendMail{
		To:      []string{email},
		Subject: "Your RR Nagar login code",
		Text:    fmt.Sprintf("Your login code is %s. It expires in %d minutes.", code, int(ttl.Minutes())),
		HTML:    fmt.Sprintf("<p>Your login code is <strong>%s</strong>.</p><p>It expires in %d minutes.</p>", code, int(ttl.Minutes())),
	}
	if err := s.queue.Dispatch(ctx, jobs.MailJob, job); err != nil {
		return fmt.Errorf("otp: queue mail: %w", err)
	}
	return nil
}

func codeColumns(code string, expires *time.Time) map[string]any {
	return map[string]any{"otp_code": code, "otp_expires_at": expires, "otp_attempts": 0}
}

// RequestCustomerCode mails a code to email, creating the customer on first
// use.
func (s *OTPService) RequestCustomerCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := s.throttle(ctx, "email:"+email); err != nil {
		return err
	}

	repo := repositories.NewCustomerRepository(s.db)
	c, err := repo.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		name, _, _ := strings.Cut(email, "@")
		c = &models.Customer{Name: name, Email: &email}
		err = repo.Create(ctx, c)
	}
	if err != nil {
		return err
	}

	code, err := newCode()
	if err != nil {
		return err
	}
	expires := time.Now().Add(config.OTPTTL())
	if err := repo.Update(ctx, c.ID, codeColumns(code, &expires)); err != nil {
		return err
	}
	metrics.OTPRequests.WithLabelValues("email").Inc()
	return s.mailCode(ctx, email, code)
}

// VerifyCustomerCode returns the customer when code matches.
func (s *OTPService) VerifyCustomerCode(ctx context.Context, email, code string) (*models.Customer, error) {
	c, err := repositories.NewCustomerRepository(s.db).FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, &models.Customer{}, c.ID, c.OTPCode, c.OTPExpiresAt, code); err != nil {
		return nil, err
	}
	return c, nil
}

// RequestAdminCode mails a code to a known admin.
func (s *OTPService) RequestAdminCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := s.throttle(ctx, "admin:"+email); err != nil {
		return err
	}
	repo := repositories.NewAdminRepository(s.db)
	a, err := repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, err := newCode()
	if err != nil {
		return err
	}
	expires := time.Now().Add(config.OTPTTL())
	if err := repo.Update(ctx, a.ID, codeColumns(code, &expires)); err != nil {
		return err
	}
	metrics.OTPRequests.WithLabelValues("email").Inc()
	return s.mailCode(ctx, email, code)
}

// VerifyAdminCode checks the code, then that the admin is approved.
func (s *OTPService) VerifyAdminCode(ctx context.Context, email, code string) (*models.Admin, error) {
	a, err := repositories.NewAdminRepository(s.db).FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, &models.Admin{}, a.ID, a.OTPCode, a.OTPExpiresAt, code); err != nil {
		return nil, err
	}
	if !a.Approved {
		return nil, ErrNotApproved
	}
	return a, nil
}

// check compares the stored code and records the outcome on the row. Every
// write is conditional on the code still being the one that was read, so
// concurrent guesses cannot share an attempt: a match or an expired code
// clears it, a miss counts an attempt, and the last allowed miss clears it.
func (s *OTPService) check(ctx context.Context, model any, id uint, stored string, expires *time.Time, given string) error {
	if stored == "" {
		return ErrInvalidCode
	}
	current := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(model).Where("id = ? AND otp_code = ?", id, stored)
	}
	reset := codeColumns("", nil)
	limit := config.OTPMaxAttempts()

	if expires == nil || time.Now().After(*expires) {
		if err := current().Updates(reset).Error; err != nil {
			return err
		}
		return ErrCodeExpired
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(strings.TrimSpace(given))) != 1 {
		res := current().Where("otp_attempts < ?", limit-1).
			Update("otp_attempts", gorm.Expr("otp_attempts + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			return ErrInvalidCode
		}
		if err := current().Updates(reset).Error; err != nil {
			return err
		}
		return ErrTooManyAttempts
	}

	res := current().Where("otp_attempts < ?", limit).Updates(reset)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// used or exhausted since it was read
		return ErrInvalidCode
	}
	return nil
}

func phoneKey(phone string) string { return "otp:phone:" + phone }

// RequestPhoneCode texts a code to phone. The code is kept in the cache
// for OTP_TTL.
func (s *OTPService) RequestPhoneCode(ctx context.Context, phone string) error {
	phone = NormalizePhone(phone)
	if len(phone) != 10 {
		return invalid("phone", "The phone must be a valid mobile number.")
	}
	if err := s.throttle(ctx, "phone:"+phone); err != nil {
		return err
	}

	code, err := newCode()
	if err != nil {
		return err
	}
	ttl := config.OTPTTL()
	if err := cache.Set(phoneKey(phone), code, ttl); err != nil {
		return fmt.Errorf("otp: store: %w", err)
	}
	_ = cache.Del(phoneKey(phone) + ":attempts")
	metrics.OTPRequests.WithLabelValues("sms").Inc()

	msg := fmt.Sprintf("%s is your RR Nagar login code. Valid for %d minutes.", code, int(ttl.Minutes()))
	if err := s.queue.Dispatch(ctx, jobs.SMSJob, &jobs.SendSMS{To: phone, Message: msg}); err != nil {
		return fmt.Errorf("otp: queue sms: %w", err)
	}
	return nil
}

// VerifyPhoneCode checks the cached code and finds or creates the customer
// with that phone.
func (s *OTPService) VerifyPhoneCode(ctx context.Context, phone, code string) (*models.Customer, error) {
	phone = NormalizePhone(phone)
	key := phoneKey(phone)

	var stored string
	if !cache.Get(key, &stored) {
		return nil, ErrInvalidCode
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(strings.TrimSpace(code))) != 1 {
		n, err := cache.Incr(key+":attempts", config.OTPTTL())
		if err != nil {
			logger.WithCtx(ctx).Warn("otp: attempt not counted, dropping phone code", "error", err)
		}
		if err != nil || int(n) >= config.OTPMaxAttempts() {
			_ = cache.Del(key, key+":attempts")
			return nil, ErrTooManyAttempts
		}
		return nil, ErrInvalidCode
	}
	_ = cache.Del(key, key+":attempts")

	repo := repositories.NewCustomerRepository(s.db)
	c, err := repo.FindByPhone(ctx, phone)
	if errors.Is(err, ErrNotFound) {
		c = &models.Customer{Phone: phone}
		err = repo.Create(ctx, c)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
