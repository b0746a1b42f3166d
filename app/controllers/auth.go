package controllers

import (
	"errors"

	"github.com/rrnagar/marketplace/app/services"
	"github.com/rrnagar/marketplace/pkg/auth"
	"github.com/rrnagar/marketplace/pkg/ctx"
	"github.com/rrnagar/marketplace/pkg/rbac"
	"github.com/rrnagar/marketplace/pkg/session"
)

type AuthController struct {
	svc *services.Services
}

func NewAuthController(svc *services.Services) *AuthController {
	return &AuthController{svc: svc}
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type emailVerify struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code"  validate:"required,digits=6"`
}

type phoneRequest struct {
	Phone string `json:"phone" validate:"required,phone"`
}

type phoneVerify struct {
	Phone string `json:"phone" validate:"required,phone"`
	Code  string `json:"code"  validate:"required,digits=6"`
}

// signIn rotates the session onto the principal and also hands back a
// bearer token for API clients.
func (a *AuthController) signIn(c *ctx.Context, userID uint, role string, user any) {
	sess := session.FromCtx(c.Context())
	sess.Login(userID, role)
	if err := sess.Save(c.W); err != nil {
		respondError(c, err)
		return
	}
	token, err := auth.GenerateToken(userID, role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Log().Info("signed in", "user_id", userID, "role", role)
	c.Success(map[string]any{"loggedIn": true, "role": role, "user": user, "token": token})
}

// RequestOTP handles POST /api/auth/otp/request.
func (a *AuthController) RequestOTP(c *ctx.Context) {
	var in emailRequest
	if !c.BindJSON(&in) {
		return
	}
	if err := a.svc.OTP.RequestCustomerCode(c.Context(), in.Email); err != nil {
		respondError(c, err)
		return
	}
	c.Success(message("A login code has been sent to your email."))
}

// VerifyOTP handles POST /api/auth/otp/verify.
func (a *AuthController) VerifyOTP(c *ctx.Context) {
	var in emailVerify
	if !c.BindJSON(&in) {
		return
	}
	cust, err := a.svc.OTP.VerifyCustomerCode(c.Context(), in.Email, in.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	a.signIn(c, cust.ID, rbac.RoleCustomer, cust)
}

// RequestPhoneOTP handles POST /api/auth/phone/request.
func (a *AuthController) RequestPhoneOTP(c *ctx.Context) {
	var in phoneRequest
	if !c.BindJSON(&in) {
		return
	}
	if err := a.svc.OTP.RequestPhoneCode(c.Context(), in.Phone); err != nil {
		respondError(c, err)
		return
	}
	c.Success(message("A login code has been sent to your phone."))
}

// VerifyPhoneOTP handles POST /api/auth/phone/verify.
func (a *AuthController) VerifyPhoneOTP(c *ctx.Context) {
	var in phoneVerify
	if !c.BindJSON(&in) {
		return
	}
	cust, err := a.svc.OTP.VerifyPhoneCode(c.Context(), in.Phone, in.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	a.signIn(c, cust.ID, rbac.RoleCustomer, cust)
}

func (a *AuthController) RequestAdminOTP(c *ctx.Context) {
	var in emailRequest
	if !c.BindJSON(&in) {
		return
	}
	// unknown addresses get the same answer as known ones
	if err := a.svc.OTP.RequestAdminCode(c.Context(), in.Email); err != nil && !errors.Is(err, services.ErrNotFound) {
		respondError(c, err)
		return
	}
	c.Success(message("If the address belongs to an admin, a code is on its way."))
}

func (a *AuthController) VerifyAdminOTP(c *ctx.Context) {
	var in emailVerify
	if !c.BindJSON(&in) {
		return
	}
	admin, err := a.svc.OTP.VerifyAdminCode(c.Context(), in.Email, in.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	a.signIn(c, admin.ID, rbac.RoleAdmin, admin)
}

func (a *AuthController) SupplierRegister(c *ctx.Context) {
	var in services.SupplierRegisterInput
	if !c.BindJSON(&in) {
		return
	}
	s, err := a.svc.Suppliers.Register(c.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	token, err := auth.GenerateToken(s.ID, rbac.RoleSupplier)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Created(map[string]any{"supplier": s, "token": token})
}

func (a *AuthController) SupplierLogin(c *ctx.Context) {
	var in services.SupplierLoginInput
	if !c.BindJSON(&in) {
		return
	}
	s, err := a.svc.Suppliers.Login(c.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	a.signIn(c, s.ID, rbac.RoleSupplier, s)
}

// Me handles GET /api/auth/me. Guests get loggedIn:false, not a 401.
func (a *AuthController) Me(c *ctx.Context) {
	id, role := c.UserID(), c.Role()
	if id == 0 {
		c.Success(map[string]any{"loggedIn": false})
		return
	}

	var (
		user any
		err  error
	)
	switch role {
	case rbac.RoleCustomer:
		user, err = a.svc.Customers.Profile(c.Context(), id)
	case rbac.RoleSupplier:
		user, err = a.svc.Suppliers.Profile(c.Context(), id)
	case rbac.RoleAdmin:
		user, err = a.svc.Admins.Find(c.Context(), id)
	default:
		err = services.ErrNotFound
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.Success(map[string]any{"loggedIn": true, "role": role, "user": user})
}

func (a *AuthController) Logout(c *ctx.Context) {
	sess := session.FromCtx(c.Context())
	sess.Destroy()
	if err := sess.Save(c.W); err != nil {
		respondError(c, err)
		return
	}
	c.Success(map[string]any{"loggedIn": false})
}
