// Package controllers adapts HTTP requests to service calls. Handlers take
// a *ctx.Context, bind and validate the body, call one service method and
// write the JSON envelope. Service errors are mapped to status codes in
// respondError only.
package controllers

import (
	"errors"
	"net/http"

	"github.com/rrnagar/marketplace/app/services"
	"github.com/rrnagar/marketplace/pkg/ctx"
)

// respondError writes the envelope for a service error.
func respondError(c *ctx.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.ValidationError(verr.Fields)
	case errors.Is(err, services.ErrInsufficientStock):
		c.ValidationError(map[string]string{"qty": "Not enough stock for the requested quantity."})
	case errors.Is(err, services.ErrNotFound):
		c.NotFound()
	case errors.Is(err, services.ErrInvalidTransition), errors.Is(err, services.ErrConflict):
		c.Error(http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidCode),
		errors.Is(err, services.ErrCodeExpired),
		errors.Is(err, services.ErrTooManyAttempts),
		errors.Is(err, services.ErrInvalidCredentials):
		c.Unauthorized(err.Error())
	case errors.Is(err, services.ErrNotApproved), errors.Is(err, services.ErrForbidden):
		c.Forbidden(err.Error())
	case errors.Is(err, services.ErrThrottled):
		c.SetHeader("Retry-After", "600")
		c.Error(http.StatusTooManyRequests, "Too many requests, try again later.")
	default:
		c.Log().Error("request failed", "error", err)
		c.Error(http.StatusInternalServerError, "Internal server error")
	}
}

// pathID reads a numeric path parameter and answers 404 when it is not one.
func pathID(c *ctx.Context, key string) (uint, bool) {
	id, ok := c.ParamUint(key)
	if !ok {
		c.NotFound()
	}
	return id, ok
}

// message is the data payload of endpoints that only acknowledge.
func message(text string) map[string]string { return map[string]string{"message": text} }

// NotFound and MethodNotAllowed keep unknown routes inside the envelope.
func NotFound(c *ctx.Context) { c.NotFound("Route not found") }

func MethodNotAllowed(c *ctx.Context) {
	c.Error(http.StatusMethodNotAllowed, "Method not allowed")
}
