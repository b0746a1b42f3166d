package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rrnagar/marketplace/pkg/validate"
)

type addressInput struct {
	Label   string   `json:"label"   validate:"required,max=30"`
	Line1   string   `json:"line1"   validate:"required"`
	Pincode string   `json:"pincode" validate:"required,pincode"`
	Phone   string   `json:"phone"   validate:"nullable,phone"`
	Lat     *float64 `json:"latitude" validate:"nullable,between=-90|90"`
}

func TestValidAddress(t *testing.T) {
	lat := 12.92
	errs := validate.Struct(addressInput{Label: "Home", Line1: "5th Cross", Pincode: "560098", Phone: "+919876543210", Lat: &lat})
	assert.False(t, validate.HasErrors(errs), "%v", errs)
}

func TestRequiredAndFormats(t *testing.T) {
	errs := validate.Struct(&addressInput{Pincode: "0123", Phone: "12345"})
	assert.Contains(t, errs, "label")
	assert.Contains(t, errs, "line1")
	assert.Equal(t, "The pincode must be a 6 digit pincode.", errs["pincode"])
	assert.Contains(t, errs, "phone")
}

func TestNullablePointerSkipped(t *testing.T) {
	errs := validate.Struct(addressInput{Label: "Shop", Line1: "x", Pincode: "560098"})
	assert.NotContains(t, errs, "latitude")
}

func TestBetweenOnPointer(t *testing.T) {
	lat := 120.0
	errs := validate.Struct(addressInput{Label: "Shop", Line1: "x", Pincode: "560098", Lat: &lat})
	assert.Equal(t, "The latitude must be between -90 and 90.", errs["latitude"])
}

func TestInRule(t *testing.T) {
	type in struct {
		Plan string `json:"plan" validate:"required,in=monthly|yearly"`
	}
	assert.Empty(t, validate.Struct(in{Plan: "yearly"}))
	assert.Equal(t, "The selected plan is invalid.", validate.Struct(in{Plan: "weekly"})["plan"])
}

func TestNumericBounds(t *testing.T) {
	type in struct {
		Rating int     `json:"rating" validate:"required,between=1|5"`
		Qty    int     `json:"qty"    validate:"required,gte=1"`
		Price  float64 `json:"price"  validate:"gte=0"`
	}
	errs := validate.Struct(in{Rating: 6, Qty: 0, Price: -1})
	assert.Contains(t, errs, "rating")
	assert.Equal(t, "The qty field is required.", errs["qty"])
	assert.Contains(t, errs, "price")
}

func TestEmailAndSlug(t *testing.T) {
	type in struct {
		Email string `json:"email" validate:"required,email"`
		Slug  string `json:"slug"  validate:"nullable,slug"`
	}
	errs := validate.Struct(in{Email: "not-an-email", Slug: "Fresh Milk"})
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "slug")

	assert.Empty(t, validate.Struct(in{Email: "a@rrnagar.in", Slug: "fresh-milk"}))
}

func TestDigitsAndMinLength(t *testing.T) {
	type in struct {
		Code     string `json:"code"     validate:"required,digits=6"`
		Password string `json:"password" validate:"required,min=8"`
	}
	errs := validate.Struct(in{Code: "12a456", Password: "short"})
	assert.Equal(t, "The code must be 6 digits.", errs["code"])
	assert.Equal(t, "The password must be at least 8 characters.", errs["password"])
}
