// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Package-level validator, safe for concurrent use and caches struct info.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
}

type Payload interface {
	Validate() error
}

type RegisterPayload struct {
	Username        string `validate:"required,min=3"`
	Name            string `validate:"required"`
	Email           string `validate:"required,email"`
	Gender          string `validate:"required,oneof=male female other"`
	Location        string `validate:"required"`
	Password        string `validate:"required,min=6"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

type LoginPayload struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

type AddToCartPayload struct {
	ProductID int `validate:"gt=0"`
	Quantity  int `validate:"gte=1"`
}

// UpdateCartPayload accepts any quantity: zero or less removes the line.
type UpdateCartPayload struct {
	ProductID int `validate:"gt=0"`
	Quantity  int
}

type RemoveFromCartPayload struct {
	ProductID int `validate:"gt=0"`
}

type OTPPayload struct {
	OTP string `validate:"required,numeric,len=6"`
}

type NewProductPayload struct {
	Name     string  `validate:"required"`
	Price    float64 `validate:"gte=0"`
	Quantity int     `validate:"gte=0"`
}

func (p *RegisterPayload) Validate() error       { return validate.Struct(p) }
func (p *LoginPayload) Validate() error          { return validate.Struct(p) }
func (p *AddToCartPayload) Validate() error      { return validate.Struct(p) }
func (p *UpdateCartPayload) Validate() error     { return validate.Struct(p) }
func (p *RemoveFromCartPayload) Validate() error { return validate.Struct(p) }
func (p *OTPPayload) Validate() error            { return validate.Struct(p) }
func (p *NewProductPayload) Validate() error     { return validate.Struct(p) }

// messages holds the wording shown to visitors, keyed by field and tag.
var messages = map[string]string{
	"Username.required":        "Username is required",
	"Username.min":             "Username must be at least 3 characters",
	"Name.required":            "Name is required",
	"Email.required":           "Email is required",
	"Email.email":              "Invalid email address",
	"Gender.required":          "Gender is required",
	"Gender.oneof":             "Gender is required",
	"Location.required":        "Location is required",
	"Password.required":        "Password is required",
	"Password.min":             "Password must be at least 6 characters",
	"ConfirmPassword.required": "Please confirm your password",
	"ConfirmPassword.eqfield":  "Passwords do not match",
	"OTP.required":             "Please enter the 6-digit OTP",
	"OTP.numeric":              "OTP must contain digits only",
	"OTP.len":                  "OTP must be 6 digits",
}

// Messages returns one readable message per failed field, in field order.
func Messages(err error) []string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return []string{"invalid validation error format"}
	}
	out := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		if msg, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
			out = append(out, msg)
			continue
		}
		out = append(out, fmt.Sprintf("Field '%s' is invalid: %s", fe.Field(), fe.Tag()))
	}
	return out
}

// ValidationErrorResponse folds validation errors into a single error.
func ValidationErrorResponse(err error) error {
	return errors.New(strings.Join(Messages(err), "\n"))
}
