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

package main

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/agrofix/storefront/api"
	"github.com/agrofix/storefront/otp"
	"github.com/agrofix/storefront/session"
	"github.com/agrofix/storefront/validator"
)

// loginRedirects maps the redirect query parameter to a page. Anything else
// goes to the home page.
var loginRedirects = map[string]string{
	"cart":   "/cart",
	"orders": "/orders",
}

// loginPageHandler renders the login page (GET /login).
func (fe *frontendServer) loginPageHandler(w http.ResponseWriter, r *http.Request, v *visitor) {
	data := map[string]interface{}{
		"redirect": r.URL.Query().Get("redirect"),
	}
	if r.URL.Query().Get("registered") == "true" {
		data["success_message"] = "Registration successful! Please log in."
	}
	fe.render(w, r, v, "login", data)
}

// loginSubmitHandler handles the login form submission (POST /login).
func (fe *frontendServer) loginSubmitHandler(w http.ResponseWriter, r *http.Request, v *visitor) {
	log := requestLog(r)
	payload := validator.LoginPayload{
		Username: r.FormValue("username"),
		Password: r.FormValue("password"),
	}
	target := r.FormValue("redirect")

	renderLoginError := func(code int, msg string) {
		w.WriteHeader(code)
		fe.render(w, r, v, "login", map[string]interface{}{
			"login_error": msg,
			"login_name":  payload.Username,
			"redirect":    target,
		})
	}

	if err := payload.Validate(); err != nil {
		renderLoginError(http.StatusUnprocessableEntity, validator.ValidationErrorResponse(err).Error())
		return
	}

	if err := v.session.Login(r.Context(), fe.api, payload.Username, payload.Password); err != nil {
		log.WithField("error", err).Warn("login failed")
		msg := api.UserMessage(err, "Login failed. Please check your credentials and try again.")
		if errors.Is(err, session.ErrNoToken) {
			msg = "Login failed. Please try again."
		}
		renderLoginError(http.StatusUnauthorized, msg)
		return
	}

	dest, ok := loginRedirects[target]
	if !ok {
		dest = "/"
	}
	redirect(w, fe.baseURL+dest)
}

// logoutHandler forgets the session token (GET /logout). The cart stays.
func (fe *frontendServer) logoutHandler(w http.ResponseWriter, r *http.Request, v *visitor) {
	requestLog(r).Debug("logging out")
	if err := v.session.Logout(r.Context()); err != nil {
		fe.renderHTTPError(r, w, v, errors.Wrap(err, "failed to log out"), http.StatusInternalServerError)
		return
	}
	redirect(w, fe.baseURL+"/")
}

// registerPageHandler renders the registration page (GET /register).
func (fe *frontendServer) registerPageHandler(w http.ResponseWriter, r *http.Request, v *visitor) {
	fe.render(w, r, v, "register", map[string]interface{}{})
}

// registerSubmitHandler validates the registration form, sends a one-time
// passcode and keeps the form in memory until it is verified (POST /register).
// The account is only created once the passcode is verified.
func (fe *frontendServer) registerSubmitHandler(w http.ResponseWriter, r *http.Request, v *visitor) {
	log := requestLog(r)
	payload := validator.RegisterPayload{
		Username:        r.FormValue("username"),
		Name:            r.FormValue("name"),
		Email:           r.FormValue("email"),
		Gender:          r.FormValue("gender"),
		Location:        r.FormValue("location"),
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirm_password"),
	}
	form := map[string]interface{}{
		"form": payload,
	}
	if err := payload.Validate(); err != nil {
		form["form_errors"] = validator.Messages(err)
		w.WriteHeader(http.StatusUnprocessableEntity)
		fe.render(w, r, v, "register", form)
		return
	}

	pending := api.RegisterRequest{
		Username: payload.Username,
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
		Gender:   payload.Gender,
		Location: payload.Location,
	}
	if err := fe.otp.Send(r.Context(), pending.Email); err != nil {
		log.WithField("error", err).Warn("failed to send OTP")
		form["register_error"] = api.UserMessage(err, "Failed to send OTP. Please try again.")
		w.WriteHeader(http.StatusBadGateway)
		fe.render(w, r, v, "register", form)
		return
	}
	fe.pending.put(v.local.SessionID(), pending)
	log.WithField("email", pending.Email).Info("OTP sent")
	fe.render(w, r, v, "verify_otp", map[string]interface{}{
		"email":  pending.Email,
		"notice": "OTP sent successfully",
	})
}

// verifyOTPHandler checks the passcode and creates the account
// (POST /register/verify).
func (fe *frontendServer) verifyOTPHandler(w http.ResponseWriter, r *http.Request, v *visitor) {
	log := requestLog(r)
	pending, ok := fe.pending.get(v.local.SessionID())
	if !ok {
		w.WriteHeader(http.StatusConflict)
		fe.render(w, r, v, "register", map[string]interface{}{
			"register_error": "Session expired. Please try again.",
		})
		return
	}

	renderOTPError := func(code int, msg string) {
		w.WriteHeader(code)
		fe.render(w, r, v, "verify_otp", map[string]interface{}{
			"email":     pending.Email,
			"otp_error": msg,
		})
	}

	payload := validator.OTPPayload{OTP: r.FormValue("otp")}
	if err := payload.Validate(); err != nil {
		renderOTPError(http.StatusUnprocessableEntity, validator.ValidationErrorResponse(err).Error())
		return
	}
	if err := fe.otp.Verify(r.Context(), pending.Email, payload.OTP); err != nil {
		if errors.Is(err, otp.ErrInvalidOTP) {
			renderOTPError(http.StatusUnprocessableEntity, "Invalid OTP. Please try again.")
			return
		}
		renderOTPError(http.StatusBadGateway, "Registration failed. Please try again.")
		return
	}

	user, err := v.api.Register(r.Context(), pending)
	if err != nil {
		log.WithField("error", err).Warn("registration failed")
		renderOTPError(http.StatusBadGateway, api.UserMessage(err, "Registration failed. Please try again."))
		return
	}
	fe.pending.drop(v.local.SessionID())
	log.WithField("username", user.Username).Info("user registered successfully")
	redirect(w, fe.baseURL+"/login?registered=true")
}

// resendOTPHandler sends the passcode again (POST /register/resend).
func (fe *frontendServer) resendOTPHandler(w http.ResponseWriter, r *http.Request, v *visitor) {
	pending, ok := fe.pending.get(v.local.SessionID())
	if !ok {
		w.WriteHeader(http.StatusConflict)
		fe.render(w, r, v, "register", map[string]interface{}{
			"register_error": "Session expired. Please try again.",
		})
		return
	}
	data := map[string]interface{}{"email": pending.Email}
	if err := fe.otp.Send(r.Context(), pending.Email); err != nil {
		requestLog(r).WithField("error", err).Warn("failed to resend OTP")
		data["otp_error"] = "Failed to resend OTP. Please try again."
		w.WriteHeader(http.StatusBadGateway)
	} else {
		data["notice"] = "OTP sent successfully"
	}
	fe.render(w, r, v, "verify_otp", data)
}
