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

// Package otp is a stand-in for a one-time passcode service. Nothing is
// delivered and codes never expire; it carries no security properties.
package otp

import (
	"context"

	"github.com/pkg/errors"
)

// FixedCode is the only code Mock accepts.
const FixedCode = "123456"

// ErrInvalidOTP is returned for a code that does not match.
var ErrInvalidOTP = errors.New("Invalid OTP")

// Verifier sends and checks one-time passcodes for an email address.
type Verifier interface {
	Send(ctx context.Context, email string) error
	Verify(ctx context.Context, email, code string) error
}

// Mock always reports a successful send and accepts only FixedCode.
type Mock struct{}

func (Mock) Send(context.Context, string) error { return nil }

func (Mock) Verify(_ context.Context, _ string, code string) error {
	if code != FixedCode {
		return ErrInvalidOTP
	}
	return nil
}
