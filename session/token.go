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

package session

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// User is the identity carried in a session token.
type User struct {
	UserID   int    `json:"userId"`
	Username string `json:"username"`
}

type claims struct {
	UserID   int    `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Decoder turns a session token into a User.
//
// Without a secret only the payload is decoded; the signature and expiry are
// not checked and the API remains the only party that validates the token.
// With a secret the HMAC signature and the registered time claims are
// verified as well.
type Decoder struct {
	secret []byte
	parser *jwt.Parser
}

// NewDecoder returns a Decoder. An empty secret disables verification.
func NewDecoder(secret string) *Decoder {
	d := &Decoder{}
	if secret == "" {
		d.parser = jwt.NewParser()
		return d
	}
	d.secret = []byte(secret)
	d.parser = jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	return d
}

// Verifies reports whether signatures are checked.
func (d *Decoder) Verifies() bool { return d.secret != nil }

// Decode returns the identity in token.
func (d *Decoder) Decode(token string) (*User, error) {
	var c claims
	if d.secret == nil {
		if _, _, err := d.parser.ParseUnverified(token, &c); err != nil {
			return nil, errors.Wrap(err, "malformed session token")
		}
	} else {
		t, err := d.parser.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) {
			return d.secret, nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "invalid session token")
		}
		if !t.Valid {
			return nil, errors.New("invalid session token")
		}
	}
	return &User{UserID: c.UserID, Username: c.Username}, nil
}
