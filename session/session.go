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

// Package session keeps track of who is logged in. The identity is derived
// from a bearer token persisted in the visitor's local storage.
package session

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/agrofix/storefront/api"
	"github.com/agrofix/storefront/storage"
)

// ErrNoToken is returned by Login when the API accepted the credentials but
// issued no token. No session is established.
var ErrNoToken = errors.New("login response did not include a token")

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*api.LoginResponse, error)
}

// Local is the persisted storage the token is kept in.
type Local interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Store is the auth state of one visitor. Build one per request with Load.
type Store struct {
	local   Local
	decoder *Decoder
	log     logrus.FieldLogger
	user    *User
}

// Load restores the session from a persisted token. A token that cannot be
// decoded is removed and the visitor is treated as logged out; only storage
// errors are returned.
func Load(ctx context.Context, local Local, decoder *Decoder, log logrus.FieldLogger) (*Store, error) {
	s := &Store{local: local, decoder: decoder, log: log}
	token, ok, err := local.Get(ctx, storage.KeyToken)
	if err != nil {
		return nil, errors.Wrap(err, "could not read session token")
	}
	if !ok || token == "" {
		return s, nil
	}
	u, err := decoder.Decode(token)
	if err != nil {
		log.WithField("error", err).Warn("discarding unreadable session token")
		if err := local.Remove(ctx, storage.KeyToken); err != nil {
			return nil, errors.Wrap(err, "could not remove session token")
		}
		return s, nil
	}
	s.user = u
	return s, nil
}

// Login sends the credentials through auth. On success the token is
// persisted and the session populated; on any error the session is left
// logged out and the error is returned.
func (s *Store) Login(ctx context.Context, auth Authenticator, username, password string) error {
	resp, err := auth.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if resp == nil || resp.JWTToken == "" {
		return ErrNoToken
	}
	u, err := s.decoder.Decode(resp.JWTToken)
	if err != nil {
		return err
	}
	if err := s.local.Set(ctx, storage.KeyToken, resp.JWTToken); err != nil {
		return errors.Wrap(err, "could not persist session token")
	}
	s.user = u
	s.log.WithField("username", u.Username).Info("user logged in")
	return nil
}

// Logout forgets the token and the user.
func (s *Store) Logout(ctx context.Context) error {
	s.user = nil
	return s.local.Remove(ctx, storage.KeyToken)
}

// User returns the current identity, nil when logged out.
func (s *Store) User() *User {
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Store) IsAuthenticated() bool { return s.user != nil }

// Token returns the persisted token, empty when there is none. It makes a
// Store usable as an api.TokenSource.
func (s *Store) Token(ctx context.Context) (string, error) {
	token, ok, err := s.local.Get(ctx, storage.KeyToken)
	if err != nil || !ok {
		return "", err
	}
	return token, nil
}

var _ api.TokenSource = (*Store)(nil)
