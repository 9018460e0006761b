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

// Package cart holds a visitor's line items and keeps them persisted in the
// visitor's local storage after every change.
package cart

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/agrofix/storefront/storage"
)

// Item is one line item. Price is per kilogram.
type Item struct {
	ID       int             `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Subtotal is Price * Quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Local is the persisted storage a cart is kept in.
type Local interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Store is a cart bound to one visitor's storage. A Store is not safe for
// concurrent use; build one per request.
type Store struct {
	local Local
	items []Item
}

// Load rehydrates the cart from local. A payload that cannot be decoded is
// logged and leaves the cart empty. Only storage read errors are returned.
func Load(ctx context.Context, local Local, log logrus.FieldLogger) (*Store, error) {
	s := &Store{local: local}
	raw, ok, err := local.Get(ctx, storage.KeyCart)
	if err != nil {
		return nil, errors.Wrap(err, "could not read cart")
	}
	if !ok || raw == "" {
		return s, nil
	}
	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		log.WithField("error", err).Error("failed to parse persisted cart, starting empty")
		return s, nil
	}
	s.items = normalize(items)
	return s, nil
}

// normalize enforces one entry per id and quantity >= 1 on data read back
// from storage.
func normalize(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		if i := indexOf(out, it.ID); i >= 0 {
			out[i].Quantity += it.Quantity
			continue
		}
		out = append(out, it)
	}
	return out
}

func indexOf(items []Item, id int) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// commit persists next and, only once that succeeded, makes it current.
func (s *Store) commit(ctx context.Context, next []Item) error {
	if next == nil {
		next = []Item{}
	}
	b, err := json.Marshal(next)
	if err != nil {
		return err
	}
	if err := s.local.Set(ctx, storage.KeyCart, string(b)); err != nil {
		return errors.Wrap(err, "could not persist cart")
	}
	s.items = next
	return nil
}

func (s *Store) clone() []Item {
	return append([]Item(nil), s.items...)
}

// AddItem adds quantity of item. If the cart already has an entry with the
// same id its quantity is incremented, otherwise a new entry is appended.
// item.Quantity is ignored.
func (s *Store) AddItem(ctx context.Context, item Item, quantity int) error {
	if quantity <= 0 {
		return errors.Errorf("cart: quantity must be positive, got %d", quantity)
	}
	next := s.clone()
	if i := indexOf(next, item.ID); i >= 0 {
		next[i].Quantity += quantity
	} else {
		item.Quantity = quantity
		next = append(next, item)
	}
	return s.commit(ctx, next)
}

// RemoveItem deletes the entry for id. It is a no-op when there is none.
func (s *Store) RemoveItem(ctx context.Context, id int) error {
	i := indexOf(s.items, id)
	if i < 0 {
		return nil
	}
	next := s.clone()
	next = append(next[:i], next[i+1:]...)
	return s.commit(ctx, next)
}

// UpdateQuantity sets the entry's quantity; a quantity <= 0 removes it.
func (s *Store) UpdateQuantity(ctx context.Context, id, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, id)
	}
	i := indexOf(s.items, id)
	if i < 0 {
		return nil
	}
	next := s.clone()
	next[i].Quantity = quantity
	return s.commit(ctx, next)
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	return s.commit(ctx, []Item{})
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []Item { return s.clone() }

func (s *Store) Len() int { return len(s.items) }

// TotalItems is the sum of all quantities.
func (s *Store) TotalItems() int {
	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

// TotalPrice is the sum of price * quantity over all items.
func (s *Store) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// ClampQuantity keeps a requested quantity within [1, stock]. A stock of zero
// or less yields zero: the product cannot be added.
func ClampQuantity(requested, stock int) int {
	if stock <= 0 {
		return 0
	}
	if requested < 1 {
		return 1
	}
	if requested > stock {
		return stock
	}
	return requested
}
