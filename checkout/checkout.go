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

// Package checkout turns a cart into orders, one order per line item.
package checkout

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/agrofix/storefront/api"
	"github.com/agrofix/storefront/cart"
)

// ErrEmptyCart is returned when there is nothing to order.
var ErrEmptyCart = errors.New("cart is empty")

// OrderCreator creates a single order.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req api.OrderRequest) (*api.Order, error)
}

// Cart is the part of a cart the checkout needs.
type Cart interface {
	Items() []cart.Item
	Clear(ctx context.Context) error
}

// PartialError reports a checkout that stopped at a failing line item.
// Lines before it were already ordered; the remote side does not roll them
// back.
type PartialError struct {
	Failed    cart.Item
	Submitted []api.Order
	Err       error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("order for %q failed after %d of the cart's lines were placed: %v",
		e.Failed.Name, len(e.Submitted), e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// Result lists the orders created by a successful checkout.
type Result struct {
	Orders []api.Order
}

// Place submits one order per line item, strictly one after the other. The
// first failure stops the loop and leaves the cart untouched so the visitor
// can retry. The cart is cleared only after every order was created.
func Place(ctx context.Context, c Cart, orders OrderCreator, log logrus.FieldLogger) (*Result, error) {
	items := c.Items()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	res := &Result{Orders: make([]api.Order, 0, len(items))}
	for _, it := range items {
		o, err := orders.CreateOrder(ctx, api.OrderRequest{ProductID: it.ID, Quantity: it.Quantity})
		if err != nil {
			log.WithField("product", it.ID).WithField("placed", len(res.Orders)).
				WithField("error", err).Error("order creation failed, cart kept")
			return nil, &PartialError{Failed: it, Submitted: res.Orders, Err: err}
		}
		res.Orders = append(res.Orders, *o)
	}
	if err := c.Clear(ctx); err != nil {
		return res, errors.Wrap(err, "orders placed but the cart could not be cleared")
	}
	log.WithField("orders", len(res.Orders)).Info("checkout complete")
	return res, nil
}
