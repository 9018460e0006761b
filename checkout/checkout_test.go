package checkout

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/agrofix/storefront/api"
	"github.com/agrofix/storefront/cart"
	"github.com/agrofix/storefront/storage"
)

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// scriptedOrders fails the call with index failAt (0-based); -1 never fails.
type scriptedOrders struct {
	failAt int
	calls  []api.OrderRequest
}

func (s *scriptedOrders) CreateOrder(_ context.Context, req api.OrderRequest) (*api.Order, error) {
	s.calls = append(s.calls, req)
	if len(s.calls)-1 == s.failAt {
		return nil, &api.APIError{StatusCode: 500, Message: "Insufficient stock"}
	}
	return &api.Order{ID: len(s.calls), Quantity: req.Quantity}, nil
}

func twoItemCart(t *testing.T) *cart.Store {
	t.Helper()
	ctx := context.Background()
	c, err := cart.Load(ctx, storage.NewLocal(storage.NewMemory(), "s"), quietLog())
	if err != nil {
		t.Fatal(err)
	}
	_ = c.AddItem(ctx, cart.Item{ID: 1, Name: "Tomato", Price: decimal.NewFromInt(40)}, 10)
	_ = c.AddItem(ctx, cart.Item{ID: 2, Name: "Onion", Price: decimal.NewFromInt(30)}, 5)
	return c
}

func TestPlaceSubmitsSequentiallyAndClears(t *testing.T) {
	c := twoItemCart(t)
	orders := &scriptedOrders{failAt: -1}

	res, err := Place(context.Background(), c, orders, quietLog())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Orders) != 2 {
		t.Fatalf("created %d orders, want 2", len(res.Orders))
	}
	want := []api.OrderRequest{{ProductID: 1, Quantity: 10}, {ProductID: 2, Quantity: 5}}
	if len(orders.calls) != 2 || orders.calls[0] != want[0] || orders.calls[1] != want[1] {
		t.Fatalf("calls = %+v, want %+v", orders.calls, want)
	}
	if c.Len() != 0 {
		t.Fatalf("cart not cleared: %+v", c.Items())
	}
}

func TestPlaceSecondFailureKeepsCart(t *testing.T) {
	c := twoItemCart(t)
	orders := &scriptedOrders{failAt: 1}

	res, err := Place(context.Background(), c, orders, quietLog())
	if res != nil {
		t.Fatalf("result = %+v, want nil", res)
	}
	var partial *PartialError
	if !errors.As(err, &partial) {
		t.Fatalf("error = %v, want *PartialError", err)
	}
	if partial.Failed.ID != 2 || len(partial.Submitted) != 1 {
		t.Fatalf("partial = %+v", partial)
	}
	if got := api.UserMessage(err, "fallback"); got != "Insufficient stock" {
		t.Fatalf("UserMessage = %q", got)
	}
	items := c.Items()
	if len(items) != 2 || items[0].Quantity != 10 || items[1].Quantity != 5 {
		t.Fatalf("cart = %+v, want both original items", items)
	}
}

func TestPlaceFirstFailureStopsImmediately(t *testing.T) {
	c := twoItemCart(t)
	orders := &scriptedOrders{failAt: 0}

	if _, err := Place(context.Background(), c, orders, quietLog()); err == nil {
		t.Fatal("expected error")
	}
	if len(orders.calls) != 1 {
		t.Fatalf("made %d calls after the first failed, want 1", len(orders.calls))
	}
	if c.Len() != 2 {
		t.Fatal("cart changed")
	}
}

func TestPlaceEmptyCart(t *testing.T) {
	c, _ := cart.Load(context.Background(), storage.NewLocal(storage.NewMemory(), "s"), quietLog())
	orders := &scriptedOrders{failAt: -1}
	if _, err := Place(context.Background(), c, orders, quietLog()); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("error = %v, want ErrEmptyCart", err)
	}
	if len(orders.calls) != 0 {
		t.Fatal("orders created for an empty cart")
	}
}
