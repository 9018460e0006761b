package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/agrofix/storefront/api"
	"github.com/agrofix/storefront/api/apitest"
)

func TestProductsAndAddProduct(t *testing.T) {
	fake := apitest.New(apitest.Product(1, "Tomato", 40, 100))
	defer fake.Close()
	c := api.New(fake.URL, 0)
	ctx := context.Background()

	added, err := c.AddProduct(ctx, api.NewProduct{Name: "Onion", Price: decimal.RequireFromString("32.5"), Quantity: 7})
	if err != nil {
		t.Fatal(err)
	}
	if added.ID != 2 || !added.Price.Equal(decimal.RequireFromString("32.5")) {
		t.Fatalf("AddProduct = %+v", added)
	}

	products, err := c.Products(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 2 || products[0].Name != "Tomato" || products[1].Quantity != 7 {
		t.Fatalf("Products = %+v", products)
	}

	p, err := c.Product(ctx, 2)
	if err != nil || p.Name != "Onion" {
		t.Fatalf("Product(2) = %+v, %v", p, err)
	}
	if _, err := c.Product(ctx, 99); err == nil {
		t.Fatal("Product(99) should fail")
	}
}

func TestBearerTokenAttachedWhenPresent(t *testing.T) {
	fake := apitest.New(apitest.Product(1, "Tomato", 40, 100))
	defer fake.Close()
	ctx := context.Background()
	base := api.New(fake.URL, 0)

	if _, err := base.Orders(ctx); err == nil {
		t.Fatal("Orders without token should be rejected")
	}
	if _, err := base.WithToken(api.StaticToken("")).Products(ctx); err != nil {
		t.Fatal(err)
	}

	token := apitest.Token(1, "farmer")
	if _, err := base.WithToken(api.StaticToken(token)).CreateOrder(ctx, api.OrderRequest{ProductID: 1, Quantity: 3}); err != nil {
		t.Fatal(err)
	}

	reqs := fake.Requests()
	if len(reqs) != 3 {
		t.Fatalf("got %d requests, want 3", len(reqs))
	}
	if reqs[0].Authorization != "" || reqs[1].Authorization != "" {
		t.Fatalf("unexpected Authorization on tokenless requests: %+v", reqs[:2])
	}
	if want := "Bearer " + token; reqs[2].Authorization != want {
		t.Fatalf("Authorization = %q, want %q", reqs[2].Authorization, want)
	}
	if orders := fake.Orders(); len(orders) != 1 || orders[0].Product != "Tomato" || orders[0].Quantity != 3 {
		t.Fatalf("orders = %+v", orders)
	}
}

func TestServerErrorMessage(t *testing.T) {
	fake := apitest.New()
	defer fake.Close()
	c := api.New(fake.URL, 0)

	_, err := c.Login(context.Background(), "nobody", "secret")
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Login error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", apiErr.StatusCode)
	}
	if got := api.UserMessage(err, "fallback"); got != "Invalid username or password" {
		t.Fatalf("UserMessage = %q", got)
	}
}

func TestUserMessageFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := api.New(srv.URL, 0).Products(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := api.UserMessage(err, "Failed to load"); got != "Failed to load" {
		t.Fatalf("UserMessage = %q", got)
	}
	if got := api.UserMessage(errors.New("dial tcp: refused"), "Failed to load"); got != "Failed to load" {
		t.Fatalf("UserMessage for transport error = %q", got)
	}
}

func TestLoginAndRegister(t *testing.T) {
	fake := apitest.New()
	defer fake.Close()
	c := api.New(fake.URL, 0)
	ctx := context.Background()

	u, err := c.Register(ctx, api.RegisterRequest{
		Username: "farmer", Name: "Farmer Joe", Email: "joe@example.com",
		Password: "secret1", Gender: "male", Location: "Pune",
	})
	if err != nil {
		t.Fatal(err)
	}
	if u.Username != "farmer" || u.Location != "Pune" {
		t.Fatalf("Register = %+v", u)
	}
	if _, err := c.Register(ctx, api.RegisterRequest{Username: "farmer"}); api.UserMessage(err, "") != "Username already exists" {
		t.Fatalf("duplicate register error = %v", err)
	}

	resp, err := c.Login(ctx, "farmer", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if resp.JWTToken == "" {
		t.Fatal("empty token")
	}
}
