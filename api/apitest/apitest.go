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

// Package apitest runs an in-process fake of the Agrofix REST API for tests.
package apitest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"github.com/agrofix/storefront/api"
)

// Secret signs the tokens issued by the fake.
const Secret = "apitest-secret"

// Server is a fake API.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	products []api.Product
	users    map[string]api.RegisterRequest
	orders   []api.Order
	seen     []Request

	omitToken   bool
	failOrderAt int
	failOrders  bool
	orderCalls  int
	orderDelay  time.Duration
}

// Request is a recorded request.
type Request struct {
	Method        string
	Path          string
	Authorization string
}

// New starts a fake seeded with products.
func New(products ...api.Product) *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		products: products,
		users:    make(map[string]api.RegisterRequest),
	}
	r := gin.New()
	r.Use(s.record)
	r.POST("/login", s.login)
	r.POST("/users", s.register)
	r.GET("/products", s.listProducts)
	r.POST("/products", s.addProduct)
	authed := r.Group("/", s.requireToken)
	authed.POST("/orders", s.createOrder)
	authed.GET("/orders", s.listOrders)
	s.Server = httptest.NewServer(r)
	return s
}

// Product returns a catalog entry with a whole-number price.
func Product(id int, name string, price int64, stock int) api.Product {
	return api.Product{ID: id, Name: name, Price: decimal.NewFromInt(price), Quantity: stock}
}

// AddUser registers an account the fake will accept at /login.
func (s *Server) AddUser(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = api.RegisterRequest{Username: username, Password: password}
}

// Users returns the registered usernames' records.
func (s *Server) Users() map[string]api.RegisterRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]api.RegisterRequest, len(s.users))
	for k, v := range s.users {
		out[k] = v
	}
	return out
}

// OmitToken makes POST /login answer 200 without a jwtToken.
func (s *Server) OmitToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitToken = true
}

// FailOrderAt makes the n-th POST /orders (1-based) fail with a 500 and an
// error message.
func (s *Server) FailOrderAt(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOrderAt = n
}

// DelayOrders makes every POST /orders wait d before answering.
func (s *Server) DelayOrders(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderDelay = d
}

// FailOrderListing makes GET /orders fail with a bare 502.
func (s *Server) FailOrderListing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOrders = true
}

// Orders returns the orders created so far.
func (s *Server) Orders() []api.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Order(nil), s.orders...)
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.seen...)
}

// Token issues a signed token for a user.
func Token(userID int, username string) string {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId":   userID,
		"username": username,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	signed, err := t.SignedString([]byte(Secret))
	if err != nil {
		panic(err)
	}
	return signed
}

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.seen = append(s.seen, Request{
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		Authorization: c.GetHeader("Authorization"),
	})
	s.mu.Unlock()
	c.Next()
}

func (s *Server) requireToken(c *gin.Context) {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	tok, err := jwt.Parse(strings.TrimPrefix(h, "Bearer "), func(*jwt.Token) (interface{}, error) {
		return []byte(Secret), nil
	})
	if err != nil || !tok.Valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.Next()
}

func (s *Server) login(c *gin.Context) {
	var req api.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	s.mu.Lock()
	u, ok := s.users[req.Username]
	userID := len(s.users)
	omit := s.omitToken
	s.mu.Unlock()
	if !ok || u.Password != req.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}
	if omit {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
		return
	}
	c.JSON(http.StatusOK, api.LoginResponse{JWTToken: Token(userID, req.Username)})
}

func (s *Server) register(c *gin.Context) {
	var req api.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Username]; exists {
		c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
		return
	}
	s.users[req.Username] = req
	c.JSON(http.StatusCreated, api.User{
		ID:       len(s.users),
		Username: req.Username,
		Name:     req.Name,
		Email:    req.Email,
		Gender:   req.Gender,
		Location: req.Location,
	})
}

func (s *Server) listProducts(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]api.Product{}, s.products...)
	c.JSON(http.StatusOK, out)
}

func (s *Server) addProduct(c *gin.Context) {
	var req api.NewProduct
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := api.Product{ID: len(s.products) + 1, Name: req.Name, Price: req.Price, Quantity: req.Quantity}
	s.products = append(s.products, p)
	c.JSON(http.StatusCreated, p)
}

func (s *Server) createOrder(c *gin.Context) {
	var req api.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	s.mu.Lock()
	delay := s.orderDelay
	s.mu.Unlock()
	time.Sleep(delay)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderCalls++
	if s.failOrderAt > 0 && s.orderCalls == s.failOrderAt {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Insufficient stock"})
		return
	}
	name := ""
	for _, p := range s.products {
		if p.ID == req.ProductID {
			name = p.Name
		}
	}
	o := api.Order{ID: len(s.orders) + 1, Product: name, Quantity: req.Quantity}
	s.orders = append(s.orders, o)
	c.JSON(http.StatusCreated, o)
}

func (s *Server) listOrders(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOrders {
		c.Status(http.StatusBadGateway)
		return
	}
	c.JSON(http.StatusOK, append([]api.Order{}, s.orders...))
}
