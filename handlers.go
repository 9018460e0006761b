// Copyright 2018 Google LLC
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
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/agrofix/storefront/api"
	"github.com/agrofix/storefront/cart"
	"github.com/agrofix/storefront/checkout"
	"github.com/agrofix/storefront/session"
	"github.com/agrofix/storefront/storage"
	"github.com/agrofix/storefront/validator"
)

// orderStatus is shown for every order; the API does not report one.
const orderStatus = "Processing"

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").
	Funcs(template.FuncMap{
		"renderPrice": renderPrice,
	}).ParseFS(templateFS, "templates/*.html"))

// visitor is the per-request state of one browser session: its persisted
// local storage, its cart, its login and an API client carrying its token.
type visitor struct {
	local   *storage.Local
	cart    *cart.Store
	session *session.Store
	api     *api.Client
}

func (fe *frontendServer) loadVisitor(r *http.Request) (*visitor, error) {
	ctx := r.Context()
	log := requestLog(r)
	local := storage.NewLocal(fe.store, sessionID(r))
	sess, err := session.Load(ctx, local, fe.decoder, log)
	if err != nil {
		return nil, err
	}
	c, err := cart.Load(ctx, local, log)
	if err != nil {
		return nil, err
	}
	return &visitor{
		local:   local,
		cart:    c,
		session: sess,
		api:     fe.api.WithToken(sess),
	}, nil
}

type visitorHandler func(http.ResponseWriter, *http.Request, *visitor)

// withVisitor loads the visitor and hands it to h, rendering an error page
// when its state cannot be read.
func (fe *frontendServer) withVisitor(h visitorHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := fe.loadVisitor(r)
		if err != nil {
			fe.renderHTTPError(r, w, nil, errors.Wrap(err, "could not load session"), http.StatusInternalServerError)
			return
		}
		h(w, r, v)
	}
}

// withLockedVisitor is withVisitor for routes that change the visitor's
// state. The session stays locked from load until h returns, so overlapping
// requests from one visitor apply one after another.
func (fe *frontendServer) withLockedVisitor(h visitorHandler) http.HandlerFunc {
	next := fe.withVisitor(h)
	return func(w http.ResponseWriter, r *http.Request) {
		unlock := fe.locks.lock(sessionID(r))
		defer unlock()
		next(w, r)
	}
}

type productView struct {
	Item     api.Product
	InStock  bool
	MaxOrder int
	InCart   int
}

func productViews(products []api.Product, c *cart.Store) []productView {
	inCart := make(map[int]int)
	for _, it := range c.Items() {
		inCart[it.ID] = it.Quantity
	}
	out := make([]productView, len(products))
	for i, p := range products {
		out[i] = productView{
			Item:     p,
			InStock:  p.Quantity > 0,
			MaxOrder: p.Quantity,
			InCart:   inCart[p.ID],
		}
	}
	return out
}

func (fe *frontendServer) homeHandler(w http.ResponseWriter, r *http.Request, v *visitor) {
	log := requestLog(r)
	log.Info("home")

	// the listing on the landing page is not critical
	products, err := v.api.Products(r.Context())
	if err != nil {
		log.WithField("error", err).Warn("failed to load products for home page")
	}
	const featured = 4
	if len(products) > featured {
		products = products[:featured]
	}
	fe.render(w, r, v, "home", map[string]interface{}{
		"products": productViews(products, v.cart),
	})
}

func (fe *frontendServer) productsHandler(w http.ResponseWriter, r *http.Request, v *visitor) {
	log := requestLog(r)
	log.Debug("listing products")
	products, err := v.api.Products(r.Context())
	if err != nil {
		fe.renderHTTPError(r, w, v, errors.Wrap(err, "could not retrieve products"), http.StatusBadGateway)
		return
	}
	fe.render(w, r, v, "products", map[string]interface{}{
		"products": productViews(products, v.cart),
		"added":    r.URL.Query().Get("added"),
	})
}

func (fe *frontendServer) addProductHandler(w http.ResponseWriter, r *http.Request, v *visitor) {
	log := requestLog(r)
	price, _ := strconv.ParseFloat(r.FormValue("price"), 64)
	quantity, _ := strconv.Atoi(r.FormValue("quantity"))
	payload := validator.NewProductPayload{
		Name:     r.FormValue("name"),
		Price:    price,
		Quantity: quantity,
	}
	if err := payload.Validate(); err != nil {
		fe.renderHTTPError(r, w, v, validator.ValidationErrorResponse(err), http.StatusUnprocessableEntity)
		return
	}
	p, err := v.api.AddProduct(r.Context(), api.NewProduct{
		Name:     payload.Name,
		Price:    decimal.NewFromFloat(payload.Price),
		Quantity: payload.Quantity,
	})
	if err != nil {
		fe.renderHTTPError(r, w, v, errors.Wrap(err, "failed to add product"), http.StatusBadGateway)
		return
	}
	log.WithField("product", p.ID).Info("product added")
	redirect(w, fe.baseURL+"/products")
}

func (fe *frontendServer) addToCartHandler(w http.ResponseWriter, r *http.Request, v *visitor) {
	log := requestLog(r)
	productID, _ := strconv.Atoi(r.FormValue("product_id"))
	quantity, _ := strconv.Atoi(r.FormValue("quantity"))
	payload := validator.AddToCartPayload{
		ProductID: productID,
		Quantity:  quantity,
	}
	if err := payload.Validate(); err != nil {
		fe.renderHTTPError(r, w, v, validator.ValidationErrorResponse(err), http.StatusUnprocessableEntity)
		return
	}
	log.WithField("product", payload.ProductID).WithField("quantity", payload.Quantity).Debug("adding to cart")

	p, err := v.api.Product(r.Context(), payload.ProductID)
	if err != nil {
		fe.renderHTTPError(r, w, v, errors.Wrap(err, "could not retrieve product"), http.StatusBadGateway)
		return
	}
	qty := cart.ClampQuantity(payload.Quantity, p.Quantity)
	if qty == 0 {
		fe.renderHTTPError(r, w, v, errors.Errorf("%s is out of stock", p.Name), http.StatusConflict)
		return
	}
	item := cart.Item{ID: p.ID, Name: p.Name, Price: p.Price}
	if err := v.cart.AddItem(r.Context(), item, qty); err != nil {
		fe.renderHTTPError(r, w, v, errors.Wrap(err, "failed to add to cart"), http.StatusInternalServerError)
		return
	}
	redirect(w, fe.baseURL+"/products?added="+strconv.Itoa(p.ID))
}

func (fe *frontendServer) updateCartItemHandler(w http.ResponseWriter, r *http.Request, v *visitor) {
	log := requestLog(r)
	productID, _ := strconv.Atoi(r.FormValue("product_id"))
	quantity, err := strconv.Atoi(r.FormValue("quantity"))
	payload := validator.UpdateCartPayload{ProductID: productID, Quantity: quantity}
	if vErr := payload.Validate(); err != nil || vErr != nil {
		fe.renderHTTPError(r, w, v, errors.New("invalid product_id or quantity"), http.StatusBadRequest)
		return
	}
	log.WithField("product_id", productID).WithField("quantity", quantity).Debug("updating cart item quantity")

	if err := v.cart.UpdateQuantity(r.Context(), payload.ProductID, payload.Quantity); err != nil {
		fe.renderHTTPError(r, w, v, errors.Wrap(err, "failed to update cart item"), http.StatusInternalServerError)
		return
	}
	redirect(w, fe.baseURL+"/cart")
}

func (fe *frontendServer) removeCartItemHandler(w http.ResponseWriter, r *http.Request, v *visitor) {
	productID, _ := strconv.Atoi(r.FormValue("product_id"))
	payload := validator.RemoveFromCartPayload{ProductID: productID}
	if err := payload.Validate(); err != nil {
		fe.renderHTTPError(r, w, v, validator.ValidationErrorResponse(err), http.StatusBadRequest)
		return
	}
	requestLog(r).WithField("product_id", productID).Debug("removing cart item")
	if err := v.cart.RemoveItem(r.Context(), payload.ProductID); err != nil {
		fe.renderHTTPError(r, w, v, errors.Wrap(err, "failed to remove cart item"), http.StatusInternalServerError)
		return
	}
	redirect(w, fe.baseURL+"/cart")
}

func (fe *frontendServer) emptyCartHandler(w http.ResponseWriter, r *http.Request, v *visitor) {
	requestLog(r).Debug("emptying cart")
	if err := v.cart.Clear(r.Context()); err != nil {
		fe.renderHTTPError(r, w, v, errors.Wrap(err, "failed to empty cart"), http.StatusInternalServerError)
		return
	}
	redirect(w, fe.baseURL+"/")
}

func (fe *frontendServer) viewCartHandler(w http.ResponseWriter, r *http.Request, v *visitor) {
	requestLog(r).Debug("view user cart")
	fe.renderCart(w, r, v, http.StatusOK, "")
}

func (fe *frontendServer) renderCart(w http.ResponseWriter, r *http.Request, v *visitor, code int, errMsg string) {
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	fe.render(w, r, v, "cart", map[string]interface{}{
		"items":       v.cart.Items(),
		"total_items": v.cart.TotalItems(),
		"total_price": v.cart.TotalPrice(),
		"error":       errMsg,
	})
}

func (fe *frontendServer) placeOrderHandler(w http.ResponseWriter, r *http.Request, v *visitor) {
	log := requestLog(r)
	log.Debug("placing order")

	if !v.session.IsAuthenticated() {
		redirect(w, fe.baseURL+"/login?redirect=cart")
		return
	}

	res, err := checkout.Place(r.Context(), v.cart, v.api, log)
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		fe.renderCart(w, r, v, http.StatusUnprocessableEntity, "Your cart is empty")
		return
	case err != nil && res == nil:
		fe.renderCart(w, r, v, http.StatusBadGateway,
			api.UserMessage(err, "Failed to place order. Please try again."))
		return
	case err != nil:
		// every order went through, only clearing the cart failed
		log.WithField("error", err).Error("cart not cleared after checkout")
	}
	log.WithField("orders", len(res.Orders)).Info("order placed")
	fe.render(w, r, v, "order_success", map[string]interface{}{
		"orders": res.Orders,
	})
}

func (fe *frontendServer) orderHistoryHandler(w http.ResponseWriter, r *http.Request, v *visitor) {
	log := requestLog(r)
	log.Debug("view order history")

	if !v.session.IsAuthenticated() {
		redirect(w, fe.baseURL+"/login?redirect=orders")
		return
	}

	orders, err := v.api.Orders(r.Context())
	errMsg := ""
	if err != nil {
		log.WithField("error", err).Warn("failed to fetch orders")
		errMsg = api.UserMessage(err, "Failed to load orders. Please try again later.")
		w.WriteHeader(http.StatusBadGateway)
	}
	fe.render(w, r, v, "orders", map[string]interface{}{
		"orders": orders,
		"status": orderStatus,
		"error":  errMsg,
	})
}

// render executes a page template with the common data merged in.
func (fe *frontendServer) render(w http.ResponseWriter, r *http.Request, v *visitor, name string, payload map[string]interface{}) {
	if err := templates.ExecuteTemplate(w, name, fe.injectCommonTemplateData(r, v, payload)); err != nil {
		requestLog(r).Error(err)
	}
}

func (fe *frontendServer) renderHTTPError(r *http.Request, w http.ResponseWriter, v *visitor, err error, code int) {
	log := requestLog(r)
	log.WithField("error", err).Error("request error")
	errMsg := fmt.Sprintf("%+v", err)

	w.WriteHeader(code)

	if templateErr := templates.ExecuteTemplate(w, "error", fe.injectCommonTemplateData(r, v, map[string]interface{}{
		"error":       errMsg,
		"status_code": code,
		"status":      http.StatusText(code),
	})); templateErr != nil {
		log.Println(templateErr)
	}
}

func (fe *frontendServer) injectCommonTemplateData(r *http.Request, v *visitor, payload map[string]interface{}) map[string]interface{} {
	data := map[string]interface{}{
		"session_id":  sessionID(r),
		"request_id":  r.Context().Value(ctxKeyRequestID{}),
		"currentYear": time.Now().Year(),
		"baseUrl":     fe.baseURL,
		"logged_in":   false,
		"username":    "",
		"cart_size":   0,
	}
	if v != nil {
		data["cart_size"] = v.cart.TotalItems()
		if u := v.session.User(); u != nil {
			data["logged_in"] = true
			data["username"] = u.Username
		}
	}

	for k, val := range payload {
		data[k] = val
	}

	return data
}

func requestLog(r *http.Request) logrus.FieldLogger {
	if log, ok := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger); ok {
		return log
	}
	return logrus.StandardLogger()
}

func sessionID(r *http.Request) string {
	v := r.Context().Value(ctxKeySessionID{})
	if v != nil {
		return v.(string)
	}
	return ""
}

func redirect(w http.ResponseWriter, location string) {
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusFound)
}

func renderPrice(d decimal.Decimal) string {
	return "₹" + d.StringFixed(2)
}
