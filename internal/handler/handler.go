// Package handler exposes the webshop engines over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/webshop/internal/domain/article"
	"github.com/xenking/webshop/internal/domain/auth"
	"github.com/xenking/webshop/internal/domain/basket"
	"github.com/xenking/webshop/internal/domain/order"
	"github.com/xenking/webshop/internal/domain/user"
	"github.com/xenking/webshop/pkg/httpmiddleware"
)

// BasketIDHeader carries a guest basket id between requests.
const BasketIDHeader = "X-Basket-ID"

// Handler serves the webshop API.
type Handler struct {
	auth     *auth.Service
	users    *user.Service
	articles *article.Service
	baskets  *basket.Service
	orders   *order.Service
}

// New creates a Handler.
func New(
	authSvc *auth.Service,
	users *user.Service,
	articles *article.Service,
	baskets *basket.Service,
	orders *order.Service,
) *Handler {
	return &Handler{
		auth:     authSvc,
		users:    users,
		articles: articles,
		baskets:  baskets,
		orders:   orders,
	}
}

// RoutePattern returns the matched chi route pattern, used to label access
// logs without per-request ids.
func RoutePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// Router mounts every route under prefix.
func (h *Handler) Router(prefix string) http.Handler {
	r := chi.NewRouter()
	r.Use(httpmiddleware.LogRequests(RoutePattern))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorBody(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	mount := func(r chi.Router) {
		r.Use(h.Authenticate)

		r.Post("/sign-in/user", h.signIn)
		r.Post("/sign-out/user", h.signOut)
		r.Post("/create/user", h.createUser)
		r.Put("/update/user", h.updateUser)
		r.Post("/delete/user", h.deleteUser)
		r.With(RequireAuthenticated).Get("/user", h.getUser)
		r.With(RequireAuthenticated).Get("/users", h.listUsers)

		r.Get("/article", h.getArticle)
		r.Get("/articles", h.listArticles)
		r.Get("/articles/latest", h.latestArticles)
		r.Patch("/change-rating/article", h.rateArticle)

		r.Get("/shopping-basket", h.getBasket)
		r.Post("/create/shopping-basket", h.createBasket)
		r.Post("/add-item/shopping-basket", h.addItem)
		r.Post("/remove-item/shopping-basket", h.removeItem)
		r.Patch("/change-item-amount/shopping-basket", h.changeItemAmount)

		r.Get("/orders/user", h.listUserOrders)
		r.Put("/update/order", h.updateOrder)
		r.Patch("/delete/order", h.deleteOrder)
		r.Group(func(r chi.Router) {
			r.Use(RequireAuthenticated)
			r.Post("/create/order", h.createOrder)
			r.Get("/order", h.getOrder)
			r.Put("/update/order/delivery-address", h.updateOrderField(order.FieldDeliveryAddress))
			r.Put("/update/order/contact-data", h.updateOrderField(order.FieldContactData))
			r.Put("/update/order/delivery-type", h.updateOrderField(order.FieldDeliveryType))
			r.Put("/update/order/payment-type", h.updateOrderField(order.FieldPaymentType))
		})
		r.Group(func(r chi.Router) {
			r.Use(RequireElevated)
			r.Get("/orders", h.listOrders)
			r.Patch("/update/order/state", h.changeOrderState)
		})
	}
	if prefix == "" || prefix == "/" {
		r.Group(mount)
	} else {
		r.Route(prefix, mount)
	}
	return r
}
