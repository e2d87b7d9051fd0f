package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/webshop/internal/domain/auth"
	"github.com/xenking/webshop/internal/domain/basket"
	"github.com/xenking/webshop/internal/domain/fault"
)

var errBasketHeaderRequired = fault.Invalid("%s header is required for guest baskets", BasketIDHeader)

type basketItemRequest struct {
	ArticleID string
	Quantity  int
}

func (req *basketItemRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "articleId":
			req.ArticleID, err = d.Str()
		case "quantity", "amount":
			req.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
}

// basketID resolves the basket addressed by a request. Authenticated callers
// always use their own basket; anonymous callers name a guest basket in
// BasketIDHeader. ok is false when an anonymous caller sent no header.
func basketID(r *http.Request) (id basket.ID, ok bool, err error) {
	if v := auth.VerdictFrom(r.Context()); v.IsAuthenticated() {
		return basket.ForUser(v.UserID), true, nil
	}
	raw := r.Header.Get(BasketIDHeader)
	if raw == "" {
		return "", false, nil
	}
	id, err = basket.ParseGuest(raw)
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// mutableBasketID is basketID for routes that change a basket.
func mutableBasketID(r *http.Request) (basket.ID, error) {
	id, ok, err := basketID(r)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errBasketHeaderRequired
	}
	return id, nil
}

func encodeBasket(e *jx.Encoder, b *basket.Basket) {
	e.Obj(func(e *jx.Encoder) {
		field(e, "id", string(b.ID))
		e.Field("items", func(e *jx.Encoder) { encodeItems(e, b.Items) })
		moneyField(e, "total", b.Total())
		timeField(e, "createdAt", b.CreatedAt)
		timeField(e, "updatedAt", b.UpdatedAt)
	})
}

func encodeItems(e *jx.Encoder, items []basket.Item) {
	e.Arr(func(e *jx.Encoder) {
		for _, it := range items {
			e.Obj(func(e *jx.Encoder) {
				field(e, "articleId", it.ArticleID)
				field(e, "name", it.Name)
				intField(e, "quantity", it.Quantity)
				moneyField(e, "price", it.PriceSnapshot)
				moneyField(e, "subtotal", it.Subtotal())
			})
		}
	})
}

func writeBasket(w http.ResponseWriter, status int, b *basket.Basket) {
	if b.ID.IsGuest() {
		w.Header().Set(BasketIDHeader, string(b.ID))
	}
	writeJSON(w, status, func(e *jx.Encoder) { encodeBasket(e, b) })
}

func (h *Handler) getBasket(w http.ResponseWriter, r *http.Request) {
	id, ok, err := basketID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeBasket(w, http.StatusOK, &basket.Basket{})
		return
	}
	b, err := h.baskets.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBasket(w, http.StatusOK, b)
}

// createBasket issues a guest basket id to anonymous callers that have none.
func (h *Handler) createBasket(w http.ResponseWriter, r *http.Request) {
	id, ok, err := basketID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		id = basket.NewGuest()
	}
	b, err := h.baskets.Create(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBasket(w, http.StatusCreated, b)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	h.changeBasket(w, r, func(id basket.ID, req basketItemRequest) (*basket.Basket, error) {
		return h.baskets.AddItem(r.Context(), id, req.ArticleID, req.Quantity)
	})
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	h.changeBasket(w, r, func(id basket.ID, req basketItemRequest) (*basket.Basket, error) {
		return h.baskets.RemoveItem(r.Context(), id, req.ArticleID)
	})
}

func (h *Handler) changeItemAmount(w http.ResponseWriter, r *http.Request) {
	h.changeBasket(w, r, func(id basket.ID, req basketItemRequest) (*basket.Basket, error) {
		return h.baskets.ChangeItemAmount(r.Context(), id, req.ArticleID, req.Quantity)
	})
}

func (h *Handler) changeBasket(
	w http.ResponseWriter,
	r *http.Request,
	apply func(id basket.ID, req basketItemRequest) (*basket.Basket, error),
) {
	id, err := mutableBasketID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req basketItemRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ArticleID == "" {
		writeError(w, r, fault.Invalid("articleId is required"))
		return
	}
	b, err := apply(id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBasket(w, http.StatusOK, b)
}
