package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/webshop/internal/domain/auth"
	"github.com/xenking/webshop/internal/domain/basket"
	"github.com/xenking/webshop/internal/domain/fault"
	"github.com/xenking/webshop/internal/domain/order"
)

type createOrderRequest struct {
	BasketID string
}

func (req *createOrderRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "basketId" {
			return d.Skip()
		}
		var err error
		req.BasketID, err = d.Str()
		return err
	})
}

// updateOrderRequest carries any subset of the editable field groups.
type updateOrderRequest struct {
	ID              string
	DeliveryAddress *order.Address
	ContactData     *order.Contact
	DeliveryType    *string
	PaymentType     *string
}

func (req *updateOrderRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id", "orderId":
			req.ID, err = d.Str()
		case string(order.FieldDeliveryAddress):
			req.DeliveryAddress = new(order.Address)
			err = decodeAddress(d, req.DeliveryAddress)
		case string(order.FieldContactData):
			req.ContactData = new(order.Contact)
			err = decodeContact(d, req.ContactData)
		case string(order.FieldDeliveryType):
			req.DeliveryType, err = decodeOptStr(d)
		case string(order.FieldPaymentType):
			req.PaymentType, err = decodeOptStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

func (req *updateOrderRequest) fieldsets() []order.Fieldset {
	var sets []order.Fieldset
	if req.DeliveryAddress != nil {
		sets = append(sets, *req.DeliveryAddress)
	}
	if req.ContactData != nil {
		sets = append(sets, *req.ContactData)
	}
	if req.DeliveryType != nil {
		sets = append(sets, order.DeliveryType(*req.DeliveryType))
	}
	if req.PaymentType != nil {
		sets = append(sets, order.PaymentType(*req.PaymentType))
	}
	return sets
}

func decodeAddress(d *jx.Decoder, a *order.Address) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "street":
			a.Street, err = d.Str()
		case "zip":
			a.Zip, err = d.Str()
		case "city":
			a.City, err = d.Str()
		case "country":
			a.Country, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

func decodeContact(d *jx.Decoder, c *order.Contact) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			c.Name, err = d.Str()
		case "email":
			c.Email, err = d.Str()
		case "phone":
			c.Phone, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

type changeStateRequest struct {
	ID    string
	State string
}

func (req *changeStateRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id", "orderId":
			req.ID, err = d.Str()
		case "state":
			req.State, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		field(e, "id", o.ID)
		field(e, "ownerId", o.OwnerID)
		e.Field("items", func(e *jx.Encoder) { encodeItems(e, o.Items) })
		moneyField(e, "total", o.Total())
		e.Field("deliveryAddress", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				field(e, "street", o.DeliveryAddress.Street)
				field(e, "zip", o.DeliveryAddress.Zip)
				field(e, "city", o.DeliveryAddress.City)
				field(e, "country", o.DeliveryAddress.Country)
			})
		})
		e.Field("contactData", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				field(e, "name", o.ContactData.Name)
				field(e, "email", o.ContactData.Email)
				field(e, "phone", o.ContactData.Phone)
			})
		})
		field(e, "deliveryType", string(o.DeliveryType))
		field(e, "paymentType", string(o.PaymentType))
		field(e, "state", string(o.State))
		e.Field("deleted", func(e *jx.Encoder) { e.Bool(o.Deleted) })
		timeField(e, "createdAt", o.CreatedAt)
		timeField(e, "updatedAt", o.UpdatedAt)
	})
}

func writeOrder(w http.ResponseWriter, status int, o *order.Order) {
	writeJSON(w, status, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func writeOrders(w http.ResponseWriter, orders []order.Order) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range orders {
				encodeOrder(e, &orders[i])
			}
		})
	})
}

// createOrder checks out the caller's basket, or the guest basket named in
// the body or in BasketIDHeader.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := readOptionalJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.BasketID == "" {
		req.BasketID = r.Header.Get(BasketIDHeader)
	}
	var id basket.ID
	if req.BasketID != "" {
		var err error
		if id, err = basket.ParseGuest(req.BasketID); err != nil {
			writeError(w, r, err)
			return
		}
	}
	o, err := h.orders.Create(r.Context(), auth.VerdictFrom(r.Context()), order.CreateRequest{BasketID: id})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOrder(w, http.StatusCreated, o)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, r, fault.Invalid("order id is required"))
		return
	}
	o, err := h.orders.Get(r.Context(), auth.VerdictFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var includeDeleted bool
	if raw := r.URL.Query().Get("includeDeleted"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, fault.Invalid("includeDeleted %q is not a boolean", raw))
			return
		}
		includeDeleted = v
	}
	orders, err := h.orders.List(r.Context(), auth.VerdictFrom(r.Context()), includeDeleted)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOrders(w, orders)
}

func (h *Handler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByUser(r.Context(), auth.VerdictFrom(r.Context()), r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOrders(w, orders)
}

func (h *Handler) readUpdate(w http.ResponseWriter, r *http.Request) (*updateOrderRequest, error) {
	var req updateOrderRequest
	if err := readJSON(w, r, &req); err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, fault.Invalid("order id is required")
	}
	return &req, nil
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	req, err := h.readUpdate(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.Update(r.Context(), auth.VerdictFrom(r.Context()), req.ID, req.fieldsets()...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}

// updateOrderField serves the single field group routes. The body must hold
// exactly the group the route names.
func (h *Handler) updateOrderField(f order.Field) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.readUpdate(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		sets := req.fieldsets()
		if len(sets) != 1 || sets[0].Field() != f {
			writeError(w, r, fault.Invalid("body must contain only %s", f))
			return
		}
		o, err := h.orders.ChangeFieldset(r.Context(), auth.VerdictFrom(r.Context()), req.ID, sets[0])
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeOrder(w, http.StatusOK, o)
	}
}

func (h *Handler) changeOrderState(w http.ResponseWriter, r *http.Request) {
	var req changeStateRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ID == "" {
		writeError(w, r, fault.Invalid("order id is required"))
		return
	}
	next, err := order.ParseState(req.State)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.ChangeState(r.Context(), auth.VerdictFrom(r.Context()), req.ID, next)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ID == "" {
		writeError(w, r, fault.Invalid("order id is required"))
		return
	}
	o, err := h.orders.Delete(r.Context(), auth.VerdictFrom(r.Context()), req.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}
