package order

import (
	"strings"
	"unicode/utf8"

	"github.com/xenking/webshop/internal/domain/fault"
	"github.com/xenking/webshop/internal/domain/user"
)

const maxFieldLen = 200

// Field names a group of order attributes that change together.
type Field string

const (
	FieldDeliveryAddress Field = "deliveryAddress"
	FieldContactData     Field = "contactData"
	FieldDeliveryType    Field = "deliveryType"
	FieldPaymentType     Field = "paymentType"
)

// Fieldset is a new value for one Field. Implemented by Address, Contact,
// DeliveryType and PaymentType.
type Fieldset interface {
	Field() Field
	validate() error
	apply(o *Order)
}

// Address is the delivery address of an order.
type Address struct {
	Street  string `json:"street"`
	Zip     string `json:"zip"`
	City    string `json:"city"`
	Country string `json:"country"`
}

func (Address) Field() Field { return FieldDeliveryAddress }

func (a Address) validate() error {
	for _, f := range []struct{ name, value string }{
		{"street", a.Street},
		{"zip", a.Zip},
		{"city", a.City},
		{"country", a.Country},
	} {
		if err := requireText(FieldDeliveryAddress, f.name, f.value); err != nil {
			return err
		}
	}
	return nil
}

func (a Address) apply(o *Order) { o.DeliveryAddress = a }

// Contact is the contact data of an order.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (Contact) Field() Field { return FieldContactData }

func (c Contact) validate() error {
	if err := requireText(FieldContactData, "name", c.Name); err != nil {
		return err
	}
	if _, err := user.NormalizeEmail(c.Email); err != nil {
		return fault.Invalid("%s: email %q is malformed", FieldContactData, c.Email)
	}
	if utf8.RuneCountInString(c.Phone) > maxFieldLen {
		return fault.Invalid("%s: phone is too long", FieldContactData)
	}
	return nil
}

func (c Contact) apply(o *Order) {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	o.ContactData = c
}

// DeliveryType selects how an order is delivered.
type DeliveryType string

const (
	DeliveryStandard DeliveryType = "standard"
	DeliveryExpress  DeliveryType = "express"
	DeliveryPickup   DeliveryType = "pickup"
)

func (DeliveryType) Field() Field { return FieldDeliveryType }

func (d DeliveryType) validate() error {
	switch d {
	case DeliveryStandard, DeliveryExpress, DeliveryPickup:
		return nil
	}
	return fault.Invalid("unknown delivery type %q", string(d))
}

func (d DeliveryType) apply(o *Order) { o.DeliveryType = d }

// PaymentType selects how an order is paid.
type PaymentType string

const (
	PaymentInvoice    PaymentType = "invoice"
	PaymentPrepayment PaymentType = "prepayment"
	PaymentCreditCard PaymentType = "credit_card"
	PaymentPayPal     PaymentType = "paypal"
)

func (PaymentType) Field() Field { return FieldPaymentType }

func (p PaymentType) validate() error {
	switch p {
	case PaymentInvoice, PaymentPrepayment, PaymentCreditCard, PaymentPayPal:
		return nil
	}
	return fault.Invalid("unknown payment type %q", string(p))
}

func (p PaymentType) apply(o *Order) { o.PaymentType = p }

func requireText(field Field, name, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fault.Invalid("%s: %s is required", field, name)
	}
	if utf8.RuneCountInString(value) > maxFieldLen {
		return fault.Invalid("%s: %s must be at most %d characters", field, name, maxFieldLen)
	}
	return nil
}

func validateFieldsets(sets []Fieldset) error {
	if len(sets) == 0 {
		return fault.Invalid("no order fields to update")
	}
	seen := make(map[Field]bool, len(sets))
	for _, fs := range sets {
		if fs == nil {
			return fault.Invalid("empty order field")
		}
		if seen[fs.Field()] {
			return fault.Invalid("%s given more than once", fs.Field())
		}
		seen[fs.Field()] = true
		if err := fs.validate(); err != nil {
			return err
		}
	}
	return nil
}
