package handler

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/webshop/internal/domain/fault"
)

const maxBodyBytes = 1 << 20

// decoder is implemented by every request body type.
type decoder interface {
	Decode(d *jx.Decoder) error
}

// readJSON decodes the request body into v. An empty body is rejected.
func readJSON(w http.ResponseWriter, r *http.Request, v decoder) error {
	return decodeBody(w, r, v, false)
}

// readOptionalJSON is readJSON for routes whose body may be omitted.
func readOptionalJSON(w http.ResponseWriter, r *http.Request, v decoder) error {
	return decodeBody(w, r, v, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v decoder, optional bool) error {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fault.Invalid("request body exceeds %d bytes", maxBodyBytes)
		}
		return errors.Wrap(err, "read body")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		if optional {
			return nil
		}
		return fault.Invalid("request body is required")
	}
	if err := v.Decode(jx.DecodeBytes(raw)); err != nil {
		if _, ok := fault.KindOf(err); ok {
			return err
		}
		return fault.Invalid("malformed request body: %s", err.Error())
	}
	return nil
}

// writeJSON encodes a response body with fn and writes it with status.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func decodeOptStr(d *jx.Decoder) (*string, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func field(e *jx.Encoder, name, value string) {
	e.Field(name, func(e *jx.Encoder) { e.Str(value) })
}

func intField(e *jx.Encoder, name string, value int) {
	e.Field(name, func(e *jx.Encoder) { e.Int(value) })
}

// moneyField writes a decimal as a JSON number with two decimal places.
func moneyField(e *jx.Encoder, name string, value decimal.Decimal) {
	e.Field(name, func(e *jx.Encoder) { e.Raw([]byte(value.StringFixed(2))) })
}

func timeField(e *jx.Encoder, name string, t time.Time) {
	if t.IsZero() {
		return
	}
	field(e, name, t.UTC().Format(time.RFC3339))
}
