package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/webshop/internal/domain/fault"
)

var statusByKind = map[fault.Kind]int{
	fault.Unauthorized:           http.StatusUnauthorized,
	fault.Forbidden:              http.StatusForbidden,
	fault.NotFound:               http.StatusNotFound,
	fault.InvalidQuantity:        http.StatusBadRequest,
	fault.Validation:             http.StatusBadRequest,
	fault.EmptyBasket:            http.StatusConflict,
	fault.OrderLocked:            http.StatusConflict,
	fault.InvalidStateTransition: http.StatusConflict,
	fault.Conflict:               http.StatusConflict,
}

var (
	errUnauthenticated = fault.New(fault.Unauthorized, "authentication required")
	errNotElevated     = fault.New(fault.Forbidden, "operator privilege required")
	errRouteNotFound   = fault.New(fault.NotFound, "route not found")
)

// writeError maps err to a status and the error body. Classified errors
// expose their own message; anything else is logged and reported as a
// generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var k fault.Kinded
	if !errors.As(err, &k) {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeErrorBody(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	status, ok := statusByKind[k.FaultKind()]
	if !ok {
		status = http.StatusInternalServerError
	}
	zctx.From(r.Context()).Debug("Request rejected",
		zap.String("kind", string(k.FaultKind())),
		zap.Error(err),
	)
	writeErrorBody(w, status, string(k.FaultKind()), k.Error())
}

func writeErrorBody(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			intField(e, "code", status)
			field(e, "kind", kind)
			field(e, "message", msg)
		})
	})
}
