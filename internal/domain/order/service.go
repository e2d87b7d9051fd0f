package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/webshop/internal/domain/auth"
	"github.com/xenking/webshop/internal/domain/basket"
	"github.com/xenking/webshop/internal/domain/fault"
)

// Sentinel errors for order operations.
var (
	ErrUnauthorized = fault.New(fault.Unauthorized, "authentication required")
	ErrForbidden    = fault.New(fault.Forbidden, "not allowed to access this order")
	ErrNotElevated  = fault.New(fault.Forbidden, "operator privilege required")
	ErrEmptyBasket  = fault.New(fault.EmptyBasket, "basket is empty")
	ErrLocked       = fault.New(fault.OrderLocked, "order can no longer be changed")
)

// CreateRequest holds the input for placing an order.
type CreateRequest struct {
	// OwnerID defaults to the caller.
	OwnerID string
	// BasketID defaults to the owner's user basket.
	BasketID basket.ID
}

// Service implements the order lifecycle: checkout, field changes, state
// transitions and soft deletion.
type Service struct {
	orders Repository
	tracer trace.Tracer
	now    func() time.Time

	created     metric.Int64Counter
	transitions metric.Int64Counter
}

// NewService creates an order Service.
func NewService(orders Repository, meter metric.Meter, tracer trace.Tracer) (*Service, error) {
	created, err := meter.Int64Counter("webshop.orders.created",
		metric.WithDescription("Orders placed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders created counter")
	}
	transitions, err := meter.Int64Counter("webshop.orders.transitions",
		metric.WithDescription("Order state transitions"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "order transitions counter")
	}
	return &Service{
		orders:      orders,
		tracer:      tracer,
		now:         time.Now,
		created:     created,
		transitions: transitions,
	}, nil
}

// Create converts a basket into an order owned by the caller. The basket
// snapshot, the order insert and the basket clear happen atomically.
func (s *Service) Create(ctx context.Context, caller auth.Verdict, req CreateRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Create")
	defer span.End()

	if !caller.IsAuthenticated() {
		return nil, ErrUnauthorized
	}
	owner := req.OwnerID
	if owner == "" {
		owner = caller.UserID
	}
	if owner != caller.UserID {
		return nil, ErrForbidden
	}
	basketID := req.BasketID
	if basketID == "" {
		basketID = basket.ForUser(owner)
	}
	if !basketID.IsGuest() && basketID != basket.ForUser(owner) {
		return nil, ErrForbidden
	}

	now := s.now().UTC()
	o, err := s.orders.Checkout(ctx, basketID, func(b *basket.Basket) (*Order, error) {
		if b.Empty() {
			return nil, ErrEmptyBasket
		}
		return &Order{
			ID:           uuid.New().String(),
			OwnerID:      owner,
			Items:        append([]basket.Item(nil), b.Items...),
			DeliveryType: DeliveryStandard,
			PaymentType:  PaymentInvoice,
			State:        StateCreated,
			CreatedAt:    now,
			UpdatedAt:    now,
		}, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "checkout")
	}

	span.SetAttributes(attribute.String("order.id", o.ID), attribute.Int("order.items", len(o.Items)))
	s.created.Add(ctx, 1)
	zctx.From(ctx).Info("Order created",
		zap.String("order_id", o.ID),
		zap.String("owner_id", owner),
		zap.Int("items", len(o.Items)),
	)
	return o, nil
}

// Get returns an order visible to the caller: its owner or an operator.
// Soft-deleted orders stay readable.
func (s *Service) Get(ctx context.Context, caller auth.Verdict, id string) (*Order, error) {
	if !caller.IsAuthenticated() {
		return nil, ErrUnauthorized
	}
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %s", id)
	}
	if err := checkOwner(caller, o); err != nil {
		return nil, err
	}
	return o, nil
}

// List returns all orders. Requires elevated privilege.
func (s *Service) List(ctx context.Context, caller auth.Verdict, includeDeleted bool) ([]Order, error) {
	if err := requireElevated(caller); err != nil {
		return nil, err
	}
	orders, err := s.orders.List(ctx, Filter{IncludeDeleted: includeDeleted})
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// ListByUser returns the active orders of one user, visible to that user and
// to operators.
func (s *Service) ListByUser(ctx context.Context, caller auth.Verdict, userID string) ([]Order, error) {
	if !caller.IsAuthenticated() {
		return nil, ErrUnauthorized
	}
	if userID == "" {
		userID = caller.UserID
	}
	if userID != caller.UserID && !caller.HasElevatedPrivilege() {
		return nil, ErrForbidden
	}
	orders, err := s.orders.List(ctx, Filter{OwnerID: userID})
	if err != nil {
		return nil, errors.Wrapf(err, "list orders of %s", userID)
	}
	return orders, nil
}

// ChangeFieldset replaces one group of order fields.
func (s *Service) ChangeFieldset(ctx context.Context, caller auth.Verdict, id string, fs Fieldset) (*Order, error) {
	return s.Update(ctx, caller, id, fs)
}

// Update replaces several groups of order fields at once, all or nothing.
// Only the owner or an operator may change an order, and only while it is
// CREATED or CONFIRMED.
func (s *Service) Update(ctx context.Context, caller auth.Verdict, id string, sets ...Fieldset) (*Order, error) {
	if !caller.IsAuthenticated() {
		return nil, ErrUnauthorized
	}
	if err := validateFieldsets(sets); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	o, err := s.orders.Update(ctx, id, func(o *Order) error {
		if err := checkOwner(caller, o); err != nil {
			return err
		}
		if !o.State.Editable() {
			return ErrLocked
		}
		for _, fs := range sets {
			fs.apply(o)
		}
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "update order %s", id)
	}
	return o, nil
}

// ChangeState moves an order along the state machine. Requires elevated
// privilege; the transition is checked against the state stored at the time
// the per-order lock is held, so concurrent changes never lose an update.
func (s *Service) ChangeState(ctx context.Context, caller auth.Verdict, id string, next State) (*Order, error) {
	if err := requireElevated(caller); err != nil {
		return nil, err
	}

	var from State
	now := s.now().UTC()
	o, err := s.orders.Update(ctx, id, func(o *Order) error {
		if !o.State.CanTransitionTo(next) {
			return &InvalidTransitionError{From: o.State, To: next}
		}
		from = o.State
		o.State = next
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "change state of order %s", id)
	}

	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(next)),
	))
	zctx.From(ctx).Info("Order state changed",
		zap.String("order_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
		zap.String("by", caller.UserID),
	)
	return o, nil
}

// Delete soft-deletes an order: it is cancelled and flagged deleted but kept
// in storage. Deleting a deleted order is a no-op; a delivered order cannot
// be deleted.
func (s *Service) Delete(ctx context.Context, caller auth.Verdict, id string) (*Order, error) {
	if !caller.IsAuthenticated() {
		return nil, ErrUnauthorized
	}
	now := s.now().UTC()
	o, err := s.orders.Update(ctx, id, func(o *Order) error {
		if err := checkOwner(caller, o); err != nil {
			return err
		}
		if o.Deleted {
			return nil
		}
		if o.State != StateCancelled {
			if !o.State.CanTransitionTo(StateCancelled) {
				return &InvalidTransitionError{From: o.State, To: StateCancelled}
			}
			o.State = StateCancelled
		}
		o.Deleted = true
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "delete order %s", id)
	}
	zctx.From(ctx).Info("Order deleted", zap.String("order_id", id), zap.String("by", caller.UserID))
	return o, nil
}

func checkOwner(caller auth.Verdict, o *Order) error {
	if o.OwnerID != caller.UserID && !caller.HasElevatedPrivilege() {
		return ErrForbidden
	}
	return nil
}

func requireElevated(caller auth.Verdict) error {
	if !caller.IsAuthenticated() {
		return ErrUnauthorized
	}
	if !caller.HasElevatedPrivilege() {
		return ErrNotElevated
	}
	return nil
}
