package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bellybox-pos/api/internal/enum"
	"github.com/bellybox-pos/api/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Errors returned by the expenditure service.
var (
	ErrExpenditureNotFound  = errors.New("expenditure not found")
	ErrExpenditureLocked    = errors.New("expenditure is locked")
	ErrDescriptionRequired  = errors.New("description is required")
	ErrInvalidExpenseAmount = errors.New("amount must be > 0")
)

// ExpenseService records outgoing money (supplier purchases, rent,
// utilities) with the same lock-then-PIN lifecycle orders have.
type ExpenseService struct {
	store store.Store
	pins  PinVerifier
	hub   Broadcaster
}

// NewExpenseService creates a new ExpenseService.
func NewExpenseService(st store.Store, pins PinVerifier, hub Broadcaster) *ExpenseService {
	return &ExpenseService{store: st, pins: pins, hub: hub}
}

// CreateExpenditureRequest is the input for recording an expenditure.
type CreateExpenditureRequest struct {
	Description   string
	Amount        string
	Category      string
	Supplier      string
	PaymentStatus string
	CreatedBy     uuid.UUID
}

// UpdateExpenditureRequest replaces an expenditure's mutable fields.
type UpdateExpenditureRequest struct {
	Description   string
	Amount        string
	Category      string
	Supplier      string
	PaymentStatus string
}

func parseExpenseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, ErrInvalidExpenseAmount
	}
	return amount, nil
}

// Create records a new expenditure.
func (s *ExpenseService) Create(ctx context.Context, req CreateExpenditureRequest) (store.Expenditure, error) {
	if req.Description == "" {
		return store.Expenditure{}, ErrDescriptionRequired
	}
	amount, err := parseExpenseAmount(req.Amount)
	if err != nil {
		return store.Expenditure{}, err
	}
	status := req.PaymentStatus
	if status == "" {
		status = enum.PaymentStatusUnpaid
	}
	if status != enum.PaymentStatusUnpaid && status != enum.PaymentStatusPaid {
		return store.Expenditure{}, ErrInvalidPaymentStatus
	}

	created, err := s.store.CreateExpenditure(ctx, store.Expenditure{
		Description:   req.Description,
		Amount:        amount,
		Category:      req.Category,
		Supplier:      req.Supplier,
		PaymentStatus: status,
		CreatedBy:     req.CreatedBy,
	})
	if err != nil {
		return store.Expenditure{}, fmt.Errorf("create expenditure: %w", err)
	}

	s.hub.Broadcast(enum.EventExpenditureUpdated, map[string]string{"id": created.ID.String()})
	s.hub.Broadcast(enum.EventSalesUpdated, nil)
	return created, nil
}

// Get returns one expenditure.
func (s *ExpenseService) Get(ctx context.Context, id uuid.UUID) (store.Expenditure, error) {
	e, err := s.store.GetExpenditure(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Expenditure{}, ErrExpenditureNotFound
		}
		return store.Expenditure{}, fmt.Errorf("get expenditure: %w", err)
	}
	return e, nil
}

// List returns all expenditures, newest first.
func (s *ExpenseService) List(ctx context.Context) ([]store.Expenditure, error) {
	return s.store.ListExpenditures(ctx)
}

// Update replaces the expenditure's fields. Rejected while locked.
func (s *ExpenseService) Update(ctx context.Context, id uuid.UUID, req UpdateExpenditureRequest) (store.Expenditure, error) {
	if req.Description == "" {
		return store.Expenditure{}, ErrDescriptionRequired
	}
	amount, err := parseExpenseAmount(req.Amount)
	if err != nil {
		return store.Expenditure{}, err
	}
	if req.PaymentStatus != enum.PaymentStatusUnpaid && req.PaymentStatus != enum.PaymentStatusPaid {
		return store.Expenditure{}, ErrInvalidPaymentStatus
	}

	e, err := s.Get(ctx, id)
	if err != nil {
		return store.Expenditure{}, err
	}
	if e.IsLocked {
		return store.Expenditure{}, ErrExpenditureLocked
	}

	e.Description = req.Description
	e.Amount = amount
	e.Category = req.Category
	e.Supplier = req.Supplier
	e.PaymentStatus = req.PaymentStatus

	updated, err := s.store.UpdateExpenditure(ctx, e)
	if err != nil {
		return store.Expenditure{}, fmt.Errorf("update expenditure: %w", err)
	}

	s.hub.Broadcast(enum.EventExpenditureUpdated, map[string]string{"id": updated.ID.String()})
	s.hub.Broadcast(enum.EventSalesUpdated, nil)
	return updated, nil
}

// Lock marks the expenditure read-only. No authorization required;
// locking an already-locked record is a no-op that succeeds.
func (s *ExpenseService) Lock(ctx context.Context, id uuid.UUID, lockedBy string) (store.Expenditure, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return store.Expenditure{}, err
	}
	if e.IsLocked {
		return e, nil
	}

	now := time.Now()
	e.IsLocked = true
	e.LockedBy = lockedBy
	e.LockedAt = &now
	updated, err := s.store.UpdateExpenditure(ctx, e)
	if err != nil {
		return store.Expenditure{}, fmt.Errorf("lock expenditure: %w", err)
	}
	s.hub.Broadcast(enum.EventExpenditureUpdated, map[string]string{"id": updated.ID.String()})
	return updated, nil
}

// Unlock returns a locked expenditure to the active state after PIN
// authorization. Idempotent once the PIN check passes.
func (s *ExpenseService) Unlock(ctx context.Context, id uuid.UUID, actorID uuid.UUID, actorRole, pin, remoteAddr string) (store.Expenditure, error) {
	if err := s.pins.VerifyPIN(ctx, actorID, actorRole, pin, remoteAddr); err != nil {
		return store.Expenditure{}, err
	}

	e, err := s.Get(ctx, id)
	if err != nil {
		return store.Expenditure{}, err
	}
	if !e.IsLocked {
		return e, nil
	}

	e.IsLocked = false
	e.LockedBy = ""
	e.LockedAt = nil
	updated, err := s.store.UpdateExpenditure(ctx, e)
	if err != nil {
		return store.Expenditure{}, fmt.Errorf("unlock expenditure: %w", err)
	}
	s.hub.Broadcast(enum.EventExpenditureUpdated, map[string]string{"id": updated.ID.String()})
	return updated, nil
}

// Delete removes an expenditure after PIN authorization.
func (s *ExpenseService) Delete(ctx context.Context, id uuid.UUID, actorID uuid.UUID, actorRole, pin, remoteAddr string) error {
	if err := s.pins.VerifyPIN(ctx, actorID, actorRole, pin, remoteAddr); err != nil {
		return err
	}

	if err := s.store.DeleteExpenditure(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrExpenditureNotFound
		}
		return fmt.Errorf("delete expenditure: %w", err)
	}

	s.hub.Broadcast(enum.EventExpenditureUpdated, map[string]string{"id": id.String()})
	s.hub.Broadcast(enum.EventSalesUpdated, nil)
	return nil
}

// SetPayment toggles payment status. Allowed while locked, mirroring
// orders.
func (s *ExpenseService) SetPayment(ctx context.Context, id uuid.UUID, status string) (store.Expenditure, error) {
	if status != enum.PaymentStatusUnpaid && status != enum.PaymentStatusPaid {
		return store.Expenditure{}, ErrInvalidPaymentStatus
	}

	e, err := s.Get(ctx, id)
	if err != nil {
		return store.Expenditure{}, err
	}
	e.PaymentStatus = status
	updated, err := s.store.UpdateExpenditure(ctx, e)
	if err != nil {
		return store.Expenditure{}, fmt.Errorf("set payment: %w", err)
	}
	s.hub.Broadcast(enum.EventExpenditureUpdated, map[string]string{"id": updated.ID.String()})
	s.hub.Broadcast(enum.EventSalesUpdated, nil)
	return updated, nil
}
