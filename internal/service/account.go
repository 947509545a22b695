package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bellybox-pos/api/internal/enum"
	"github.com/bellybox-pos/api/internal/store"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Tenancy limits, enforced at signup. Deliberate product limits, not
// technical constraints.
const (
	maxOwnerAccounts = 3
	maxStaffAccounts = 2
)

const pinLength = 4

// Errors returned by the account service.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")
	ErrEmailTaken         = errors.New("email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrOwnerLimit         = fmt.Errorf("owner account limit reached (max %d)", maxOwnerAccounts)
	ErrStaffLimit         = fmt.Errorf("staff account limit reached (max %d)", maxStaffAccounts)
	ErrPinFormat          = fmt.Errorf("PIN must be exactly %d digits", pinLength)

	// ErrInvalidPin is the single generic denial for every failed PIN
	// check; it never reveals which account, if any, was matched against.
	ErrInvalidPin = errors.New("invalid PIN")
)

// AccountService owns accounts and the PIN authorization gate protecting
// destructive operations, independent of the primary session credential.
type AccountService struct {
	store store.Store
}

// NewAccountService creates a new AccountService.
func NewAccountService(st store.Store) *AccountService {
	return &AccountService{store: st}
}

var _ PinVerifier = (*AccountService)(nil)

// SignupRequest creates an account. Owners must supply a PIN; staff carry
// none.
type SignupRequest struct {
	Name     string
	Email    string
	Password string
	Role     string
	Pin      string
}

// Signup creates an account, enforcing the per-role tenancy caps
// atomically so concurrent signups can't slip past a limit.
func (s *AccountService) Signup(ctx context.Context, req SignupRequest) (store.User, error) {
	if req.Role != enum.UserRoleOwner && req.Role != enum.UserRoleStaff {
		return store.User{}, ErrInvalidRole
	}

	pinHash := ""
	if req.Role == enum.UserRoleOwner {
		if !isValidPin(req.Pin) {
			return store.User{}, ErrPinFormat
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Pin), bcrypt.DefaultCost)
		if err != nil {
			return store.User{}, fmt.Errorf("hash pin: %w", err)
		}
		pinHash = string(hash)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	var created store.User
	err = s.store.RunInTx(ctx, func(tx store.Store) error {
		count, err := tx.CountUsersByRole(ctx, req.Role)
		if err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		if req.Role == enum.UserRoleOwner && count >= maxOwnerAccounts {
			return ErrOwnerLimit
		}
		if req.Role == enum.UserRoleStaff && count >= maxStaffAccounts {
			return ErrStaffLimit
		}

		created, err = tx.CreateUser(ctx, store.User{
			Name:           req.Name,
			Email:          req.Email,
			HashedPassword: string(hashed),
			Role:           req.Role,
			PinHash:        pinHash,
		})
		if errors.Is(err, store.ErrDuplicate) {
			return ErrEmailTaken
		}
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.User{}, err
	}
	return created, nil
}

// Login checks email + password. Denials are generic: a missing account
// and a wrong password are indistinguishable.
func (s *AccountService) Login(ctx context.Context, email, password string) (store.User, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.User{}, ErrInvalidCredentials
		}
		return store.User{}, fmt.Errorf("get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// GetUser returns an active account by id.
func (s *AccountService) GetUser(ctx context.Context, id uuid.UUID) (store.User, error) {
	u, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.User{}, ErrUserNotFound
		}
		return store.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// VerifyPIN authorizes a destructive operation. Owners are checked
// against their own stored hash; staff borrow authority through the
// shared-secret pattern: the submitted PIN is checked against every
// owner's hash in turn, a match against any one granting access. bcrypt
// comparison is constant-time per candidate. Every attempt, allowed or
// denied, lands in the append-only audit log.
func (s *AccountService) VerifyPIN(ctx context.Context, actorID uuid.UUID, actorRole, pin, remoteAddr string) error {
	if !isValidPin(pin) {
		if err := s.audit(ctx, actorID, actorRole, enum.AuditActionPinVerify, enum.AuditOutcomeDenied, "malformed PIN", remoteAddr); err != nil {
			return err
		}
		return ErrPinFormat
	}

	allowed := false
	if actorRole == enum.UserRoleOwner {
		u, err := s.store.GetUserByID(ctx, actorID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("get user: %w", err)
		}
		if err == nil && u.PinHash != "" {
			allowed = bcrypt.CompareHashAndPassword([]byte(u.PinHash), []byte(pin)) == nil
		}
	} else {
		owners, err := s.store.ListUsersByRole(ctx, enum.UserRoleOwner)
		if err != nil {
			return fmt.Errorf("list owners: %w", err)
		}
		for _, owner := range owners {
			if owner.PinHash == "" {
				continue
			}
			if bcrypt.CompareHashAndPassword([]byte(owner.PinHash), []byte(pin)) == nil {
				allowed = true
				break
			}
		}
	}

	outcome := enum.AuditOutcomeDenied
	if allowed {
		outcome = enum.AuditOutcomeAllowed
	}
	if err := s.audit(ctx, actorID, actorRole, enum.AuditActionPinVerify, outcome, "", remoteAddr); err != nil {
		return err
	}
	if !allowed {
		return ErrInvalidPin
	}
	return nil
}

// ChangePin replaces an owner's PIN after re-proving the current one.
func (s *AccountService) ChangePin(ctx context.Context, actorID uuid.UUID, currentPin, newPin, remoteAddr string) error {
	u, err := s.store.GetUserByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("get user: %w", err)
	}
	if u.Role != enum.UserRoleOwner {
		return ErrInvalidRole
	}

	allowed := isValidPin(currentPin) && u.PinHash != "" &&
		bcrypt.CompareHashAndPassword([]byte(u.PinHash), []byte(currentPin)) == nil
	outcome := enum.AuditOutcomeDenied
	if allowed {
		outcome = enum.AuditOutcomeAllowed
	}
	if err := s.audit(ctx, actorID, u.Role, enum.AuditActionPinChange, outcome, "", remoteAddr); err != nil {
		return err
	}
	if !allowed {
		return ErrInvalidPin
	}

	if !isValidPin(newPin) {
		return ErrPinFormat
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}
	if err := s.store.UpdateUserPinHash(ctx, actorID, string(hash)); err != nil {
		return fmt.Errorf("update pin: %w", err)
	}
	return nil
}

// AuditLog returns the newest audit entries.
func (s *AccountService) AuditLog(ctx context.Context, limit int) ([]store.AuditEntry, error) {
	return s.store.ListAuditEntries(ctx, limit)
}

func (s *AccountService) audit(ctx context.Context, actorID uuid.UUID, actorRole, action, outcome, detail, remoteAddr string) error {
	err := s.store.AppendAuditEntry(ctx, store.AuditEntry{
		ActorID:    actorID,
		ActorRole:  actorRole,
		Action:     action,
		Outcome:    outcome,
		Detail:     detail,
		RemoteAddr: remoteAddr,
	})
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func isValidPin(pin string) bool {
	if len(pin) != pinLength {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
