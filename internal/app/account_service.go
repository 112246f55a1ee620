/**
 * @description
 * Account business logic: signup, credential exchange, profile and the
 * admin user-management operations. New accounts start in the 'pending'
 * status and an administrator activates them; tokens are HS256 JWTs
 * carrying the subject, role and status claims the middleware authorizes
 * on without a database read.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/store"
)

// AccountStore defines the database operations the account service needs.
type AccountStore interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	UpdateUserProfile(ctx context.Context, id, firstName, lastName string, cityID *string) error
	ListUsers(ctx context.Context) ([]domain.User, error)
	SetUserStatus(ctx context.Context, id string, status domain.UserStatus) error
	SetUserRole(ctx context.Context, id string, role domain.Role) error
}

// AuthResult is what a successful login returns.
type AuthResult struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// AccountService implements account and user-management operations.
type AccountService struct {
	store    AccountStore
	notifier Notifier
	logger   *slog.Logger

	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewAccountService creates the account service.
func NewAccountService(store AccountStore, notifier Notifier, logger *slog.Logger, jwtSecret string, tokenTTL time.Duration) *AccountService {
	return &AccountService{
		store:     store,
		notifier:  notifier,
		logger:    logger,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// Register creates a pending account and tells the admins about it.
func (s *AccountService) Register(ctx context.Context, req domain.RegisterUserRequest) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         domain.RoleUser,
		Status:       domain.UserPending,
		CityID:       req.CityID,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return nil, domain.Conflict("email_taken", "an account with this email already exists")
		}
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID)
	s.notifier.SendToAdmins(domain.PushMessage{
		Title: "New member awaiting approval",
		Body:  fmt.Sprintf("%s %s just signed up", user.FirstName, user.LastName),
		URL:   "/admin/users",
		Tag:   "admin-users",
	})
	s.notifier.Activity("user_registered", map[string]string{"user_id": user.ID})

	return user, nil
}

// Login verifies credentials and issues a token. Blocked accounts are
// refused; pending accounts may log in but the middleware limits what they
// can do.
func (s *AccountService) Login(ctx context.Context, req domain.LoginRequest) (*AuthResult, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domain.Unauthorized("invalid_credentials", "invalid email or password")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, domain.Unauthorized("invalid_credentials", "invalid email or password")
	}
	if user.Status == domain.UserBlocked {
		return nil, domain.Forbidden("account_blocked", "this account has been blocked")
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// GetProfile loads the caller's account.
func (s *AccountService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domain.NotFound("user_not_found", "user not found")
		}
		return nil, err
	}
	return user, nil
}

// UpdateProfile edits the caller's name and city.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error) {
	if err := s.store.UpdateUserProfile(ctx, userID, req.FirstName, req.LastName, req.CityID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domain.NotFound("user_not_found", "user not found")
		}
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}

// ChangePassword verifies the current password before storing a new hash.
func (s *AccountService) ChangePassword(ctx context.Context, userID string, req domain.ChangePasswordRequest) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return domain.NotFound("user_not_found", "user not found")
		}
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return domain.Unauthorized("invalid_credentials", "current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.store.UpdateUserPassword(ctx, userID, string(hash))
}

// ListUsers returns all accounts (admin view).
func (s *AccountService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.store.ListUsers(ctx)
}

// SetUserStatus moves an account between pending, active and blocked.
// Activation push-notifies the member.
func (s *AccountService) SetUserStatus(ctx context.Context, adminID, userID string, status domain.UserStatus) error {
	switch status {
	case domain.UserPending, domain.UserActive, domain.UserBlocked:
	default:
		return domain.Invalid("invalid_status", "unknown user status")
	}
	if domain.SameID(adminID, userID) {
		return domain.Invalid("self_status_change", "administrators cannot change their own status")
	}

	if err := s.store.SetUserStatus(ctx, userID, status); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return domain.NotFound("user_not_found", "user not found")
		}
		return err
	}

	s.logger.Info("user status changed", "user_id", userID, "status", status, "by", adminID)
	if status == domain.UserActive {
		s.notifier.SendToUser(userID, domain.PushMessage{
			Title: "Account approved",
			Body:  "Your account is active. Welcome aboard!",
			URL:   "/events",
			Tag:   "account",
		})
	}
	return nil
}

// SetUserRole grants or revokes the admin role.
func (s *AccountService) SetUserRole(ctx context.Context, adminID, userID string, role domain.Role) error {
	switch role {
	case domain.RoleUser, domain.RoleAdmin:
	default:
		return domain.Invalid("invalid_role", "unknown role")
	}
	if domain.SameID(adminID, userID) {
		return domain.Invalid("self_role_change", "administrators cannot change their own role")
	}

	if err := s.store.SetUserRole(ctx, userID, role); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return domain.NotFound("user_not_found", "user not found")
		}
		return err
	}
	s.logger.Info("user role changed", "user_id", userID, "role", role, "by", adminID)
	return nil
}

// issueToken signs the HS256 claims the middleware authorizes on.
func (s *AccountService) issueToken(u *domain.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":    u.ID,
		"role":   string(u.Role),
		"status": string(u.Status),
		"iat":    now.Unix(),
		"exp":    now.Add(s.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}
