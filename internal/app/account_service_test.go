package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/store"
)

type accountStoreStub struct {
	AccountStore

	user    *domain.User
	userErr error

	createErr   error
	createdUser *domain.User

	updatedHash          string
	updatePasswordCalled bool

	statusCalled bool
	statusSet    domain.UserStatus
	statusErr    error

	roleCalled bool
	roleSet    domain.Role
	roleErr    error
}

func (s *accountStoreStub) CreateUser(ctx context.Context, u *domain.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	clone := *u
	s.createdUser = &clone
	return nil
}

func (s *accountStoreStub) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if s.userErr != nil {
		return nil, s.userErr
	}
	return s.user, nil
}

func (s *accountStoreStub) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if s.userErr != nil {
		return nil, s.userErr
	}
	return s.user, nil
}

func (s *accountStoreStub) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	s.updatePasswordCalled = true
	s.updatedHash = passwordHash
	return nil
}

func (s *accountStoreStub) SetUserStatus(ctx context.Context, id string, status domain.UserStatus) error {
	if s.statusErr != nil {
		return s.statusErr
	}
	s.statusCalled = true
	s.statusSet = status
	return nil
}

func (s *accountStoreStub) SetUserRole(ctx context.Context, id string, role domain.Role) error {
	if s.roleErr != nil {
		return s.roleErr
	}
	s.roleCalled = true
	s.roleSet = role
	return nil
}

const accountTestSecret = "account-test-secret"

func newAccountTestService(st AccountStore, n Notifier) *AccountService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAccountService(st, n, logger, accountTestSecret, time.Hour)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	return string(hash)
}

func TestRegisterAccount_NewUserStartsPendingAndAlertsAdmins(t *testing.T) {
	st := &accountStoreStub{}
	n := &notifierStub{}
	svc := newAccountTestService(st, n)

	user, err := svc.Register(context.Background(), domain.RegisterUserRequest{
		Email:     "  Anna.Kowalska@Example.COM ",
		Password:  "correct horse battery",
		FirstName: "Anna",
		LastName:  "Kowalska",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if user.Email != "anna.kowalska@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.Role != domain.RoleUser || user.Status != domain.UserPending {
		t.Fatalf("expected pending member account, got role=%s status=%s", user.Role, user.Status)
	}
	if user.PasswordHash == "correct horse battery" {
		t.Fatal("password stored in the clear")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct horse battery")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
	if st.createdUser == nil {
		t.Fatal("expected user to be persisted")
	}
	if len(n.adminMsgs) != 1 || n.adminMsgs[0].Tag != "admin-users" {
		t.Fatalf("expected one admin approval alert, got %+v", n.adminMsgs)
	}
	if n.activityCount("user_registered") != 1 {
		t.Fatal("expected a user_registered activity entry")
	}
}

func TestRegisterAccount_DuplicateEmailConflict(t *testing.T) {
	st := &accountStoreStub{createErr: store.ErrEmailTaken}
	n := &notifierStub{}
	svc := newAccountTestService(st, n)

	_, err := svc.Register(context.Background(), domain.RegisterUserRequest{
		Email:     "anna@example.com",
		Password:  "correct horse battery",
		FirstName: "Anna",
		LastName:  "Kowalska",
	})
	derr, ok := domain.AsError(err)
	if !ok || derr.Code != "email_taken" || derr.Status != 409 {
		t.Fatalf("expected email_taken conflict, got %v", err)
	}
	if len(n.adminMsgs) != 0 {
		t.Fatal("no admin alert expected for a refused signup")
	}
}

func TestLogin_IssuesTokenWithIdentityClaims(t *testing.T) {
	st := &accountStoreStub{user: &domain.User{
		ID:           "user-1",
		Email:        "anna@example.com",
		PasswordHash: mustHash(t, "correct horse battery"),
		Role:         domain.RoleAdmin,
		Status:       domain.UserActive,
	}}
	svc := newAccountTestService(st, &notifierStub{})

	res, err := svc.Login(context.Background(), domain.LoginRequest{
		Email:    "Anna@Example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.User.ID != "user-1" {
		t.Fatalf("expected the stored user back, got %+v", res.User)
	}

	parsed, err := jwt.Parse(res.Token, func(tok *jwt.Token) (any, error) {
		return []byte(accountTestSecret), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("issued token does not verify: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["sub"] != "user-1" || claims["role"] != "admin" || claims["status"] != "active" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestLogin_BadCredentialsAreIndistinguishable(t *testing.T) {
	cases := []struct {
		name string
		st   *accountStoreStub
	}{
		{"unknown_email", &accountStoreStub{userErr: store.ErrUserNotFound}},
		{"wrong_password", &accountStoreStub{user: &domain.User{
			ID:           "user-1",
			PasswordHash: mustHash(t, "the real password"),
			Status:       domain.UserActive,
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newAccountTestService(tc.st, &notifierStub{})
			_, err := svc.Login(context.Background(), domain.LoginRequest{
				Email:    "anna@example.com",
				Password: "a guess",
			})
			derr, ok := domain.AsError(err)
			if !ok || derr.Code != "invalid_credentials" || derr.Status != 401 {
				t.Fatalf("expected invalid_credentials, got %v", err)
			}
		})
	}
}

func TestLogin_BlockedAccountRefused(t *testing.T) {
	st := &accountStoreStub{user: &domain.User{
		ID:           "user-1",
		PasswordHash: mustHash(t, "correct horse battery"),
		Status:       domain.UserBlocked,
	}}
	svc := newAccountTestService(st, &notifierStub{})

	_, err := svc.Login(context.Background(), domain.LoginRequest{
		Email:    "anna@example.com",
		Password: "correct horse battery",
	})
	derr, ok := domain.AsError(err)
	if !ok || derr.Code != "account_blocked" || derr.Status != 403 {
		t.Fatalf("expected account_blocked, got %v", err)
	}
}

func TestChangePassword_RequiresCurrentPassword(t *testing.T) {
	st := &accountStoreStub{user: &domain.User{
		ID:           "user-1",
		PasswordHash: mustHash(t, "old password here"),
	}}
	svc := newAccountTestService(st, &notifierStub{})

	err := svc.ChangePassword(context.Background(), "user-1", domain.ChangePasswordRequest{
		CurrentPassword: "not the old one",
		NewPassword:     "brand new password",
	})
	derr, ok := domain.AsError(err)
	if !ok || derr.Code != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %v", err)
	}
	if st.updatePasswordCalled {
		t.Fatal("password must not change on a failed check")
	}

	if err := svc.ChangePassword(context.Background(), "user-1", domain.ChangePasswordRequest{
		CurrentPassword: "old password here",
		NewPassword:     "brand new password",
	}); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if !st.updatePasswordCalled {
		t.Fatal("expected the new hash to be stored")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(st.updatedHash), []byte("brand new password")); err != nil {
		t.Fatalf("stored hash does not match the new password: %v", err)
	}
}

func TestSetUserStatus_ActivationPushesWelcome(t *testing.T) {
	st := &accountStoreStub{}
	n := &notifierStub{}
	svc := newAccountTestService(st, n)

	if err := svc.SetUserStatus(context.Background(), "admin-1", "user-1", domain.UserActive); err != nil {
		t.Fatalf("SetUserStatus: %v", err)
	}
	if !st.statusCalled || st.statusSet != domain.UserActive {
		t.Fatalf("expected status stored as active, got %q", st.statusSet)
	}
	if len(n.userIDs) != 1 || n.userIDs[0] != "user-1" {
		t.Fatalf("expected an approval push to user-1, got %v", n.userIDs)
	}
	if n.userMsgs[0].Title != "Account approved" || n.userMsgs[0].Tag != "account" {
		t.Fatalf("unexpected approval push: %+v", n.userMsgs[0])
	}

	if err := svc.SetUserStatus(context.Background(), "admin-1", "user-2", domain.UserBlocked); err != nil {
		t.Fatalf("SetUserStatus: %v", err)
	}
	if len(n.userIDs) != 1 {
		t.Fatal("blocking must not push a notification")
	}
}

func TestSetUserStatus_GuardsAgainstSelfAndBadValues(t *testing.T) {
	st := &accountStoreStub{}
	svc := newAccountTestService(st, &notifierStub{})

	err := svc.SetUserStatus(context.Background(), "admin-1", "admin-1", domain.UserBlocked)
	if derr, ok := domain.AsError(err); !ok || derr.Code != "self_status_change" {
		t.Fatalf("expected self_status_change, got %v", err)
	}

	err = svc.SetUserStatus(context.Background(), "admin-1", "user-1", domain.UserStatus("frozen"))
	if derr, ok := domain.AsError(err); !ok || derr.Code != "invalid_status" {
		t.Fatalf("expected invalid_status, got %v", err)
	}
	if st.statusCalled {
		t.Fatal("store must not be touched on a refused change")
	}
}

func TestSetUserRole_PromotesButNeverSelf(t *testing.T) {
	st := &accountStoreStub{}
	svc := newAccountTestService(st, &notifierStub{})

	if err := svc.SetUserRole(context.Background(), "admin-1", "user-1", domain.RoleAdmin); err != nil {
		t.Fatalf("SetUserRole: %v", err)
	}
	if !st.roleCalled || st.roleSet != domain.RoleAdmin {
		t.Fatalf("expected role stored as admin, got %q", st.roleSet)
	}

	err := svc.SetUserRole(context.Background(), "admin-1", "admin-1", domain.RoleUser)
	if derr, ok := domain.AsError(err); !ok || derr.Code != "self_role_change" {
		t.Fatalf("expected self_role_change, got %v", err)
	}

	err = svc.SetUserRole(context.Background(), "admin-1", "user-1", domain.Role("owner"))
	if derr, ok := domain.AsError(err); !ok || derr.Code != "invalid_role" {
		t.Fatalf("expected invalid_role, got %v", err)
	}
}
