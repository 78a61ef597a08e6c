package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sellsi/backend-sellsi/internal/store"
)

type fakeStore struct {
	mu           sync.Mutex
	usersByEmail map[string]store.User
	usersByID    map[string]store.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		usersByEmail: make(map[string]store.User),
		usersByID:    make(map[string]store.User),
	}
}

func (f *fakeStore) CreateUser(_ context.Context, arg store.CreateUserParams) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.usersByEmail[arg.Email]; exists {
		return store.User{}, &pgconn.PgError{Code: "23505"}
	}
	id := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	user := store.User{
		ID:           id,
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		Name:         arg.Name,
		Role:         arg.Role,
		CreatedAt:    pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}
	f.usersByEmail[arg.Email] = user
	f.usersByID[store.UUIDString(id)] = user
	return user, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.usersByEmail[email]
	if !ok {
		return store.User{}, errors.New("no rows")
	}
	return user, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id pgtype.UUID) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.usersByID[store.UUIDString(id)]
	if !ok {
		return store.User{}, errors.New("no rows")
	}
	return user, nil
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	fs := newFakeStore()
	svc, err := NewService(Config{Store: fs, Secret: "test-secret", AccessTokenTTL: time.Minute})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, fs
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Ana", "ana@example.com", "supersecret", "supplier")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != RoleSupplier {
		t.Fatalf("expected supplier role, got %q", user.Role)
	}

	result, err := svc.Login(ctx, "ANA@example.com", "supersecret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.AccessToken == "" {
		t.Fatal("expected access token")
	}

	identity, err := svc.ParseAccessToken(result.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if identity.UserID != user.ID {
		t.Fatalf("expected subject %q, got %q", user.ID, identity.UserID)
	}
	if identity.Role != RoleSupplier {
		t.Fatalf("expected role claim supplier, got %q", identity.Role)
	}
}

func TestRegisterDefaultsToBuyer(t *testing.T) {
	svc, _ := newTestService(t)
	user, err := svc.Register(context.Background(), "Ben", "ben@example.com", "supersecret", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != RoleBuyer {
		t.Fatalf("expected buyer role, got %q", user.Role)
	}
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Register(context.Background(), "Eve", "eve@example.com", "supersecret", "admin"); err == nil {
		t.Fatal("expected error for admin role")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "Ana", "dup@example.com", "supersecret", ""); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, "Ana 2", "dup@example.com", "supersecret", ""); err == nil {
		t.Fatal("expected duplicate email error")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "Ana", "ana@example.com", "supersecret", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Login(ctx, "ana@example.com", "wrongpassword"); err == nil {
		t.Fatal("expected invalid credentials")
	}
}

func TestParseExpiredToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "Ana", "ana@example.com", "supersecret", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	result, err := svc.Login(ctx, "ana@example.com", "supersecret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	svc.WithNow(func() time.Time { return time.Now().Add(2 * time.Minute) })
	if _, err := svc.ParseAccessToken(result.AccessToken); err == nil {
		t.Fatal("expected expired token error")
	}
}
