package impl

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"backoffice/config"
	"backoffice/internal/domain/entity"
	"backoffice/internal/domain/repository"
	"backoffice/internal/domain/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig() *config.Config {
	return &config.Config{
		Auth: &config.AuthConfig{
			BcryptCost:        4,
			PasswordMinLength: 8,
			AccessTokenTTL:    15 * time.Minute,
			RefreshTokenTTL:   7 * 24 * time.Hour,
			ResetTokenTTL:     30 * time.Minute,
		},
	}
}

// --- pass-through transaction manager ---

// passthroughTxManager runs the callback immediately against a fixed factory.
// Rollback semantics are not simulated; tests assert on the returned error.
type passthroughTxManager struct {
	factory repository.RepositoryFactory
}

func (m *passthroughTxManager) Execute(_ context.Context, fn func(repository.RepositoryFactory) error) error {
	return fn(m.factory)
}

// stubFactory hands out fixed repository instances.
type stubFactory struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	resetTokenRepo   repository.PasswordResetTokenRepository
}

func (f *stubFactory) NewUserRepository() repository.UserRepository {
	return f.userRepo
}

func (f *stubFactory) NewRefreshTokenRepository() repository.RefreshTokenRepository {
	return f.refreshTokenRepo
}

func (f *stubFactory) NewPasswordResetTokenRepository() repository.PasswordResetTokenRepository {
	return f.resetTokenRepo
}

// --- mock repositories ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*entity.User), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*entity.User), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockUserRepository) Create(ctx context.Context, user *entity.User) error {
	args := m.Called(ctx, user)
	if args.Error(0) == nil && user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	return args.Error(0)
}

func (m *mockUserRepository) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, userID, passwordHash)

	return args.Error(0)
}

func (m *mockUserRepository) UpdateLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, userID, at)

	return args.Error(0)
}

type mockRefreshTokenRepository struct {
	mock.Mock
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *entity.RefreshToken) error {
	args := m.Called(ctx, token)

	return args.Error(0)
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*entity.RefreshToken, error) {
	args := m.Called(ctx, token)
	if t := args.Get(0); t != nil {
		return t.(*entity.RefreshToken), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockRefreshTokenRepository) Delete(ctx context.Context, token string) error {
	args := m.Called(ctx, token)

	return args.Error(0)
}

func (m *mockRefreshTokenRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)

	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)

	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRefreshTokenRepository) Rotate(ctx context.Context, oldToken string, userID uuid.UUID, newToken string, newExpiresAt time.Time) (*entity.RefreshToken, error) {
	args := m.Called(ctx, oldToken, userID, newToken, newExpiresAt)
	if t := args.Get(0); t != nil {
		return t.(*entity.RefreshToken), args.Error(1)
	}

	return nil, args.Error(1)
}

type mockResetTokenRepository struct {
	mock.Mock
}

func (m *mockResetTokenRepository) Create(ctx context.Context, token *entity.PasswordResetToken) error {
	args := m.Called(ctx, token)

	return args.Error(0)
}

func (m *mockResetTokenRepository) FindByHash(ctx context.Context, tokenHash string) (*entity.PasswordResetToken, error) {
	args := m.Called(ctx, tokenHash)
	if t := args.Get(0); t != nil {
		return t.(*entity.PasswordResetToken), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockResetTokenRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)

	return args.Get(0).(int64), args.Error(1)
}

func (m *mockResetTokenRepository) Claim(ctx context.Context, tokenHash string, now time.Time) (*entity.PasswordResetToken, error) {
	args := m.Called(ctx, tokenHash, now)
	if t := args.Get(0); t != nil {
		return t.(*entity.PasswordResetToken), args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *mockResetTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)

	return args.Get(0).(int64), args.Error(1)
}

// --- deterministic stand-ins for the stateless services ---

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (fakeHasher) Check(password, hash string) bool {
	return hash == "hashed:"+password
}

var errFakeTokenInvalid = errors.New("invalid token")

// fakeTokenService issues random, self-describing tokens so tests can assert
// that a rotation produced a pair distinct from the previous one.
type fakeTokenService struct {
	refreshTTL time.Duration
}

func newFakeTokenService() *fakeTokenService {
	return &fakeTokenService{refreshTTL: 7 * 24 * time.Hour}
}

func (s *fakeTokenService) next(kind string, userID uuid.UUID) string {
	return strings.Join([]string{kind, userID.String(), uuid.New().String()}, ".")
}

func (s *fakeTokenService) IssueAccess(userID uuid.UUID, _ string) (string, error) {
	return s.next("access", userID), nil
}

func (s *fakeTokenService) IssueRefresh(userID uuid.UUID) (string, error) {
	return s.next("refresh", userID), nil
}

func (s *fakeTokenService) IssueTokenPair(userID uuid.UUID, email string) (string, string, time.Time, error) {
	access, _ := s.IssueAccess(userID, email)
	refresh, _ := s.IssueRefresh(userID)

	return access, refresh, time.Now().Add(s.refreshTTL), nil
}

func (s *fakeTokenService) DecodeAccess(token string) (*service.TokenClaims, error) {
	return s.decode(token, "access")
}

func (s *fakeTokenService) DecodeRefresh(token string) (*service.TokenClaims, error) {
	return s.decode(token, "refresh")
}

func (s *fakeTokenService) decode(token, wantKind string) (*service.TokenClaims, error) {
	parts := strings.SplitN(token, ".", 3)
	if len(parts) != 3 || parts[0] != wantKind {
		return nil, errFakeTokenInvalid
	}
	userID, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, errFakeTokenInvalid
	}

	return &service.TokenClaims{UserID: userID, TokenType: wantKind}, nil
}

// --- in-memory fakes for concurrency tests ---

// memResetTokenRepo is a thread-safe in-memory PasswordResetTokenRepository.
// Claim holds the lock across check and write, mirroring the row-level
// atomicity of the real conditional update.
type memResetTokenRepo struct {
	mu   sync.Mutex
	rows map[string]*entity.PasswordResetToken
}

func newMemResetTokenRepo() *memResetTokenRepo {
	return &memResetTokenRepo{rows: make(map[string]*entity.PasswordResetToken)}
}

func (r *memResetTokenRepo) Create(_ context.Context, token *entity.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	clone := *token
	r.rows[token.TokenHash] = &clone

	return nil
}

func (r *memResetTokenRepo) FindByHash(_ context.Context, tokenHash string) (*entity.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[tokenHash]
	if !ok {
		return nil, repository.ErrResetTokenNotFound
	}
	clone := *row

	return &clone, nil
}

func (r *memResetTokenRepo) DeleteAllForUser(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for hash, row := range r.rows {
		if row.UserID == userID {
			delete(r.rows, hash)
			count++
		}
	}

	return count, nil
}

func (r *memResetTokenRepo) Claim(_ context.Context, tokenHash string, now time.Time) (*entity.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[tokenHash]
	if !ok || row.UsedAt != nil || !row.ExpiresAt.After(now) {
		return nil, repository.ErrResetTokenNotClaimable
	}
	at := now
	row.UsedAt = &at
	clone := *row

	return &clone, nil
}

func (r *memResetTokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for hash, row := range r.rows {
		if !row.ExpiresAt.After(now) {
			delete(r.rows, hash)
			count++
		}
	}

	return count, nil
}

// memRefreshTokenRepo is a thread-safe in-memory RefreshTokenRepository.
type memRefreshTokenRepo struct {
	mu   sync.Mutex
	rows map[string]*entity.RefreshToken
}

func newMemRefreshTokenRepo() *memRefreshTokenRepo {
	return &memRefreshTokenRepo{rows: make(map[string]*entity.RefreshToken)}
}

func (r *memRefreshTokenRepo) Create(_ context.Context, token *entity.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	clone := *token
	r.rows[token.Token] = &clone

	return nil
}

func (r *memRefreshTokenRepo) FindByToken(_ context.Context, token string) (*entity.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[token]
	if !ok {
		return nil, repository.ErrRefreshTokenNotFound
	}
	clone := *row

	return &clone, nil
}

func (r *memRefreshTokenRepo) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[token]; !ok {
		return repository.ErrRefreshTokenNotFound
	}
	delete(r.rows, token)

	return nil
}

func (r *memRefreshTokenRepo) DeleteAllForUser(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for token, row := range r.rows {
		if row.UserID == userID {
			delete(r.rows, token)
			count++
		}
	}

	return count, nil
}

func (r *memRefreshTokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for token, row := range r.rows {
		if !row.ExpiresAt.After(now) {
			delete(r.rows, token)
			count++
		}
	}

	return count, nil
}

func (r *memRefreshTokenRepo) Rotate(_ context.Context, oldToken string, userID uuid.UUID, newToken string, newExpiresAt time.Time) (*entity.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[oldToken]; !ok {
		return nil, repository.ErrRefreshTokenNotFound
	}
	delete(r.rows, oldToken)
	row := &entity.RefreshToken{ID: uuid.New(), UserID: userID, Token: newToken, ExpiresAt: newExpiresAt}
	r.rows[newToken] = row
	clone := *row

	return &clone, nil
}

// memUserRepo is a thread-safe in-memory UserRepository.
type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*entity.User
}

func newMemUserRepo(users ...*entity.User) *memUserRepo {
	repo := &memUserRepo{users: make(map[uuid.UUID]*entity.User)}
	for _, u := range users {
		clone := *u
		repo.users[u.ID] = &clone
	}

	return repo
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			clone := *u

			return &clone, nil
		}
	}

	return nil, repository.ErrUserNotFound
}

func (r *memUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	clone := *u

	return &clone, nil
}

func (r *memUserRepo) Create(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	clone := *user
	r.users[user.ID] = &clone

	return nil
}

func (r *memUserRepo) UpdatePasswordHash(_ context.Context, userID uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = passwordHash

	return nil
}

func (r *memUserRepo) UpdateLastLogin(_ context.Context, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.LastLoginAt = &at

	return nil
}
