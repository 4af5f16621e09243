package usecase

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
	"github.com/startupadvisor/advisor-api/internal/core/port"
	"github.com/startupadvisor/advisor-api/internal/infra/config"
	"github.com/startupadvisor/advisor-api/internal/infra/security"
	"github.com/startupadvisor/advisor-api/internal/repository"
)

const strongTestPassword = "C0rrect!Horse#Battery9"

var testAuthSettings = config.AuthSettings{
	JWTSecret:            "unit-test-secret-with-enough-bytes",
	Issuer:               "advisor-test",
	AccessTokenTTL:       15 * time.Minute,
	RefreshTokenTTL:      168 * time.Hour,
	ResetTokenTTL:        30 * time.Minute,
	MaxFailedLogins:      5,
	LockDuration:         30 * time.Minute,
	PasswordHistoryDepth: 5,
}

// memUserRepo is an in-memory port.UserRepository used across the service
// tests. All methods are safe for the single-goroutine access the tests do.
type memUserRepo struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	history  map[string][]domain.PasswordHistoryEntry
	tokens   map[string][]domain.RefreshToken
	activity []domain.AuthActivity
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		users:   make(map[string]*domain.User),
		history: make(map[string][]domain.PasswordHistoryEntry),
		tokens:  make(map[string][]domain.RefreshToken),
	}
}

func (m *memUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := user
	m.users[user.ID] = &copied
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *memUserRepo) GetByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == identifier || user.Username == identifier {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUserRepo) FindExisting(_ context.Context, email, username string) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var emailTaken, usernameTaken bool
	for _, user := range m.users {
		if user.Email == email {
			emailTaken = true
		}
		if user.Username == username {
			usernameTaken = true
		}
	}
	return emailTaken, usernameTaken, nil
}

func (m *memUserRepo) UpdateProfile(_ context.Context, id, name, companyName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.Name = name
	user.CompanyName = companyName
	return nil
}

func (m *memUserRepo) UpdateEmail(_ context.Context, id, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.Email = email
	return nil
}

func (m *memUserRepo) UpdatePassword(_ context.Context, id, passwordHash string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.PasswordChangedAt = changedAt
	return nil
}

func (m *memUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		user.LastLogin = &at
	}
	return nil
}

func (m *memUserRepo) SetActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.IsActive = active
	return nil
}

func (m *memUserRepo) RecordFailedLogin(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	user.FailedLoginAttempts++
	return user.FailedLoginAttempts, nil
}

func (m *memUserRepo) ResetFailedAttempts(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		user.FailedLoginAttempts = 0
	}
	return nil
}

func (m *memUserRepo) SetLock(_ context.Context, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.LockedUntil = &until
	return nil
}

func (m *memUserRepo) ClearLock(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.LockedUntil = nil
	user.FailedLoginAttempts = 0
	return nil
}

func (m *memUserRepo) ListPasswordHistory(_ context.Context, userID string, limit int) ([]domain.PasswordHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := append([]domain.PasswordHistoryEntry{}, m.history[userID]...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].SetAt.After(entries[j].SetAt) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *memUserRepo) AddPasswordHistory(_ context.Context, entry domain.PasswordHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[entry.UserID] = append(m.history[entry.UserID], entry)
	return nil
}

func (m *memUserRepo) TrimPasswordHistory(_ context.Context, userID string, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.history[userID]
	sort.Slice(entries, func(i, j int) bool { return entries[i].SetAt.After(entries[j].SetAt) })
	if keep > 0 && len(entries) > keep {
		entries = entries[:keep]
	}
	m.history[userID] = entries
	return nil
}

func (m *memUserRepo) AddRefreshToken(_ context.Context, token domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.UserID] = append(m.tokens[token.UserID], token)
	return nil
}

func (m *memUserRepo) RemoveRefreshToken(_ context.Context, userID, tokenHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tokens := m.tokens[userID]
	for i, token := range tokens {
		if token.TokenHash == tokenHash {
			m.tokens[userID] = append(tokens[:i], tokens[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memUserRepo) ClearRefreshTokens(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, userID)
	return nil
}

func (m *memUserRepo) GetRefreshToken(_ context.Context, userID, tokenHash string) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, token := range m.tokens[userID] {
		if token.TokenHash == tokenHash {
			copied := token
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUserRepo) ListRefreshTokens(_ context.Context, userID string) ([]domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.RefreshToken{}, m.tokens[userID]...), nil
}

func (m *memUserRepo) SetResetToken(_ context.Context, userID, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	user.ResetTokenHash = &tokenHash
	user.ResetTokenExpires = &expiresAt
	return nil
}

func (m *memUserRepo) GetByResetTokenHash(_ context.Context, tokenHash string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ResetTokenHash != nil && *user.ResetTokenHash == tokenHash {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUserRepo) ClearResetToken(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[userID]; ok {
		user.ResetTokenHash = nil
		user.ResetTokenExpires = nil
	}
	return nil
}

func (m *memUserRepo) LogAuthActivity(_ context.Context, activity domain.AuthActivity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, activity)
	return nil
}

func (m *memUserRepo) ListAuthActivity(_ context.Context, userID string, limit int) ([]domain.AuthActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AuthActivity
	for i := len(m.activity) - 1; i >= 0; i-- {
		if m.activity[i].UserID != userID {
			continue
		}
		out = append(out, m.activity[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memUserRepo) activityCount(userID, action string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, a := range m.activity {
		if a.UserID == userID && a.Action == action {
			count++
		}
	}
	return count
}

var _ port.UserRepository = (*memUserRepo)(nil)

// stubNotifier satisfies port.Notifier without sending anything. Sends happen
// on background goroutines, so the counter is mutex-guarded.
type stubNotifier struct {
	mu    sync.Mutex
	sends map[string]int
}

func newStubNotifier() *stubNotifier {
	return &stubNotifier{sends: make(map[string]int)}
}

func (n *stubNotifier) record(kind string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends[kind]++
	return nil
}

func (n *stubNotifier) SendWelcome(context.Context, string, string) error {
	return n.record("welcome")
}

func (n *stubNotifier) SendPasswordReset(context.Context, string, string, string) error {
	return n.record("password_reset")
}

func (n *stubNotifier) SendPasswordChanged(context.Context, string, string) error {
	return n.record("password_changed")
}

func (n *stubNotifier) SendAccountUnlocked(context.Context, string, string) error {
	return n.record("account_unlocked")
}

func (n *stubNotifier) SendAccountDeactivated(context.Context, string, string) error {
	return n.record("account_deactivated")
}

func (n *stubNotifier) SendAccountReactivated(context.Context, string, string) error {
	return n.record("account_reactivated")
}

func (n *stubNotifier) SendEmailChanged(context.Context, string, string, string) error {
	return n.record("email_changed")
}

var _ port.Notifier = (*stubNotifier)(nil)

// stubEvents counts published events per kind.
type stubEvents struct {
	mu     sync.Mutex
	counts map[string]int
	states []string
}

func newStubEvents() *stubEvents {
	return &stubEvents{counts: make(map[string]int)}
}

func (e *stubEvents) record(kind string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counts[kind]++
}

func (e *stubEvents) count(kind string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[kind]
}

func (e *stubEvents) PublishUserRegistered(context.Context, domain.UserRegisteredEvent) error {
	e.record("user_registered")
	return nil
}

func (e *stubEvents) PublishUserLoggedIn(context.Context, domain.UserLoggedInEvent) error {
	e.record("user_logged_in")
	return nil
}

func (e *stubEvents) PublishPasswordChanged(context.Context, domain.PasswordChangedEvent) error {
	e.record("password_changed")
	return nil
}

func (e *stubEvents) PublishPasswordResetRequested(context.Context, domain.PasswordResetRequestedEvent) error {
	e.record("password_reset_requested")
	return nil
}

func (e *stubEvents) PublishAccountStateChanged(_ context.Context, event domain.AccountStateChangedEvent) error {
	e.mu.Lock()
	e.states = append(e.states, event.State)
	e.mu.Unlock()
	e.record("account_state_changed")
	return nil
}

func (e *stubEvents) PublishProjectVersionCreated(context.Context, domain.ProjectVersionCreatedEvent) error {
	e.record("project_version_created")
	return nil
}

func (e *stubEvents) PublishChatMessageCreated(context.Context, domain.ChatMessageCreatedEvent) error {
	e.record("chat_message_created")
	return nil
}

var _ port.EventPublisher = (*stubEvents)(nil)

// stubCompletion returns a canned assistant reply or error.
type stubCompletion struct {
	reply    string
	err      error
	lastMode domain.ConversationMode
	calls    int
}

func (c *stubCompletion) Complete(_ context.Context, mode domain.ConversationMode, _ []domain.ChatMessage) (string, error) {
	c.calls++
	c.lastMode = mode
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

var _ port.CompletionClient = (*stubCompletion)(nil)

type authFixture struct {
	service  *AuthService
	users    *memUserRepo
	notifier *stubNotifier
	events   *stubEvents
	tokens   *security.TokenService
	hasher   *security.PasswordHasher
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	tokens, err := security.NewTokenService(security.TokenConfig{
		Secret:     testAuthSettings.JWTSecret,
		Issuer:     testAuthSettings.Issuer,
		AccessTTL:  testAuthSettings.AccessTokenTTL,
		RefreshTTL: testAuthSettings.RefreshTokenTTL,
	})
	if err != nil {
		t.Fatalf("init token service: %v", err)
	}

	hasher, err := security.NewPasswordHasher(security.DefaultArgon2Config())
	if err != nil {
		t.Fatalf("init password hasher: %v", err)
	}

	users := newMemUserRepo()
	notifier := newStubNotifier()
	events := newStubEvents()

	service := NewAuthService(testAuthSettings, users, tokens, hasher, notifier, events, zap.NewNop())

	return &authFixture{
		service:  service,
		users:    users,
		notifier: notifier,
		events:   events,
		tokens:   tokens,
		hasher:   hasher,
	}
}

func (f *authFixture) register(t *testing.T, username, email string) *AuthResult {
	t.Helper()

	result, err := f.service.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    email,
		Password: strongTestPassword,
		Name:     "Test Founder",
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return result
}
