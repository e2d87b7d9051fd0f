package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/webshop/internal/domain/fault"
	"github.com/xenking/webshop/internal/domain/user"
)

// --- Mock implementations ---

type mockSessionRepo struct {
	byHash  map[string]Session
	findErr error
}

func (m *mockSessionRepo) Create(_ context.Context, s *Session) error {
	m.byHash[s.TokenHash] = *s
	return nil
}

func (m *mockSessionRepo) FindByHash(_ context.Context, hash string) (*Session, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	s, ok := m.byHash[hash]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *mockSessionRepo) Delete(_ context.Context, hash string) error {
	delete(m.byHash, hash)
	return nil
}

type mockUserRepo struct {
	byID map[string]*user.User
}

func (m *mockUserRepo) Create(_ context.Context, u *user.User) error {
	m.byID[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return m.GetByID(ctx, u.ID)
		}
	}
	return nil, user.ErrNotFound
}

func (m *mockUserRepo) List(context.Context) ([]user.User, error) { return nil, nil }

func (m *mockUserRepo) Update(context.Context, string, func(*user.User) error) (*user.User, error) {
	return nil, errors.New("not implemented")
}

// plainHasher stores passwords with a marker prefix; bcrypt is covered
// separately.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainHasher) Compare(hash, password string) error {
	if hash != "plain:"+password {
		return ErrPasswordMismatch
	}
	return nil
}

// --- Helpers ---

type fixture struct {
	svc      *Service
	sessions *mockSessionRepo
	users    *mockUserRepo
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sessions: &mockSessionRepo{byHash: make(map[string]Session)},
		users: &mockUserRepo{byID: map[string]*user.User{
			"u1": {ID: "u1", Email: "alice@example.com", PasswordHash: "plain:correct horse", Role: user.RoleCustomer},
			"u2": {ID: "u2", Email: "root@example.com", PasswordHash: "plain:operator pass", Role: user.RoleAdmin},
		}},
		clock: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(
		Config{SessionTTL: time.Hour, Pepper: []byte("pepper")},
		f.sessions, f.users, plainHasher{},
		noop.NewMeterProvider().Meter(""),
	)
	require.NoError(t, err)
	svc.now = func() time.Time { return f.clock }
	f.svc = svc
	return f
}

func (f *fixture) signIn(t *testing.T, email, password string) *SignInResult {
	t.Helper()
	res, err := f.svc.SignIn(context.Background(), email, password)
	require.NoError(t, err)
	return res
}

// --- Tests ---

func TestSignIn_ValidateRoundTrip(t *testing.T) {
	f := newFixture(t)
	res := f.signIn(t, " Alice@Example.com", "correct horse")

	assert.Len(t, res.Token, 2*tokenBytes)
	assert.Equal(t, f.clock.Add(time.Hour), res.ExpiresAt)
	assert.Equal(t, "u1", res.User.ID)

	for hash := range f.sessions.byHash {
		assert.NotEqual(t, res.Token, hash, "plaintext token must not be stored")
	}

	v, err := f.svc.Validate(context.Background(), res.Token)
	require.NoError(t, err)
	assert.True(t, v.IsAuthenticated())
	assert.False(t, v.HasElevatedPrivilege())
	assert.Equal(t, "u1", v.Subject())
}

func TestSignIn_Admin(t *testing.T) {
	f := newFixture(t)
	res := f.signIn(t, "root@example.com", "operator pass")

	v, err := f.svc.Validate(context.Background(), res.Token)
	require.NoError(t, err)
	assert.True(t, v.HasElevatedPrivilege())
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	f := newFixture(t)
	deletedAt := f.clock
	f.users.byID["u3"] = &user.User{ID: "u3", Email: "gone@example.com", PasswordHash: "plain:whatever1", DeletedAt: &deletedAt}

	tests := []struct {
		name, email, password string
	}{
		{name: "wrong password", email: "alice@example.com", password: "nope"},
		{name: "unknown email", email: "eve@example.com", password: "correct horse"},
		{name: "malformed email", email: "not-an-email", password: "correct horse"},
		{name: "deleted user", email: "gone@example.com", password: "whatever1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SignIn(context.Background(), tt.email, tt.password)
			require.ErrorIs(t, err, ErrInvalidCredentials)
			assert.True(t, fault.Is(err, fault.Unauthorized))
		})
	}
	assert.Empty(t, f.sessions.byHash)
}

func TestValidate_Anonymous(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, token := range []string{"", "deadbeef", strings.Repeat("0", 64)} {
		v, err := f.svc.Validate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, Verdict{}, v)
	}
}

func TestValidate_Expired(t *testing.T) {
	f := newFixture(t)
	res := f.signIn(t, "alice@example.com", "correct horse")

	f.clock = f.clock.Add(time.Hour - time.Second)
	v, err := f.svc.Validate(context.Background(), res.Token)
	require.NoError(t, err)
	assert.True(t, v.IsAuthenticated())

	f.clock = f.clock.Add(time.Second)
	v, err = f.svc.Validate(context.Background(), res.Token)
	require.NoError(t, err)
	assert.False(t, v.IsAuthenticated())
}

func TestValidate_DeletedUser(t *testing.T) {
	f := newFixture(t)
	res := f.signIn(t, "alice@example.com", "correct horse")

	now := f.clock
	f.users.byID["u1"].DeletedAt = &now

	v, err := f.svc.Validate(context.Background(), res.Token)
	require.NoError(t, err)
	assert.False(t, v.IsAuthenticated())
}

func TestValidate_StorageError(t *testing.T) {
	f := newFixture(t)
	f.sessions.findErr = errors.New("connection reset")

	_, err := f.svc.Validate(context.Background(), "abc")
	require.Error(t, err)
	_, classified := fault.KindOf(err)
	assert.False(t, classified)
}

func TestValidate_PepperMatters(t *testing.T) {
	f := newFixture(t)
	res := f.signIn(t, "alice@example.com", "correct horse")

	other, err := NewService(Config{Pepper: []byte("other")}, f.sessions, f.users, plainHasher{}, noop.NewMeterProvider().Meter(""))
	require.NoError(t, err)

	v, err := other.Validate(context.Background(), res.Token)
	require.NoError(t, err)
	assert.False(t, v.IsAuthenticated())
}

func TestSignOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.signIn(t, "alice@example.com", "correct horse")

	require.NoError(t, f.svc.SignOut(ctx, res.Token))
	v, err := f.svc.Validate(ctx, res.Token)
	require.NoError(t, err)
	assert.False(t, v.IsAuthenticated())

	require.NoError(t, f.svc.SignOut(ctx, res.Token), "sign-out is idempotent")
	require.NoError(t, f.svc.SignOut(ctx, ""))
}

func TestVerdictContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, Verdict{}, VerdictFrom(ctx))

	v := Verdict{Authenticated: true, UserID: "u1", Role: user.RoleAdmin}
	assert.Equal(t, v, VerdictFrom(WithVerdict(ctx, v)))

	assert.False(t, Verdict{Role: user.RoleAdmin}.HasElevatedPrivilege(), "role alone does not elevate")
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: 4}

	hash, err := h.Hash("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	require.NoError(t, h.Compare(hash, "s3cret-pass"))
	require.ErrorIs(t, h.Compare(hash, "wrong"), ErrPasswordMismatch)
}
