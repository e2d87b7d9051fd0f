package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/webshop/internal/domain/fault"
	"github.com/xenking/webshop/internal/domain/user"
)

const tokenBytes = 32

// ErrInvalidCredentials is returned by SignIn for an unknown email, a deleted
// account or a wrong password alike.
var ErrInvalidCredentials = fault.New(fault.Unauthorized, "invalid email or password")

// Config holds session issuing parameters.
type Config struct {
	// SessionTTL is the lifetime of an issued session.
	SessionTTL time.Duration
	// Pepper keys the HMAC applied to tokens before they are stored.
	Pepper []byte
}

// SignInResult is returned on successful sign-in. Token is the only place the
// plaintext bearer token ever appears.
type SignInResult struct {
	Token     string
	ExpiresAt time.Time
	User      *user.User
}

// Service is the auth guard: it issues, validates and revokes sessions.
type Service struct {
	sessions SessionRepository
	users    user.Repository
	hasher   PasswordHasher
	ttl      time.Duration
	pepper   []byte
	now      func() time.Time

	signIns metric.Int64Counter
}

// NewService creates an auth Service.
func NewService(
	cfg Config,
	sessions SessionRepository,
	users user.Repository,
	hasher PasswordHasher,
	meter metric.Meter,
) (*Service, error) {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	signIns, err := meter.Int64Counter("webshop.auth.sign_ins",
		metric.WithDescription("Sign-in attempts by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "sign-in counter")
	}
	return &Service{
		sessions: sessions,
		users:    users,
		hasher:   hasher,
		ttl:      cfg.SessionTTL,
		pepper:   cfg.Pepper,
		now:      time.Now,
		signIns:  signIns,
	}, nil
}

// Validate resolves a raw bearer token. A missing, unknown or expired token
// and a token of a deleted user all yield the anonymous verdict without an
// error; only storage failures are returned as errors.
func (s *Service) Validate(ctx context.Context, token string) (Verdict, error) {
	if token == "" {
		return Verdict{}, nil
	}

	hash := s.hashToken(token)
	sess, err := s.sessions.FindByHash(ctx, hex.EncodeToString(hash))
	if errors.Is(err, ErrSessionNotFound) {
		return Verdict{}, nil
	}
	if err != nil {
		return Verdict{}, errors.Wrap(err, "find session")
	}

	// The lookup matched, but the stored hash is what authenticates.
	stored, err := hex.DecodeString(sess.TokenHash)
	if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
		return Verdict{}, nil
	}
	if !sess.Active(s.now()) {
		return Verdict{}, nil
	}

	u, err := s.users.GetByID(ctx, sess.UserID)
	if errors.Is(err, user.ErrNotFound) {
		return Verdict{}, nil
	}
	if err != nil {
		return Verdict{}, errors.Wrap(err, "resolve session user")
	}
	if u.Deleted() {
		return Verdict{}, nil
	}

	return Verdict{
		Authenticated: true,
		UserID:        u.ID,
		Role:          u.Role,
	}, nil
}

// SignIn verifies credentials and opens a new session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	lg := zctx.From(ctx)

	email, err := user.NormalizeEmail(email)
	if err != nil {
		s.countSignIn(ctx, "malformed")
		return nil, ErrInvalidCredentials
	}

	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, user.ErrNotFound):
		s.countSignIn(ctx, "unknown_user")
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, errors.Wrap(err, "find user")
	case u.Deleted():
		s.countSignIn(ctx, "deleted_user")
		return nil, ErrInvalidCredentials
	}

	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			s.countSignIn(ctx, "wrong_password")
			lg.Debug("Sign-in rejected", zap.String("user_id", u.ID))
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "compare password")
	}

	token, err := newToken()
	if err != nil {
		return nil, errors.Wrap(err, "generate token")
	}
	now := s.now().UTC()
	sess := &Session{
		TokenHash: hex.EncodeToString(s.hashToken(token)),
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, errors.Wrap(err, "create session")
	}

	s.countSignIn(ctx, "ok")
	lg.Info("User signed in", zap.String("user_id", u.ID))
	return &SignInResult{
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
		User:      u,
	}, nil
}

// SignOut revokes the session of token. Unknown tokens are ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, hex.EncodeToString(s.hashToken(token))); err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}

func (s *Service) hashToken(token string) []byte {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(token))
	return mac.Sum(nil)
}

func (s *Service) countSignIn(ctx context.Context, result string) {
	s.signIns.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
