package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"blog_api/internal/auth"
	"blog_api/internal/observability"
	"blog_api/internal/utils"

	"github.com/sirupsen/logrus"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// TokenRevoker stores revoked token ids.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
}

type UserServiceInterface interface {
	Register(ctx context.Context, username, password string) (*User, error)
	Login(ctx context.Context, username, password string) (*Session, error)
	Logout(ctx context.Context, token string) error
}

type UserService struct {
	repo    UserRepositoryInterface
	db      *sql.DB
	hasher  *auth.PasswordHasher
	tokens  *auth.TokenService
	revoker TokenRevoker
	metrics *observability.Metrics
}

func NewUserService(
	repo UserRepositoryInterface,
	db *sql.DB,
	hasher *auth.PasswordHasher,
	tokens *auth.TokenService,
	revoker TokenRevoker,
	metrics *observability.Metrics,
) UserServiceInterface {
	return &UserService{
		repo:    repo,
		db:      db,
		hasher:  hasher,
		tokens:  tokens,
		revoker: revoker,
		metrics: metrics,
	}
}

// Register creates a new user with a hashed password
func (s *UserService) Register(ctx context.Context, username, password string) (*User, error) {
	hashedPassword, err := s.hasher.Hash(password)
	if err != nil {
		s.metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		Username: username,
		Password: hashedPassword,
	}

	err = utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		_, err := s.repo.Create(ctx, tx, user)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			s.metrics.RegistrationsTotal.WithLabelValues("duplicate").Inc()
		} else {
			s.metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	s.metrics.RegistrationsTotal.WithLabelValues("success").Inc()
	return user, nil
}

// Login checks the credentials and issues a session token. An unknown
// username and a wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.repo.GetByUsername(ctx, s.db, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
			return nil, ErrInvalidCredentials
		}
		s.metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if err := s.hasher.Compare(user.Password, password); err != nil {
		s.metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	identity := user.Identity()
	token, _, err := s.tokens.Issue(identity)
	if err != nil {
		s.metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	s.metrics.LoginsTotal.WithLabelValues("success").Inc()
	logrus.WithField("user_id", identity.ID).Info("User logged in")

	return &Session{
		Token:    token,
		Identity: identity,
		MaxAge:   int(s.tokens.TTL().Seconds()),
	}, nil
}

// Logout revokes token until it would have expired. Tokens that no longer
// verify need no revocation.
func (s *UserService) Logout(ctx context.Context, token string) error {
	if token == "" || s.revoker == nil {
		return nil
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil
	}

	var ttl time.Duration
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
		if ttl <= 0 {
			return nil
		}
	}

	if err := s.revoker.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	s.metrics.TokensRevokedTotal.Inc()
	logrus.WithField("user_id", claims.UserID).Info("Session token revoked")
	return nil
}
