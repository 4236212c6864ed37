package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adeilh/emergency-backend/db"
	"github.com/adeilh/emergency-backend/model"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUserExists         = errors.New("auth: username already registered")
	ErrUserInvalidInput   = errors.New("auth: invalid user input")
	ErrUnauthenticated    = errors.New("auth: could not validate credentials")
	ErrForbidden          = errors.New("auth: admin privileges required")
)

const DefaultTokenTTL = 30 * time.Minute

// Users is the slice of the store the service needs.
type Users interface {
	CreateUser(ctx context.Context, u model.User) error
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
}

// ServiceConfig wires dependencies for Service.
type ServiceConfig struct {
	Users    Users
	Hasher   PasswordHasher
	Tokens   TokenProvider
	TokenTTL time.Duration
	Issuer   string
	Now      func() time.Time
}

// Service implements registration, login and bearer authentication.
type Service struct {
	users  Users
	hasher PasswordHasher
	tokens TokenProvider
	opts   JWTOptions
	now    func() time.Time
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Users == nil || cfg.Hasher == nil || cfg.Tokens == nil {
		return nil, ErrUserInvalidInput
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = model.Now
	}
	return &Service{
		users:  cfg.Users,
		hasher: cfg.Hasher,
		tokens: cfg.Tokens,
		opts:   JWTOptions{Issuer: cfg.Issuer, TTL: cfg.TokenTTL},
		now:    cfg.Now,
	}, nil
}

// Registration is the body of a register request.
type Registration struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Register creates a new account.
func (s *Service) Register(ctx context.Context, r Registration) (model.User, error) {
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" || r.Password == "" {
		return model.User{}, fmt.Errorf("%w: username and password are required", ErrUserInvalidInput)
	}
	switch r.Role {
	case "":
		r.Role = model.RoleUser
	case model.RoleUser, model.RoleAdmin:
	default:
		return model.User{}, fmt.Errorf("%w: unknown role %q", ErrUserInvalidInput, r.Role)
	}

	hashed, err := s.hasher.Hash(ctx, []byte(r.Password))
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return model.User{}, fmt.Errorf("%w: %v", ErrUserInvalidInput, err)
		}
		return model.User{}, err
	}
	u := model.User{
		ID:             model.NewID(),
		Username:       r.Username,
		Email:          r.Email,
		Role:           r.Role,
		HashedPassword: hashed,
		CreatedAt:      s.now(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return model.User{}, ErrUserExists
		}
		return model.User{}, err
	}
	return u, nil
}

// Session is the result of a successful login.
type Session struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	User        model.PublicUser `json:"user"`
}

// Login verifies credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := s.hasher.Compare(ctx, []byte(password), u.HashedPassword); err != nil {
		if errors.Is(err, ErrPasswordMismatch) || errors.Is(err, ErrPasswordInvalidHash) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	token, err := s.tokens.Issue(ctx, JWTClaims{Subject: u.Username, Role: u.Role}, s.opts)
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: token.Raw(), TokenType: "bearer", User: u.Public()}, nil
}

// Principal is the authenticated caller of a request.
type Principal struct {
	User  model.User
	Token JWTToken
}

// Authenticate parses raw and reloads the account it names. Any token or
// lookup failure maps to ErrUnauthenticated; context errors pass through.
func (s *Service) Authenticate(ctx context.Context, raw string) (Principal, error) {
	token, err := s.tokens.Parse(ctx, raw)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Principal{}, ctxErr
		}
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	u, err := s.users.GetUserByUsername(ctx, token.Claims().Subject)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Principal{}, ErrUnauthenticated
		}
		return Principal{}, err
	}
	return Principal{User: u, Token: token}, nil
}

// Logout revokes the token carried by p.
func (s *Service) Logout(ctx context.Context, p Principal) error {
	return s.tokens.Revoke(ctx, p.Token)
}

// EnsureUser registers r unless the username already exists. It reports
// whether an account was created.
func (s *Service) EnsureUser(ctx context.Context, r Registration) (bool, error) {
	if _, err := s.users.GetUserByUsername(ctx, r.Username); err == nil {
		return false, nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return false, err
	}
	if _, err := s.Register(ctx, r); err != nil {
		if errors.Is(err, ErrUserExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DemoAccounts are seeded when bootstrap seeding is enabled.
func DemoAccounts() []Registration {
	return []Registration{
		{Username: "admin", Password: "admin123", Email: "admin@emergency.local", Role: model.RoleAdmin},
		{Username: "testuser", Password: "test123", Email: "test@emergency.local", Role: model.RoleUser},
	}
}
