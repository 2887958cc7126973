package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/rxpartners/crm-backend/pkg/app/errors"
	"github.com/rxpartners/crm-backend/pkg/user"
	"github.com/rxpartners/crm-backend/pkg/userstore"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserExists         = errors.New("username already taken")
)

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	Issue(usr *user.User) (token string, expiresAt time.Time, err error)
}

// Store is the narrow data-access interface for the user service.
//
//go:generate mockery --name Store --output mocks --outpkg mocks --filename mock_store.go --with-expecter
type Store interface {
	CreateUser(ctx context.Context, usr *user.User) error
	GetUser(ctx context.Context, opts ...userstore.QueryOption) (*user.User, error)
}

// Service defines the user login and lookup operations
//
//go:generate mockery --name Service --output mocks --outpkg mocks --filename mock_service.go --with-expecter
type Service interface {
	Login(ctx context.Context, req *user.LoginRequest) (*user.LoginResponse, error)
	CreateUser(ctx context.Context, username, email, role, password string) (*user.User, error)
	GetUserByID(ctx context.Context, id int64) (*user.User, error)
}

type userService struct {
	store  Store
	tokens TokenIssuer
	logger *zap.Logger
	cost   int
}

// NewService creates a new user service
func NewService(store Store, tokens TokenIssuer, logger *zap.Logger) Service {
	return &userService{
		store:  store,
		tokens: tokens,
		logger: logger,
		cost:   bcrypt.DefaultCost,
	}
}

// Login verifies the password and issues a session token.
// Unknown users and wrong passwords produce the same error.
func (s *userService) Login(ctx context.Context, req *user.LoginRequest) (*user.LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, apperrors.BadRequestError(nil, "username and password required")
	}

	usr, err := s.store.GetUser(ctx, userstore.WithUsername(username))
	if err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			return nil, apperrors.UnAuthorizedError(ErrInvalidCredentials, ErrInvalidCredentials.Error())
		}
		return nil, apperrors.GeneralError(fmt.Errorf("failed to load user: %w", err))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Debug("Password mismatch", zap.Int64("user_id", usr.ID))
		return nil, apperrors.UnAuthorizedError(ErrInvalidCredentials, ErrInvalidCredentials.Error())
	}

	token, expiresAt, err := s.tokens.Issue(usr)
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}

	return &user.LoginResponse{Token: token, ExpiresAt: expiresAt, User: usr}, nil
}

// CreateUser hashes the password and stores a new user.
func (s *userService) CreateUser(ctx context.Context, username, email, role, password string) (*user.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.BadRequestError(nil, "username and password required")
	}
	switch role {
	case "", user.RoleAdmin, user.RoleSales, user.RoleViewer:
	default:
		return nil, apperrors.BadRequestError(nil, fmt.Sprintf("unknown role %q", role))
	}

	_, err := s.store.GetUser(ctx, userstore.WithUsername(username))
	switch {
	case err == nil:
		return nil, apperrors.ConflictError(ErrUserExists, ErrUserExists.Error())
	case !errors.Is(err, userstore.ErrUserNotFound):
		return nil, apperrors.GeneralError(fmt.Errorf("failed to check username: %w", err))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, apperrors.GeneralError(fmt.Errorf("failed to hash password: %w", err))
	}

	usr := user.New(username, email, role, string(hash))
	if err := s.store.CreateUser(ctx, usr); err != nil {
		return nil, apperrors.GeneralError(err)
	}
	return usr, nil
}

func (s *userService) GetUserByID(ctx context.Context, id int64) (*user.User, error) {
	usr, err := s.store.GetUser(ctx, userstore.WithID(id))
	if err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "user not found")
		}
		return nil, apperrors.GeneralError(err)
	}
	return usr, nil
}
