package userstore

import (
	"context"
	"errors"

	"github.com/rxpartners/crm-backend/pkg/user"
)

// ErrUserNotFound is returned when a user lookup finds no matching record.
var ErrUserNotFound = errors.New("user not found")

// Store defines the interface for user persistence
type Store interface {
	CreateUser(ctx context.Context, user *user.User) error
	GetUser(ctx context.Context, opts ...QueryOption) (*user.User, error)
	ListUsers(ctx context.Context) ([]*user.User, error)
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
}

// QueryOptions defines options for querying users
type QueryOptions struct {
	ID       *int64
	Username *string
}

// QueryOption is a functional option for querying users
type QueryOption func(*QueryOptions)

// WithID sets the user ID filter
func WithID(id int64) QueryOption {
	return func(opts *QueryOptions) {
		opts.ID = &id
	}
}

// WithUsername sets the username filter
func WithUsername(username string) QueryOption {
	return func(opts *QueryOptions) {
		opts.Username = &username
	}
}
