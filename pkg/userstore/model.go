package userstore

import (
	"github.com/rxpartners/crm-backend/pkg/crm"
	"github.com/rxpartners/crm-backend/pkg/user"
)

// toUserDao converts a user.User to the users table model.
func toUserDao(usr *user.User) *crm.UserDao {
	return &crm.UserDao{
		ID:           usr.ID,
		Username:     usr.Username,
		Email:        usr.Email,
		PasswordHash: usr.PasswordHash,
		Role:         usr.Role,
		CreatedAt:    usr.CreatedAt,
	}
}

// toUser converts a users table row to user.User.
func toUser(dao *crm.UserDao) *user.User {
	return &user.User{
		ID:           dao.ID,
		Username:     dao.Username,
		Email:        dao.Email,
		Role:         dao.Role,
		PasswordHash: dao.PasswordHash,
		CreatedAt:    dao.CreatedAt,
	}
}
