package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rxpartners/crm-backend/pkg/user"
)

const serviceName = "UserService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the user Service.
// Passwords never reach the log.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

func (ls *logService) Login(ctx context.Context, req *user.LoginRequest) (resp *user.LoginResponse, err error) {
	start := time.Now()
	defer func() {
		fields := []zap.Field{
			zap.String("service", serviceName),
			zap.String("method", "Login"),
			zap.String("username", req.Username),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			ls.logger.Warn("Login failed", append(fields, zap.Error(err))...)
			return
		}
		ls.logger.Info("Login completed", append(fields, zap.Int64("user_id", resp.User.ID))...)
	}()

	return ls.svc.Login(ctx, req)
}

func (ls *logService) CreateUser(
	ctx context.Context,
	username, email, role, password string,
) (usr *user.User, err error) {
	start := time.Now()
	defer func() {
		fields := []zap.Field{
			zap.String("service", serviceName),
			zap.String("method", "CreateUser"),
			zap.String("username", username),
			zap.String("role", role),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			ls.logger.Error("CreateUser failed", append(fields, zap.Error(err))...)
			return
		}
		ls.logger.Info("CreateUser completed", append(fields, zap.Int64("user_id", usr.ID))...)
	}()

	return ls.svc.CreateUser(ctx, username, email, role, password)
}

func (ls *logService) GetUserByID(ctx context.Context, id int64) (usr *user.User, err error) {
	defer func() {
		if err != nil {
			ls.logger.Debug("GetUserByID failed",
				zap.String("service", serviceName),
				zap.Int64("user_id", id),
				zap.Error(err),
			)
		}
	}()
	return ls.svc.GetUserByID(ctx, id)
}
