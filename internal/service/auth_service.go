package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/domain"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// AuthService issues bearer tokens for valid credentials.
type AuthService struct {
	accounts *AccountService
	tokenMgr *auth.TokenManager
	logger   *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(accounts *AccountService, tokenMgr *auth.TokenManager, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		accounts: accounts,
		tokenMgr: tokenMgr,
		logger:   logger,
	}
}

// Login authenticates by username and password and returns an access token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, *domain.AccessToken, error) {
	user, err := s.accounts.Authenticate(ctx, username, password)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeUnauth) {
			s.logger.Info("login rejected", zap.String("username", username))
		}
		return nil, nil, err
	}
	token, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	return user, token, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
