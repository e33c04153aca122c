package service

import (
	"context"
	"strings"
	"time"

	"github.com/blockhaven/ticketd/internal/auth"
	"github.com/blockhaven/ticketd/internal/config"
	"github.com/blockhaven/ticketd/pkg/util"
)

// AuthService opens player sessions for the game-server bridge. The bridge
// authenticates with a shared key and then requests one token per player it
// hosts; each token carries the player identity, the elevated capability
// flag, and the originating server label.
type AuthService struct {
	tokenMgr      *auth.TokenManager
	bridgeKeyHash string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config) *AuthService {
	return &AuthService{
		tokenMgr:      auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTLMinutes),
		bridgeKeyHash: cfg.Auth.BridgeKeyHash,
	}
}

// OpenSession verifies the bridge key and issues a session token for the
// named player. The elevated flag is asserted by the bridge from the player's
// client capabilities; it only decides access in standalone deployments.
func (s *AuthService) OpenSession(_ context.Context, bridgeKey, name string, elevated bool, server string) (string, time.Time, error) {
	if strings.TrimSpace(name) == "" {
		return "", time.Time{}, util.NewValidationError("player name required", nil)
	}
	if s.bridgeKeyHash == "" {
		return "", time.Time{}, util.NewUnauthorized("bridge key not configured")
	}
	if err := auth.VerifyBridgeKey(s.bridgeKeyHash, bridgeKey); err != nil {
		return "", time.Time{}, util.NewUnauthorized("invalid bridge key")
	}
	return s.tokenMgr.GenerateToken(name, elevated, server)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
