// Package auth issues and checks the bearer tokens of the diagnostics API.
// Clients trade the configured API key for a short lived JWT.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/KevinKickass/OpenProfinetDevice/internal/config"
	"github.com/KevinKickass/OpenProfinetDevice/internal/logging"
	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrNoAPIKey           = errors.New("auth: no api key configured")
	ErrUnknownRole        = errors.New("auth: unknown role")
)

type Permission string

const (
	PermReadStatus Permission = "status:read"
	PermReadImage  Permission = "image:read"
	PermLive       Permission = "live"
	PermControl    Permission = "system:control"
)

type Role string

const (
	RoleMonitor  Role = "monitor"
	RoleOperator Role = "operator"
)

func (r Role) Permissions() []Permission {
	switch r {
	case RoleOperator:
		return []Permission{PermReadStatus, PermReadImage, PermLive, PermControl}
	case RoleMonitor:
		return []Permission{PermReadStatus}
	default:
		return nil
	}
}

type AuthService struct {
	enabled    bool
	apiKeyHash string
	jwtHandler *JWTHandler
	hasher     *KeyHasher
	logger     logging.Logger
}

func NewAuthService(cfg config.AuthConfig, logger logging.Logger) *AuthService {
	if cfg.Enabled && !cfg.IsProductionReady() {
		logger.Warn("JWT secret is not production ready",
			zap.String("env", cfg.JWTSecretEnv))
	}

	return &AuthService{
		enabled:    cfg.Enabled,
		apiKeyHash: cfg.APIKeyHash,
		jwtHandler: NewJWTHandler(cfg.GetJWTSecret(), cfg.AccessTokenTTL),
		hasher:     NewKeyHasher(),
		logger:     logger,
	}
}

// Enabled reports whether requests must carry a token.
func (a *AuthService) Enabled() bool {
	return a.enabled
}

// IssueToken exchanges the API key for a token of role. An empty role
// means operator.
func (a *AuthService) IssueToken(apiKey, client string, role Role) (string, time.Time, error) {
	if a.apiKeyHash == "" {
		return "", time.Time{}, ErrNoAPIKey
	}
	if role == "" {
		role = RoleOperator
	}
	if role.Permissions() == nil {
		return "", time.Time{}, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}

	valid, err := a.hasher.VerifyKey(apiKey, a.apiKeyHash)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to verify api key: %w", err)
	}
	if !valid {
		a.logger.Warn("API key rejected", zap.String("client", client))
		return "", time.Time{}, ErrInvalidCredentials
	}

	token, expires, err := a.jwtHandler.GenerateAccessToken(client, role)
	if err != nil {
		return "", time.Time{}, err
	}

	a.logger.Info("Access token issued",
		zap.String("client", client),
		zap.String("role", string(role)),
		zap.Time("expires_at", expires))

	return token, expires, nil
}

// ValidateToken returns the permissions granted by token. With auth
// disabled every token, including none, grants the operator role.
func (a *AuthService) ValidateToken(token string) ([]Permission, error) {
	if !a.enabled {
		return RoleOperator.Permissions(), nil
	}

	claims, err := a.jwtHandler.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	return claims.Role.Permissions(), nil
}

// HashKey produces the value for auth.api_key_hash.
func (a *AuthService) HashKey(apiKey string) (string, error) {
	return a.hasher.HashKey(apiKey)
}

func hasPermission(perms []Permission, required Permission) bool {
	return slices.Contains(perms, required)
}
