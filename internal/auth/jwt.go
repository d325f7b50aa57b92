package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/psiflow/psiflow/internal/config"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/types"
)

// Claims is the identity extracted from a validated bearer token.
type Claims struct {
	UserID string
	Role   types.UserRole
}

// Service issues and validates the HMAC-signed bearer tokens used by the API.
type Service interface {
	ValidateToken(ctx context.Context, token string) (*Claims, error)
	GenerateToken(userID string, role types.UserRole) (string, error)
}

type service struct {
	cfg config.AuthConfig
}

// NewService creates a new auth service
func NewService(cfg *config.Configuration) Service {
	return &service{cfg: cfg.Auth}
}

func (s *service) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ierr.NewError("unexpected signing method").
				WithHint(fmt.Sprintf("unexpected signing method: %v", token.Header["alg"])).
				Mark(ierr.ErrPermissionDenied)
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Token parse error").
			Mark(ierr.ErrPermissionDenied)
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok || !parsedToken.Valid {
		return nil, ierr.NewError("invalid token claims").
			WithHint("Invalid token claims").
			Mark(ierr.ErrPermissionDenied)
	}

	userID, userOk := claims["user_id"].(string)
	if !userOk || userID == "" {
		return nil, ierr.NewError("token missing user ID").
			WithHint("Token missing user ID").
			Mark(ierr.ErrPermissionDenied)
	}

	role := types.UserRoleMember
	if r, ok := claims["role"].(string); ok && r != "" {
		role = types.UserRole(r)
	}

	return &Claims{UserID: userID, Role: role}, nil
}

func (s *service) GenerateToken(userID string, role types.UserRole) (string, error) {
	expiration := time.Now().Add(30 * 24 * time.Hour)

	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"exp":     expiration.Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to sign token").
			Mark(ierr.ErrSystem)
	}
	return signed, nil
}
