package serverutils

import (
	"errors"
	"strings"

	"rag-chat-be/internal/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	LocalUserID = "user_id"
	LocalRole   = "role"

	RoleAdmin = "admin"
)

// Identity is what a verified token says about the caller.
type Identity struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// ParseToken verifies an HS256 token and extracts user_id and role claims.
func ParseToken(secret, tokenStr string) (*Identity, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, apperror.New(apperror.ErrAuthRequired, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperror.New(apperror.ErrAuthRequired, "invalid claims")
	}

	rawID, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, apperror.New(apperror.ErrAuthRequired, "invalid user_id claim")
	}

	role, _ := claims["role"].(string)
	return &Identity{UserID: userID, IsAdmin: role == RoleAdmin}, nil
}

// BearerToken returns the token from an "Authorization: Bearer ..." header.
func BearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func JwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := BearerToken(ctx.Get("Authorization"))
		if tokenStr == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}

		identity, err := ParseToken(secret, tokenStr)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, apperror.Message(err)))
		}

		role := "user"
		if identity.IsAdmin {
			role = RoleAdmin
		}
		ctx.Locals(LocalUserID, identity.UserID.String())
		ctx.Locals(LocalRole, role)
		return ctx.Next()
	}
}

// CurrentIdentity reads what JwtMiddleware stored on the request.
func CurrentIdentity(ctx *fiber.Ctx) (*Identity, error) {
	userIDStr, _ := ctx.Locals(LocalUserID).(string)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, errors.Join(apperror.ErrAuthRequired, err)
	}
	role, _ := ctx.Locals(LocalRole).(string)
	return &Identity{UserID: userID, IsAdmin: role == RoleAdmin}, nil
}
