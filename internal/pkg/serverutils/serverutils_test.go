package serverutils

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"rag-chat-be/internal/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return tok
}

func TestParseToken(t *testing.T) {
	userID := uuid.New()

	identity, err := ParseToken(testSecret, signToken(t, jwt.MapClaims{
		"user_id": userID.String(),
		"role":    "admin",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}))
	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)
	assert.True(t, identity.IsAdmin)

	_, err = ParseToken("other-secret", signToken(t, jwt.MapClaims{"user_id": userID.String()}))
	assert.ErrorIs(t, err, apperror.ErrAuthRequired)

	_, err = ParseToken(testSecret, signToken(t, jwt.MapClaims{"user_id": "nope"}))
	assert.ErrorIs(t, err, apperror.ErrAuthRequired)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer abc"))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
}

func TestJwtMiddlewareAndErrorHandler(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/me", JwtMiddleware(testSecret), func(ctx *fiber.Ctx) error {
		identity, err := CurrentIdentity(ctx)
		if err != nil {
			return err
		}
		return ctx.JSON(SuccessResponse("me", identity.UserID.String()))
	})
	app.Get("/missing", func(ctx *fiber.Ctx) error {
		return fmt.Errorf("lookup: %w", apperror.NotFound("conversation not found"))
	})

	userID := uuid.New()
	tests := []struct {
		name   string
		path   string
		token  string
		status int
		msg    string
	}{
		{"no token", "/me", "", 401, "Missing token"},
		{"valid token", "/me", signToken(t, jwt.MapClaims{"user_id": userID.String()}), 200, "me"},
		{"app error mapped", "/missing", "", 404, "conversation not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body BaseResponse[any]
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.msg, body.Message)
		})
	}
}

func TestValidateRequest(t *testing.T) {
	type req struct {
		Title  string `validate:"required,max=5"`
		Status string `validate:"omitempty,oneof=read"`
	}

	assert.NoError(t, ValidateRequest(req{Title: "ok"}))

	err := ValidateRequest(req{Title: "too long", Status: "seen"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Contains(t, err.Error(), "title must be at most 5 characters")
	assert.Contains(t, err.Error(), "status must be one of [read]")
}
