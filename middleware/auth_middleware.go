package middleware

import (
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/wyzar/wyzar_messaging/apperrors"
)

const userContextKey = "user"

func Protected(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(secret),
		ContextKey:   userContextKey,
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	message := "Invalid or expired JWT"
	if err.Error() == "Missing or malformed JWT" {
		message = "Missing or malformed JWT"
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"error": message, "code": apperrors.CodeUnauthenticated})
}

// CurrentUserID reads the user_id claim placed by Protected.
func CurrentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	token, ok := c.Locals(userContextKey).(*jwt.Token)
	if !ok {
		return uuid.Nil, apperrors.Unauthenticated("missing token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, apperrors.Unauthenticated("invalid token claims")
	}
	return UserIDFromClaims(claims)
}

func UserIDFromClaims(claims jwt.MapClaims) (uuid.UUID, error) {
	raw, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, apperrors.Unauthenticated("token has no user_id")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.Unauthenticated("token user_id is not a uuid")
	}
	return id, nil
}

// ParseToken validates an HS256 token outside of the fiber middleware chain,
// as the websocket handshake needs.
func ParseToken(tokenString, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.Unauthenticated("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnauthenticated, "invalid token", err)
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, apperrors.Unauthenticated("invalid token")
}
