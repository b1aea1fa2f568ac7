package middleware // middleware provides shared request processing for handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// The shop has no user accounts on the purchase path; a cart session
// token is the only credential a shopper carries. The token binds the
// browser to its cart id so nobody else can promote or empty the cart.

// IssueCartToken signs a session token for one cart. The expiry is
// deliberately longer than the hold TTL: an expired hold should fail
// with a cart error the shopper understands, not an opaque 401.
func IssueCartToken(secret, cartID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": cartID,
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(secret))
}

// CartSession returns an Echo middleware that validates the Bearer
// cart token and injects the cart id into the request context under
// "cart_id". Handlers on cart and checkout routes rely on it.
func CartSession(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing cart token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid cart token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			cartID, _ := claims["sub"].(string)
			if cartID == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid cart token"})
			}
			c.Set("cart_id", cartID)
			return next(c)
		}
	}
}

// CartID extracts the cart id the session middleware stored, or ""
// when the route runs without a session.
func CartID(c echo.Context) string {
	if v, ok := c.Get("cart_id").(string); ok {
		return v
	}
	return ""
}
