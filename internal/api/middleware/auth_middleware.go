package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/contentflow/configs"
	"github.com/maheshrc27/contentflow/pkg/utils"
)

type AuthMiddleware struct {
	cfg config.Config
}

func NewAuthMiddleware(cfg config.Config) *AuthMiddleware {
	return &AuthMiddleware{cfg: cfg}
}

// Enabled reports whether any credential is configured. Without one the API
// is left open for local use.
func (m *AuthMiddleware) Enabled() bool {
	return m.cfg.APIKey != "" || m.cfg.SecretKey != ""
}

// AuthMiddleware accepts the static API key (X-API-Key header or api_key
// query) or an operator JWT signed with SECRET_KEY.
func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !m.Enabled() {
			return c.Next()
		}

		apiKey := c.Get("X-API-Key")
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "))

		if apiKey == "" && tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing API key or token",
			})
		}

		if apiKey != "" {
			if m.cfg.APIKey == "" || !utils.KeysEqual(apiKey, m.cfg.APIKey) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid API key",
				})
			}
			c.Locals("operator", "api_key")
			return c.Next()
		}

		if m.cfg.SecretKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Token authentication is disabled",
			})
		}
		claims, err := utils.ValidateToken(m.cfg.SecretKey, tokenString)
		if err != nil {
			log.Printf("Token validation failed: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("operator", claims.Operator)
		return c.Next()
	}
}
