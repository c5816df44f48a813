package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/contentflow/configs"
	"github.com/maheshrc27/contentflow/pkg/utils"
)

func newApp(cfg config.Config) *fiber.App {
	app := fiber.New()
	app.Use(NewAuthMiddleware(cfg).AuthMiddleware())
	app.Get("/whoami", func(c *fiber.Ctx) error {
		operator, _ := c.Locals("operator").(string)
		return c.SendString(operator)
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	const secret = "signing-secret"
	token, err := utils.GenerateToken(secret, "ops", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	otherToken, err := utils.GenerateToken("other-secret", "ops", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		cfg    config.Config
		header map[string]string
		query  string
		want   int
	}{
		{name: "open when unconfigured", cfg: config.Config{}, want: fiber.StatusOK},
		{name: "missing credentials", cfg: config.Config{APIKey: "k1"}, want: fiber.StatusUnauthorized},
		{name: "api key header", cfg: config.Config{APIKey: "k1"}, header: map[string]string{"X-API-Key": "k1"}, want: fiber.StatusOK},
		{name: "api key query", cfg: config.Config{APIKey: "k1"}, query: "?api_key=k1", want: fiber.StatusOK},
		{name: "wrong api key", cfg: config.Config{APIKey: "k1"}, header: map[string]string{"X-API-Key": "nope"}, want: fiber.StatusUnauthorized},
		{name: "bearer token", cfg: config.Config{SecretKey: secret}, header: map[string]string{"Authorization": "Bearer " + token}, want: fiber.StatusOK},
		{name: "foreign token", cfg: config.Config{SecretKey: secret}, header: map[string]string{"Authorization": "Bearer " + otherToken}, want: fiber.StatusUnauthorized},
		{name: "token without secret", cfg: config.Config{APIKey: "k1"}, header: map[string]string{"Authorization": "Bearer " + token}, want: fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp(tt.cfg)
			req := httptest.NewRequest(http.MethodGet, "/whoami"+tt.query, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req, -1)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}
