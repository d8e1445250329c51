package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-dispatch/pkg/util"
)

type userMap map[string]*domain.User

func (m userMap) GetByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := m[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func testApp(users userMap, tokens *TokenManager, guards ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	handlers := append([]fiber.Handler{NewAuthMiddleware(tokens, users).Handle}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(string(p.Actor.Role) + "|" + p.Actor.CompanyID)
	})
	app.Get("/me", handlers...)
	return app
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	token, exp, err := tm.GenerateToken(&domain.User{ID: "u1", Role: domain.RoleTeamLead, CompanyID: "acme"})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatal("token must expire in the future")
	}
	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Subject != "u1" || claims.Role != "Team Lead" || claims.CompanyID != "acme" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, err := NewTokenManager("other", time.Hour).ParseToken(token); err == nil {
		t.Fatal("token signed with another secret must be rejected")
	}
}

func TestMiddlewareParsesStoredRole(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	users := userMap{"u1": {ID: "u1", Role: domain.Role("team_lead"), CompanyID: "acme", Active: true}}
	token, _, _ := tm.GenerateToken(users["u1"])

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := testApp(users, tm).Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := make([]byte, 64)
	n, _ := resp.Body.Read(body)
	if string(body[:n]) != "Team Lead|acme" {
		t.Fatalf("unexpected principal %q", body[:n])
	}
}

func TestMiddlewareRejections(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	users := userMap{
		"emp":      {ID: "emp", Role: domain.RoleEmployee, CompanyID: "acme", Active: true},
		"disabled": {ID: "disabled", Role: domain.RoleAdmin, CompanyID: "acme"},
	}
	empToken, _, _ := tm.GenerateToken(users["emp"])
	disabledToken, _, _ := tm.GenerateToken(users["disabled"])
	ghostToken, _, _ := tm.GenerateToken(&domain.User{ID: "ghost", Role: domain.RoleAdmin})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", fiber.StatusUnauthorized},
		{"bad scheme", "Basic abc", fiber.StatusUnauthorized},
		{"garbage token", "Bearer abc", fiber.StatusUnauthorized},
		{"unknown user", "Bearer " + ghostToken, fiber.StatusUnauthorized},
		{"disabled user", "Bearer " + disabledToken, fiber.StatusUnauthorized},
		{"role guard", "Bearer " + empToken, fiber.StatusForbidden},
	}
	app := testApp(users, tm, RequireAdministrator())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestPasswords(t *testing.T) {
	if _, err := HashPassword("short", bcrypt.MinCost); err == nil {
		t.Fatal("short passwords must be rejected")
	}
	hash, err := HashPassword("correct horse battery", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := ComparePassword(hash, "correct horse battery"); err != nil {
		t.Fatalf("ComparePassword: %v", err)
	}
	if err := ComparePassword(hash, "wrong horse battery"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
