package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-dispatch/internal/audit"
	"github.com/spec-kit/helpdesk-dispatch/internal/auth"
	"github.com/spec-kit/helpdesk-dispatch/internal/clock"
	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
	"github.com/spec-kit/helpdesk-dispatch/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-dispatch/pkg/util"
)

// AuthService handles login and the one-time privileged bootstrap.
type AuthService struct {
	users          repository.UserRepository
	tokens         *auth.TokenManager
	auditor        Auditor
	bcryptCost     int
	bootstrapToken string
	clock          clock.Clock
	logger         *zap.Logger
}

// AuthDependencies bundles collaborators for the auth service.
type AuthDependencies struct {
	UserRepo       repository.UserRepository
	Tokens         *auth.TokenManager
	Auditor        Auditor
	BcryptCost     int
	BootstrapToken string
	Clock          clock.Clock
	Logger         *zap.Logger
}

// BootstrapInput describes the first System Admin.
type BootstrapInput struct {
	Token     string
	Name      string
	Email     string
	Password  string
	CompanyID string
	IPAddress string
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &AuthService{
		users:          deps.UserRepo,
		tokens:         deps.Tokens,
		auditor:        deps.Auditor,
		bcryptCost:     deps.BcryptCost,
		bootstrapToken: deps.BootstrapToken,
		clock:          clk,
		logger:         logger,
	}
}

// Login verifies credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.Active {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("account disabled")
	}
	token, exp, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, exp, nil
}

// Bootstrap creates the first System Admin. It requires the configured setup
// token and refuses to run once any System Admin exists.
func (s *AuthService) Bootstrap(ctx context.Context, input BootstrapInput) (*domain.User, error) {
	if s.bootstrapToken == "" {
		return nil, apperrors.NewForbidden("bootstrap is disabled: BOOTSTRAP_TOKEN is not set")
	}
	if subtle.ConstantTimeCompare([]byte(input.Token), []byte(s.bootstrapToken)) != 1 {
		return nil, apperrors.NewForbidden("invalid setup token")
	}

	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	companyID := strings.TrimSpace(input.CompanyID)
	details := map[string]any{}
	if name == "" {
		details["name"] = "required"
	}
	if _, err := mail.ParseAddress(email); err != nil {
		details["email"] = "invalid"
	}
	if companyID == "" {
		details["company"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid bootstrap input", details)
	}

	existing, err := s.users.CountByRole(ctx, domain.RoleSystemAdmin)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if existing > 0 {
		return nil, apperrors.NewConflict("a System Admin already exists", nil)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error(), nil)
	}
	now := s.clock.Now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleSystemAdmin,
		CompanyID:    companyID,
		DutyStatus:   domain.DutyOffline,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("system admin bootstrapped", zap.String("user_id", user.ID), zap.String("company_id", companyID))
	if s.auditor != nil {
		s.auditor.Record(ctx, audit.Record{
			Action:       domain.AuditSystemBootstrapped,
			Actor:        domain.ActorFromUser(user, input.IPAddress, "bootstrap"),
			TargetUserID: &user.ID,
			CompanyID:    companyID,
			Metadata:     map[string]any{"email": email},
		})
	}
	return user, nil
}
