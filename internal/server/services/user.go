// Package services contains server-side business logic. This file implements
// UserService, which handles registration and login and issues the signed
// session tokens carried by all authenticated requests.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/distrofy/backend/internal/common"
	"github.com/distrofy/backend/internal/server/auth"
	"github.com/distrofy/backend/internal/server/config"
	"github.com/distrofy/backend/internal/server/models"
	"github.com/distrofy/backend/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// UserService provides authentication-related operations:
// - Register: create accounts and mint the first session token
// - Login: verify credentials and mint tokens
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	bcryptCost                  int
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		bcryptCost:                  bcrypt.DefaultCost,
	}
}

// Register creates an account and returns it together with a session token.
// Duplicate emails yield common.ErrorAlreadyExists (enforced by the storage
// uniqueness constraint, so concurrent registrations cannot both succeed).
func (s *UserService) Register(ctx context.Context, name, email, password, role string) (*models.User, string, error) {
	if err := validateRegistration(name, email, password, role); err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, "", common.ErrorInternal
	}

	user := &models.User{
		Name:         name,
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
		Role:         role,
	}

	repo := s.repomanager.Users(s.db)
	user, err = repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, "", common.ErrorAlreadyExists
		}
		return nil, "", fmt.Errorf("error creating user: %w", err)
	}

	token, err := s.generateAccessToken(user)
	if err != nil {
		return nil, "", common.ErrorInternal
	}

	return user, token, nil
}

// Login verifies the password against the stored bcrypt hash and, on
// success, returns the account and a fresh session token. Unknown emails,
// wrong passwords and deactivated accounts are indistinguishable to the
// caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, "", common.ErrorUnauthorized
		}
		return nil, "", common.ErrorInternal
	}

	if !user.Active {
		return nil, "", common.ErrorUnauthorized
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", common.ErrorUnauthorized
	}

	token, err := s.generateAccessToken(user)
	if err != nil {
		return nil, "", common.ErrorInternal
	}

	return user, token, nil
}

func (s *UserService) generateAccessToken(user *models.User) (string, error) {
	return auth.GenerateToken(user.ID, user.Email, user.Role, s.jwtSecret, s.accessTokenValidityDuration)
}

func validateRegistration(name, email, password, role string) error {
	if name == "" || email == "" || !strings.Contains(email, "@") {
		return common.ErrorValidation
	}
	if len(password) < minPasswordLength {
		return common.ErrorValidation
	}
	if !models.ValidRole(role) {
		return common.ErrorValidation
	}
	return nil
}
