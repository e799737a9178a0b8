// Package auth guards the rule-authoring surface. Consultations are
// public; only operators editing rules or priorities log in.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrAdminNotFound      = errors.New("admin not found")
)

// Admin is an operator account allowed to mutate the rule base.
type Admin struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Claims carries the admin identity inside a JWT.
type Claims struct {
	AdminID  string `json:"admin_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AdminRepository defines the interface for admin persistence.
type AdminRepository interface {
	Create(ctx context.Context, admin *Admin) error
	GetByUsername(ctx context.Context, username string) (*Admin, error)
}

// Service defines the authentication service interface.
type Service interface {
	Login(ctx context.Context, username, password string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	EnsureAdmin(ctx context.Context, username, password string) error
}

// Config holds authentication configuration.
type Config struct {
	SecretKey     string
	TokenDuration time.Duration
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		SecretKey:     "change-me-in-production",
		TokenDuration: 12 * time.Hour,
	}
}

// JWTService implements the Service interface.
type JWTService struct {
	config Config
	repo   AdminRepository
}

// NewJWTService creates a new JWT-based authentication service.
func NewJWTService(config Config, repo AdminRepository) *JWTService {
	return &JWTService{config: config, repo: repo}
}

// Login authenticates an admin and returns a signed token.
func (s *JWTService) Login(ctx context.Context, username, password string) (string, error) {
	admin, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return s.generateToken(admin)
}

// ValidateToken validates a JWT token and returns the claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.SecretKey), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// EnsureAdmin creates the admin account if it does not exist yet.
// Existing accounts are left untouched; passwords rotate through the
// database, not through startup configuration.
func (s *JWTService) EnsureAdmin(ctx context.Context, username, password string) error {
	existing, _ := s.repo.GetByUsername(ctx, username)
	if existing != nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return s.repo.Create(ctx, &Admin{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	})
}

func (s *JWTService) generateToken(admin *Admin) (string, error) {
	claims := &Claims{
		AdminID:  admin.ID,
		Username: admin.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.config.TokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.SecretKey))
}
