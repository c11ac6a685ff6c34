package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/roksva123/go-devops-report/internal/model"
)

const tokenTTL = 12 * time.Hour

var (
	ErrInvalidCredentials = errors.New("username or password is incorrect")
	ErrAuthDisabled       = errors.New("authentication is not configured")
)

// AdminStore looks admins up by username.
type AdminStore interface {
	GetAdminByUsername(ctx context.Context, username string) (*model.Admin, error)
}

type AuthService struct {
	admins AdminStore
	jwtKey []byte
	now    func() time.Time
}

func NewAuthService(admins AdminStore, jwtKey string) *AuthService {
	return &AuthService{admins: admins, jwtKey: []byte(jwtKey), now: time.Now}
}

// Login checks the password against the stored bcrypt hash and issues an
// HS256 token valid for 12 hours.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	if len(s.jwtKey) == 0 || s.admins == nil {
		return "", ErrAuthDisabled
	}
	admin, err := s.admins.GetAdminByUsername(ctx, username)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      admin.ID,
		"username": admin.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(tokenTTL).Unix(),
	})
	return token.SignedString(s.jwtKey)
}
