package repository

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/roksva123/go-devops-report/internal/model"
)

// StaticAdminStore serves the single admin configured through the
// environment when no database is available.
type StaticAdminStore struct {
	admin model.Admin
}

// NewStaticAdminStore hashes password once at startup.
func NewStaticAdminStore(username, password string) (*StaticAdminStore, error) {
	if username == "" || password == "" {
		return nil, errors.New("admin username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &StaticAdminStore{admin: model.Admin{
		ID:           "static-admin",
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}}, nil
}

func (s *StaticAdminStore) GetAdminByUsername(_ context.Context, username string) (*model.Admin, error) {
	if username != s.admin.Username {
		return nil, ErrAdminNotFound
	}
	a := s.admin
	return &a, nil
}
