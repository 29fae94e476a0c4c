package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
	RoleDownload Role = "download"
)

// Session is the explicit proof of a login. Privileged operations take one
// instead of looking at request state.
type Session struct {
	Id   string
	Role Role
	// Customer and download sessions are bound to one order
	OrderId uuid.UUID
	// Customer email or admin username
	Subject string
	// Download sessions unlock one product
	ProductId string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (s *Session) require(role Role) (err error) {
	if s == nil || s.Role != role {
		return fmt.Errorf("%w: %s session required", ErrUnauthorized, role)
	}
	return nil
}

func (s *Session) RequireAdmin() (err error) {
	return s.require(RoleAdmin)
}

func (s *Session) RequireCustomer() (err error) {
	return s.require(RoleCustomer)
}

// RequireDownload checks the session unlocks productId
func (s *Session) RequireDownload(productId string) (err error) {
	err = s.require(RoleDownload)
	if err != nil {
		return err
	}
	if s.ProductId != productId {
		return fmt.Errorf("%w: token is for another product", ErrUnauthorized)
	}
	return nil
}
