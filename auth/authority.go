package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultSessionTTL  = 24 * time.Hour
	DefaultDownloadTTL = 24 * time.Hour
)

type claims struct {
	Role      Role   `json:"role"`
	OrderId   string `json:"oid,omitempty"`
	ProductId string `json:"pid,omitempty"`
	jwt.RegisteredClaims
}

type Config struct {
	// HMAC key signing every token
	Secret []byte
	// Admin credentials, the password as a bcrypt hash
	AdminUsername     string
	AdminPasswordHash string
	// Defaults to DefaultSessionTTL
	SessionTTL time.Duration
	// Defaults to DefaultDownloadTTL
	DownloadTTL time.Duration
	// Defaults to an in memory revoker
	Revoker Revoker
	Now     func() time.Time
}

// Authority issues and verifies session tokens
type Authority struct {
	secret        []byte
	adminUsername string
	adminHash     []byte
	sessionTTL    time.Duration
	downloadTTL   time.Duration
	revoker       Revoker
	now           func() time.Time
}

func New(config Config) (a *Authority, err error) {
	if len(config.Secret) < 32 {
		return nil, errors.New("session secret must be at least 32 bytes")
	}
	a = &Authority{
		secret:        config.Secret,
		adminUsername: config.AdminUsername,
		adminHash:     []byte(config.AdminPasswordHash),
		sessionTTL:    config.SessionTTL,
		downloadTTL:   config.DownloadTTL,
		revoker:       config.Revoker,
		now:           config.Now,
	}
	if a.sessionTTL <= 0 {
		a.sessionTTL = DefaultSessionTTL
	}
	if a.downloadTTL <= 0 {
		a.downloadTTL = DefaultDownloadTTL
	}
	if a.revoker == nil {
		a.revoker = NewMemoryRevoker()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

// HashPassword returns the bcrypt hash stored in the configuration
func HashPassword(password string) (hash string, err error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// AdminLogin checks the admin credentials and opens an admin session
func (a *Authority) AdminLogin(username, password string) (token string, session Session, err error) {
	if a.adminUsername == "" || len(a.adminHash) == 0 {
		return "", session, fmt.Errorf("%w: admin login disabled", ErrInvalidCredentials)
	}

	usernameOk := subtle.ConstantTimeCompare([]byte(username), []byte(a.adminUsername)) == 1
	passwordErr := bcrypt.CompareHashAndPassword(a.adminHash, []byte(password))
	if !usernameOk || passwordErr != nil {
		return "", session, ErrInvalidCredentials
	}

	return a.Issue(Session{Role: RoleAdmin, Subject: username})
}

// CustomerLogin opens a customer session for an order the caller already
// verified belongs to email
func (a *Authority) CustomerLogin(orderId uuid.UUID, email string) (token string, session Session, err error) {
	return a.Issue(Session{Role: RoleCustomer, OrderId: orderId, Subject: email})
}

// DownloadToken grants access to the download of productId for a while
func (a *Authority) DownloadToken(orderId uuid.UUID, productId string) (token string, session Session, err error) {
	return a.Issue(Session{Role: RoleDownload, OrderId: orderId, ProductId: productId})
}

// Issue signs session, filling its id and validity
func (a *Authority) Issue(session Session) (token string, issued Session, err error) {
	ttl := a.sessionTTL
	if session.Role == RoleDownload {
		ttl = a.downloadTTL
	}

	now := a.now().UTC().Truncate(time.Second)
	session.Id = uuid.NewString()
	session.IssuedAt = now
	session.ExpiresAt = now.Add(ttl)

	c := &claims{
		Role:      session.Role,
		ProductId: session.ProductId,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.Id,
			Subject:   session.Subject,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	if session.OrderId != uuid.Nil {
		c.OrderId = session.OrderId.String()
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.secret)
	if err != nil {
		return "", issued, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, session, nil
}

// Parse verifies token and returns its session. Revoked or expired tokens
// fail with ErrInvalidToken.
func (a *Authority) Parse(ctx context.Context, token string) (session Session, err error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return session, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return session, ErrInvalidToken
	}

	session = Session{
		Id:        c.ID,
		Role:      c.Role,
		Subject:   c.Subject,
		ProductId: c.ProductId,
	}
	if c.IssuedAt != nil {
		session.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		session.ExpiresAt = c.ExpiresAt.Time
	}
	if c.OrderId != "" {
		session.OrderId, err = uuid.Parse(c.OrderId)
		if err != nil {
			return Session{}, fmt.Errorf("%w: bad order id", ErrInvalidToken)
		}
	}

	revoked, err := a.revoker.Revoked(ctx, session.Id)
	if err != nil {
		return Session{}, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return Session{}, fmt.Errorf("%w: revoked", ErrInvalidToken)
	}
	return session, nil
}

// Logout revokes session until it would have expired anyway
func (a *Authority) Logout(ctx context.Context, session Session) (err error) {
	if session.Id == "" {
		return nil
	}
	return a.revoker.Revoke(ctx, session.Id, session.ExpiresAt)
}
