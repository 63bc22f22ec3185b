package services

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mediarank/mediarank/internal/models"
)

type AuthStore interface {
	FindAdminByUsername(username string) (*models.Admin, error)
}

// TokenSigner issues a bearer token for an authenticated admin. The
// JWT mechanics live in the middleware package; the service only
// consumes the signing outcome.
type TokenSigner func(username string, superAdmin bool, ttl time.Duration) (string, error)

type AuthService struct {
	store     AuthStore
	signToken TokenSigner
	activity  ActivityRecorder
	tokenTTL  time.Duration
}

type LoginResult struct {
	Token      string `json:"token"`
	SuperAdmin bool   `json:"is_super_admin"`
}

func NewAuthService(store AuthStore, signer TokenSigner, activity ActivityRecorder) *AuthService {
	return &AuthService{
		store:     store,
		signToken: signer,
		activity:  activity,
		tokenTTL:  24 * time.Hour,
	}
}

func (s *AuthService) Login(username, password string, meta *RequestMeta) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, NewInvalidError("username/password required")
	}
	admin, err := s.store.FindAdminByUsername(username)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(admin.PasswordHash, []byte(password)); err != nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if s.signToken == nil {
		return nil, NewInvalidError("token signer not configured")
	}
	token, err := s.signToken(admin.Username, admin.SuperAdmin, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	actor := Actor{Username: admin.Username, SuperAdmin: admin.SuperAdmin}
	s.activity.Record(ActionLogin, &actor, "", EntityAdmin, admin.ID, nil, meta)
	return &LoginResult{Token: token, SuperAdmin: admin.SuperAdmin}, nil
}

func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}
