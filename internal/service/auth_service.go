package service

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mtodo/internal/model"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
	"github.com/xxxsen/mtodo/internal/pkg/jwt"
	"github.com/xxxsen/mtodo/internal/pkg/password"
)

const (
	TokenTypeBearer   = "bearer"
	minPasswordLength = 6
	// bcrypt rejects longer inputs
	maxPasswordBytes = 72
	maxNameLength     = 255
	maxEmailLength    = 255
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type LoginResult struct {
	TokenPair
	User model.UserView `json:"user"`
}

// AuthService is the only place tokens are minted.
type AuthService struct {
	users UserStore
	codec *jwt.Codec
	now   func() time.Time
}

func NewAuthService(users UserStore, codec *jwt.Codec) *AuthService {
	return &AuthService{users: users, codec: codec, now: time.Now}
}

// Register creates the account without issuing tokens.
func (s *AuthService) Register(ctx context.Context, email string, name *string, plainPassword string) (*model.User, error) {
	if err := validateRegistration(email, name, plainPassword); err != nil {
		return nil, err
	}
	// fast path only, the unique index settles races
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, appErr.ErrConflict
	} else if !appErr.IsNotFound(err) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	hash, err := password.Hash(plainPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().Unix()
	user := &model.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if appErr.IsConflict(err) {
			return nil, appErr.ErrConflict
		}
		return nil, err
	}
	logutil.GetLogger(ctx).Info("user registered", zap.Int64("user_id", user.ID))
	return user, nil
}

// Login answers ErrInvalidCredentials for both an unknown email and a wrong
// password, after the same amount of bcrypt work.
func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (*LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !appErr.IsNotFound(err) {
			return nil, fmt.Errorf("lookup email: %w", err)
		}
		_ = password.CompareDummy(plainPassword)
		return nil, appErr.ErrInvalidCredentials
	}
	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		return nil, appErr.ErrInvalidCredentials
	}
	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{TokenPair: *pair, User: user.View()}, nil
}

// Refresh trades a valid refresh token for a new pair. The subject must
// still exist.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.codec.Decode(refreshToken, jwt.TokenTypeRefresh)
	if err != nil {
		return nil, appErr.ErrUnauthenticated
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, appErr.ErrUnauthenticated
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.ErrUnauthenticated
		}
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	return s.issuePair(userID)
}

// Logout has nothing to invalidate: tokens are stateless and clients drop
// them on their side.
func (s *AuthService) Logout(ctx context.Context) error {
	return nil
}

func (s *AuthService) issuePair(userID int64) (*TokenPair, error) {
	now := s.now()
	subject := strconv.FormatInt(userID, 10)
	access, err := s.mint(subject, jwt.TokenTypeAccess, now)
	if err != nil {
		return nil, err
	}
	refresh, err := s.mint(subject, jwt.TokenTypeRefresh, now)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: TokenTypeBearer}, nil
}

func (s *AuthService) mint(subject string, typ jwt.TokenType, now time.Time) (string, error) {
	claims := s.codec.NewClaims(subject, typ, now)
	claims.ID = uuid.NewString()
	token, err := s.codec.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return token, nil
}

func validateRegistration(email string, name *string, plainPassword string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if name != nil && utf8.RuneCountInString(*name) > maxNameLength {
		return appErr.Invalid("name is too long")
	}
	if utf8.RuneCountInString(plainPassword) < minPasswordLength {
		return appErr.Invalid(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(plainPassword) > maxPasswordBytes {
		return appErr.Invalid(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}

// ValidateEmail accepts a bare address such as "alice@example.com".
func ValidateEmail(email string) error {
	if email == "" || len(email) > maxEmailLength || strings.TrimSpace(email) != email {
		return appErr.Invalid("invalid email")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return appErr.Invalid("invalid email")
	}
	return nil
}

