package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mtodo/internal/model"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
	"github.com/xxxsen/mtodo/internal/pkg/jwt"
)

// IdentityService resolves a presented access token to the user it names.
// It has no side effects.
type IdentityService struct {
	users UserStore
	codec *jwt.Codec
}

func NewIdentityService(users UserStore, codec *jwt.Codec) *IdentityService {
	return &IdentityService{users: users, codec: codec}
}

// Resolve returns ErrUnauthenticated for a missing or unverifiable token and
// for a subject that no longer exists. Store failures are returned as-is.
func (s *IdentityService) Resolve(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, appErr.ErrUnauthenticated
	}
	claims, err := s.codec.Decode(token, jwt.TokenTypeAccess)
	if err != nil {
		return nil, appErr.ErrUnauthenticated
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, appErr.ErrUnauthenticated
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if appErr.IsNotFound(err) {
			logutil.GetLogger(ctx).Info("token subject not found", zap.Int64("user_id", userID))
			return nil, appErr.ErrUnauthenticated
		}
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	return user, nil
}
