package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mtodo/internal/model"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
	"github.com/xxxsen/mtodo/internal/pkg/response"
)

const (
	ContextUserIDKey = "user_id"
	ContextUserKey   = "user"
)

type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*model.User, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// Authenticate resolves the bearer token to a user and stores it in the
// context. A missing or malformed header is handled like an invalid token.
func Authenticate(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := BearerToken(c.GetHeader("Authorization"))
		user, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, appErr.ErrUnauthenticated) {
				c.Header("WWW-Authenticate", "Bearer")
				response.Abort(c, http.StatusUnauthorized, "unauthenticated", appErr.ErrInvalidToken.Error())
				return
			}
			logutil.GetLogger(c.Request.Context()).Error("resolve identity failed",
				zap.String("request_id", RequestIDFromContext(c)),
				zap.Error(err))
			response.Abort(c, http.StatusInternalServerError, "internal", "internal error")
			return
		}
		c.Set(ContextUserIDKey, user.ID)
		c.Set(ContextUserKey, user)
		c.Next()
	}
}

func UserFromContext(c *gin.Context) (*model.User, bool) {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*model.User)
	return user, ok && user != nil
}
