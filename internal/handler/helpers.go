package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mtodo/internal/middleware"
	"github.com/xxxsen/mtodo/internal/model"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
	"github.com/xxxsen/mtodo/internal/pkg/response"
)

func getUserID(c *gin.Context) int64 {
	return c.GetInt64(middleware.ContextUserIDKey)
}

func getUser(c *gin.Context) *model.User {
	user, _ := middleware.UserFromContext(c)
	return user
}

func invalidRequest(c *gin.Context, msg string) {
	handleError(c, appErr.Invalid(msg))
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, code, msg := classify(err)
	fields := []zap.Field{
		zap.String("request_id", middleware.RequestIDFromContext(c)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int64("user_id", getUserID(c)),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logutil.GetLogger(c.Request.Context()).Error("request failed", fields...)
	} else {
		logutil.GetLogger(c.Request.Context()).Debug("request rejected", fields...)
	}
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	response.Error(c, status, code, msg)
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, appErr.ErrInvalid):
		return http.StatusUnprocessableEntity, "invalid", err.Error()
	case errors.Is(err, appErr.ErrInvalidCredentials):
		return http.StatusBadRequest, "invalid_credentials", appErr.ErrInvalidCredentials.Error()
	case errors.Is(err, appErr.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated", appErr.ErrInvalidToken.Error()
	case errors.Is(err, appErr.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, appErr.ErrConflict):
		return http.StatusConflict, "conflict", "email already registered"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
