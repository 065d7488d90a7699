package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mtodo/internal/middleware"
)

type RouterDeps struct {
	Auth     *AuthHandler
	Todos    *TodoHandler
	Health   *HealthHandler
	Identity middleware.IdentityResolver
}

// Register mounts the root endpoint on root and the API under prefix.
func Register(root *gin.RouterGroup, prefix string, deps RouterDeps) {
	root.GET("/", deps.Health.Root)
	RegisterRoutes(root.Group(prefix), deps)
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/health", deps.Health.Health)

	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)
	api.POST("/auth/refresh", deps.Auth.Refresh)
	api.POST("/auth/logout", deps.Auth.Logout)

	authGroup := api.Group("")
	authGroup.Use(middleware.Authenticate(deps.Identity))
	authGroup.GET("/auth/me", deps.Auth.Me)

	authGroup.GET("/todos", deps.Todos.List)
	authGroup.POST("/todos", deps.Todos.Create)
	authGroup.PATCH("/todos/:id", deps.Todos.Update)
	authGroup.DELETE("/todos/:id", deps.Todos.Delete)
}
