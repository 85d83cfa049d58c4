// Package http wires the gin router for the gatekeeper service.
package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/blocchat/gatekeeper/service"
)

// SetupRouter builds the gin engine with all routes and middleware.
func SetupRouter(
	auth *service.AuthService,
	gates *service.GateService,
	db *gorm.DB,
	allowedOrigins []string,
	log zerolog.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))

	if len(allowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     allowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			AllowCredentials: true,
			MaxAge:           time.Hour,
		}))
	}

	authHandlers := NewAuthHandlers(auth)
	gateHandlers := NewGateHandlers(gates)
	healthHandler := NewHealthHandler(db)

	api := router.Group("/api")
	{
		api.GET("/health", healthHandler.Health)

		admin := api.Group("/admin")
		{
			admin.POST("/nonce", authHandlers.Nonce)
			admin.POST("/auth", authHandlers.Authenticate)
			admin.GET("/check", authHandlers.Check)
			admin.POST("/logout", authHandlers.Logout)
		}

		tokenGates := api.Group("/token-gates")
		{
			// Verification is public: conversation membership checks run for
			// any wallet, not only admins.
			tokenGates.POST("/verify", gateHandlers.Verify)

			managed := tokenGates.Group("/conversations", RequireSession(auth))
			{
				managed.POST("/:conversation_id", gateHandlers.Replace)
				managed.GET("/:conversation_id", gateHandlers.Get)
				managed.DELETE("/:conversation_id", gateHandlers.Delete)
			}
		}
	}

	return router
}
