package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/coinduel/backend/internal/api/handlers"
	"github.com/coinduel/backend/internal/auth"
	"github.com/coinduel/backend/internal/config"
	"github.com/coinduel/backend/internal/game"
	"github.com/coinduel/backend/internal/ws"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *sqlx.DB, cfg *config.Config, svc *game.Service, hub *ws.Hub) {
	// CORS middleware for the web client
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] Aggressive no-cache headers enabled for all routes")
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		// Auth
		v1.POST("/auth/register", handlers.Register(db, cfg))
		v1.POST("/auth/login", handlers.Login(db, cfg))

		// Everything below requires a session token
		authed := v1.Group("")
		authed.Use(auth.Middleware(cfg))
		{
			authed.GET("/auth/me", handlers.Me(db))

			// Live event stream
			authed.GET("/ws", handlers.HandleWebSocket(hub))

			// 1:1 coin flip
			gameGroup := authed.Group("/game")
			{
				gameGroup.POST("/queue", handlers.SubmitChoice(svc))
				gameGroup.GET("/queue/:id", handlers.QueueStatus(svc))
				gameGroup.DELETE("/queue/:id", handlers.CancelQueue(svc))
				gameGroup.GET("/session/:id", handlers.GetSession(svc))
				gameGroup.POST("/session/:id/flip", handlers.Flip(svc))
				gameGroup.POST("/session/:id/settle", handlers.Settle(svc))
				gameGroup.GET("/history", handlers.GameHistory(db))
			}

			// Multiplayer pool
			pool := authed.Group("/pool")
			{
				pool.GET("/round", handlers.CurrentRound(svc))
				pool.POST("/round/:id/bet", handlers.PlacePoolBet(svc))
				pool.POST("/round/:id/complete", handlers.CompleteRound(svc))
				pool.GET("/rounds", handlers.RoundHistory(db))
				pool.GET("/bets", handlers.MyPoolBets(db))
			}

			// Wallet
			walletGroup := authed.Group("/wallet")
			{
				walletGroup.GET("", handlers.GetWallet(db))
				walletGroup.GET("/transactions", handlers.Transactions(db))
				walletGroup.POST("/deposit/order", handlers.CreateDepositOrder(cfg))
				walletGroup.POST("/deposit/verify", handlers.VerifyDeposit(db, cfg))
				walletGroup.POST("/withdraw", handlers.RequestWithdrawal(db))
				walletGroup.POST("/bonus/claim", handlers.ClaimDailyBonus(db, cfg))
			}

			// Stats
			authed.GET("/stats", handlers.MyStats(db))
			authed.GET("/leaderboard", handlers.Leaderboard(db))
		}
	}
}
