package handlers

import (
	"github.com/gin-gonic/gin"

	"cardtalk/api/logger"
	"cardtalk/api/metrics"
	"cardtalk/api/middleware"
	"cardtalk/api/services"
)

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Auth      *services.Auth
	Recorder  *services.Recorder
	Counters  *services.Counters
	Reviews   *services.Reviews
	Catalog   *services.Catalog
	Analytics *services.Analytics
	DB        Pinger

	JWTSecret      []byte
	SecureCookies  bool
	FrontendOrigin string
	Log            *logger.Logger
}

func NewRouter(d Deps) *gin.Engine {
	authHandlers := NewAuthHandlers(d.Auth, d.JWTSecret, d.SecureCookies, d.Log)
	trackHandlers := NewTrackHandlers(d.Recorder, d.Analytics, d.Log)
	categoryHandlers := NewCategoryHandlers(d.Catalog, d.Counters, d.Log)
	questionHandlers := NewQuestionHandlers(d.Catalog, d.Log)
	reviewHandlers := NewReviewHandlers(d.Reviews, d.Log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(metrics.Middleware())
	r.Use(middleware.CORSMiddleware(d.FrontendOrigin))

	r.GET("/healthz", Health(d.DB))
	r.GET("/metrics", metrics.Handler())

	adminOnly := middleware.AdminRequired(d.JWTSecret)
	memberOnly := middleware.MemberRequired(d.JWTSecret)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandlers.AdminLogin)
			auth.POST("/logout", authHandlers.AdminLogout)
			auth.GET("/me", adminOnly, authHandlers.AdminMe)
		}

		members := api.Group("/members")
		{
			members.POST("/register", authHandlers.MemberRegister)
			members.POST("/login", authHandlers.MemberLogin)
			members.POST("/logout", authHandlers.MemberLogout)
			members.GET("/me", memberOnly, authHandlers.MemberMe)
		}

		categories := api.Group("/categories")
		{
			categories.GET("", categoryHandlers.List)
			categories.GET("/:id", categoryHandlers.Get)
			categories.POST("/:id/play", categoryHandlers.Play)
			categories.POST("/:id/complete", categoryHandlers.Complete)
			categories.GET("/:id/reviews", reviewHandlers.List)
			categories.POST("/:id/reviews", memberOnly, reviewHandlers.Submit)
		}

		api.GET("/questions", questionHandlers.List)
		api.POST("/questions/track", middleware.OptionalMember(d.JWTSecret), trackHandlers.TrackInteraction)

		admin := api.Group("/admin")
		admin.Use(adminOnly)
		{
			admin.GET("/categories/stats", categoryHandlers.Stats)
			admin.POST("/categories", categoryHandlers.Create)
			admin.PUT("/categories/:id", categoryHandlers.Update)
			admin.DELETE("/categories/:id", categoryHandlers.Delete)

			admin.POST("/questions", questionHandlers.Create)
			admin.POST("/questions/batch", questionHandlers.BatchImport)
			admin.DELETE("/questions/batch", questionHandlers.BatchDelete)
			admin.PUT("/questions/:id", questionHandlers.Update)
			admin.DELETE("/questions/:id", questionHandlers.Delete)

			admin.DELETE("/reviews/:categoryId/:reviewId", reviewHandlers.Delete)
			admin.GET("/analytics/questions", trackHandlers.GetQuestionAnalytics)
		}
	}
	return r
}
