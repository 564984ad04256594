package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"todoweb/internal/auth"
	"todoweb/internal/config"
	"todoweb/internal/handlers"
	"todoweb/internal/middleware"
	"todoweb/internal/repository"
	"todoweb/internal/service"
	"todoweb/internal/web"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Todos    *service.TodoService
	Users    *service.UserService
	Events   repository.EventRepo
	Sessions auth.SessionStore
	Flashes  auth.FlashStore
	Cfg      *config.Config
}

// Router builds the gin engine: server-rendered pages under /todo and /auth,
// the JSON surface under /api, and health probes.
func Router(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())
	router.SetHTMLTemplate(web.Templates())

	// Health for load balancers and K8s probes
	router.GET("/health", handlers.Health)
	router.GET("/ready", handlers.Ready)

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/todo/")
	})

	cookieMaxAge := int(d.Cfg.SessionTTL / time.Second)
	authHandler := handlers.NewAuthHandler(d.Sessions, d.Users, d.Flashes, cookieMaxAge, d.Cfg.CookieSecure)
	ag := router.Group("/auth")
	{
		ag.GET("/login", authHandler.LoginForm)
		ag.POST("/login", authHandler.Login)
		ag.GET("/register", authHandler.RegisterForm)
		ag.POST("/register", authHandler.Register)
		ag.POST("/logout", authHandler.Logout)
	}

	todoHandler := handlers.NewTodoHandler(d.Todos, d.Flashes)
	tg := router.Group("/todo")
	tg.Use(middleware.RequireSession(d.Sessions))
	{
		tg.GET("/", todoHandler.Index)
		tg.GET("/search", todoHandler.Search)
		tg.GET("/create", todoHandler.CreateForm)
		tg.POST("/create", todoHandler.Create)
		tg.GET("/:id/update", todoHandler.UpdateForm)
		tg.POST("/:id/update", todoHandler.Update)
		tg.POST("/:id/delete", todoHandler.Delete)
	}

	apiHandler := handlers.NewAPIHandler(d.Todos, d.Users, d.Events, d.Cfg.JWTSecret, d.Cfg.APITokenTTL)
	api := router.Group("/api")
	api.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	api.POST("/token", apiHandler.Token)
	protected := api.Group("", middleware.RequireAPIToken(d.Cfg.JWTSecret))
	{
		protected.GET("/todos", apiHandler.ListTodos)
		protected.GET("/activity", apiHandler.Activity)
	}

	return router
}
