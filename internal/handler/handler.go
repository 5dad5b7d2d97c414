package handler

import (
	"database/sql"
	"net/http"

	"blog_api/internal/auth"
	"blog_api/internal/cache"
	"blog_api/internal/config"
	"blog_api/internal/middleware"
	"blog_api/internal/observability"
	"blog_api/internal/post"
	"blog_api/internal/queue"
	"blog_api/internal/upload"
	"blog_api/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Dependencies are the connections and collectors the API is built on.
type Dependencies struct {
	DB       *sql.DB
	Conn     *amqp.Connection
	Redis    *redis.Client
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
	Config   *config.Config
}

// SetupHandler initializes all dependencies and routes
func SetupHandler(deps Dependencies) (*gin.Engine, error) {
	cfg := deps.Config

	storage, err := upload.NewStorage(cfg.Upload.Dir, cfg.Upload.MaxBytes)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.PrometheusMiddleware(deps.Metrics))
	r.Use(middleware.CORSMiddleware(cfg.HTTP.BaseURL))
	r.MaxMultipartMemory = cfg.Upload.MaxBytes

	tokens := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.TTL)
	denylist := cache.NewTokenDenylist(deps.Redis)

	// Initialize repositories
	userRepo := user.NewUserRepository()
	postRepo := post.NewPostRepository()

	// Initialize services
	userService := user.NewUserService(
		userRepo,
		deps.DB,
		auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		tokens,
		denylist,
		deps.Metrics,
	)
	postService := post.NewPostService(
		postRepo,
		deps.DB,
		storage,
		cache.NewPostCache(deps.Redis),
		queue.NewPublisher(deps.Conn, cfg.RabbitMQ.Queue, deps.Metrics),
		deps.Metrics,
	)

	// Initialize controllers
	userController := user.NewUserController(userService, cfg.HTTP.CookieSecure)
	postController := post.NewPostController(postService)

	session := middleware.SessionMiddleware(tokens, denylist)
	setupRoutes(r, userController, postController, session, deps.Redis)

	r.Static("/uploads", storage.Dir())
	r.GET("/healthz", healthCheck(deps.DB, deps.Redis, deps.Conn))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	return r, nil
}

// setupRoutes configures all application routes
func setupRoutes(
	r *gin.Engine,
	userCtrl *user.UserController,
	postCtrl *post.PostController,
	session gin.HandlerFunc,
	redisClient *redis.Client,
) {
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, "test ok")
	})

	// Public routes - Authentication
	credentials := middleware.RateLimiterMiddleware(redisClient, middleware.StrictRateLimiter(), middleware.ClientIPKey)
	r.POST("/register", credentials, userCtrl.Register)
	r.POST("/login", credentials, userCtrl.Login)
	r.POST("/logout", userCtrl.Logout)

	r.GET("/profile", session, userCtrl.Profile)

	// Public reads
	r.GET("/post", postCtrl.ListPosts)
	r.GET("/post/:id", postCtrl.GetPost)

	// Authenticated writes
	writes := middleware.RateLimiterMiddleware(redisClient, middleware.ConservativeRateLimiter(), middleware.UserKey)
	r.POST("/post", session, writes, postCtrl.CreatePost)
	r.PUT("/post", session, writes, postCtrl.UpdatePost)
}
