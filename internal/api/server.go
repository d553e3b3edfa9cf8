package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"todohub/internal/api/auth"
	"todohub/internal/api/middleware"
	"todohub/internal/api/respond"
	"todohub/internal/config"
	"todohub/internal/model"
	"todohub/internal/pkg/metrics"
	"todohub/internal/pkg/ratelimit"
	"todohub/internal/pkg/tokenblock"
	"todohub/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接、Redis 客户端以及 Gin 路由引擎。
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *gorm.DB
	rdb     *redis.Client
	router  *gin.Engine
	auth    *auth.Handler
	todos   TodoStore
	limiter *ratelimit.Limiter
}

// TodoStore 是任务持久化与查询的抽象，便于 handler 单测替换。
type TodoStore interface {
	Create(ctx context.Context, todo *model.Todo) error
	List(ctx context.Context, userID uint, f store.TodoFilter) (*store.TodoPage, error)
	GetOwned(ctx context.Context, userID, todoID uint) (*model.Todo, error)
	Save(ctx context.Context, todo *model.Todo) error
	DeleteOwned(ctx context.Context, userID, todoID uint) error
	Stats(ctx context.Context, userID uint) (*store.TodoStats, error)
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis
// 3. 初始化 Gin 路由引擎与中间件
//
// 参数:
//
//	ctx: 上下文
//	cfg: 配置对象
//	logger: 日志记录器
//
// 返回值:
//
//	*Server: 初始化完成的服务器实例
//	error: 初始化失败返回错误
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
		TranslateError: true,                                          // 唯一键冲突翻译为 gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Todo{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	metrics.InitMetrics()
	respond.SetupValidator()

	blocklist := tokenblock.New(rdb)
	limiter := ratelimit.NewRedisLimiter(rdb, "todohub:ratelimit:auth:", cfg.App.RateLimit, cfg.App.RateBurst)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		rdb:     rdb,
		router:  r,
		auth:    auth.NewHandler(db, cfg.Security.JWTSecret, cfg.App.TokenTTL, blocklist, logger),
		todos:   store.NewTodos(db),
		limiter: limiter,
	}
	s.registerRoutes(blocklist)
	return s, nil
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 关闭数据库与缓存连接。
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			if closeErr := sqlDB.Close(); closeErr != nil {
				if firstErr == nil {
					firstErr = closeErr
				}
			}
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes(blocklist *tokenblock.Blocklist) {
	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/health", s.handleHealth)

	requireAuth := middleware.AuthMiddleware(s.cfg.Security.JWTSecret, blocklist)
	guard := middleware.RateLimit(s.limiter, s.logger)

	v1 := s.router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", guard, s.auth.Register)
	authGroup.POST("/login", guard, s.auth.Login)
	authGroup.GET("/profile", requireAuth, s.auth.Profile)
	authGroup.PATCH("/profile", requireAuth, s.auth.UpdateProfile)
	authGroup.PATCH("/change-password", requireAuth, s.auth.ChangePassword)
	authGroup.POST("/logout", requireAuth, s.auth.Logout)

	todos := v1.Group("/todos")
	todos.Use(requireAuth)
	todos.GET("", s.handleListTodos)
	todos.POST("", s.handleCreateTodo)
	todos.GET("/stats", s.handleTodoStats)
	todos.GET("/:id", s.handleGetTodo)
	todos.PATCH("/:id", s.handleUpdateTodo)
	todos.DELETE("/:id", s.handleDeleteTodo)
	todos.PATCH("/:id/toggle", s.handleToggleTodo)

	s.router.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, fmt.Sprintf("Cannot %s %s", c.Request.Method, c.Request.URL.Path))
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		respond.Error(c, http.StatusServiceUnavailable, "Server is not ready")
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		respond.Error(c, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		respond.Error(c, http.StatusServiceUnavailable, "Redis unavailable")
		return
	}

	respond.Data(c, http.StatusOK, "Server is running", gin.H{
		"timestamp":   time.Now().Format(time.RFC3339),
		"environment": s.cfg.App.Env,
	})
}
