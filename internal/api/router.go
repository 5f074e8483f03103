// internal/api/router.go
package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/amusedev/amuse/internal/config"
	"github.com/amusedev/amuse/internal/di"
	"github.com/amusedev/amuse/internal/services"
	"github.com/amusedev/amuse/internal/session"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	// 获取依赖注入容器
	container := di.GetContainer()

	// 只从容器获取服务，不再创建新实例
	novelService, ok := container.Get(di.ServiceNovel).(*services.NovelService)
	if !ok {
		return nil, fmt.Errorf("小说服务未正确初始化")
	}

	sceneService, ok := container.Get(di.ServiceScene).(*services.SceneService)
	if !ok {
		return nil, fmt.Errorf("场景服务未正确初始化")
	}

	generationService, ok := container.Get(di.ServiceGeneration).(*services.GenerationService)
	if !ok {
		return nil, fmt.Errorf("生成服务未正确初始化")
	}

	userService, ok := container.Get(di.ServiceUser).(*services.UserService)
	if !ok {
		return nil, fmt.Errorf("用户服务未正确初始化")
	}

	statsService, ok := container.Get(di.ServiceStats).(*services.StatsService)
	if !ok {
		return nil, fmt.Errorf("统计服务未正确初始化")
	}

	backend := session.NewLocalBackend(novelService, sceneService, generationService)

	handler := &Handler{
		NovelService:      novelService,
		SceneService:      sceneService,
		GenerationService: generationService,
		UserService:       userService,
		StatsService:      statsService,
		WriteSocket:       NewWriteSocketHandler(backend),
		Response:          NewResponseHelper(),
	}

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// 启用CORS
	r.Use(corsMiddleware())
	r.Use(AuthMiddleware())

	// 写作会话 WebSocket
	r.GET("/ws/novel/:id/write", handler.WriteSocket.HandleWrite)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	api.Use(DefaultRateLimit())
	{
		// 认证相关路由
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", handler.Login)
		}

		// ===============================
		// 小说相关路由
		// ===============================
		novelGroup := api.Group("/novel")
		{
			novelGroup.GET("/:id", handler.GetNovel)
			novelGroup.GET("/:id/scenes", handler.GetScenes)
			novelGroup.POST("", RequireAuth(), handler.CreateNovel)
			novelGroup.POST("/generate", RequireAuth(), GenerateRateLimit(), handler.GenerateScene)
			novelGroup.POST("/:id/share", RequireAuth(), handler.ShareNovel)
			novelGroup.POST("/:id/favorite", RequireAuth(), handler.ToggleFavorite)
			novelGroup.DELETE("/:id/favorite", RequireAuth(), handler.UnfavoriteNovel)
			novelGroup.POST("/:id/like", RequireAuth(), handler.LikeNovel)
			novelGroup.DELETE("/:id", RequireAuth(), handler.DeleteNovel)
		}

		api.GET("/novels", RequireAuth(), handler.ListMyNovels)
		api.GET("/novels/shared", handler.ListSharedNovels)

		// ===============================
		// 用户相关路由
		// ===============================
		userGroup := api.Group("/user")
		{
			userGroup.GET("/favorites", RequireAuth(), handler.ListFavorites)
		}

		// 调试用运行指标
		api.GET("/metrics", handler.GetMetrics)
	}

	return r, nil
}

// corsMiddleware 跨域支持
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
