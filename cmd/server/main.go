// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amusedev/amuse/internal/api"
	"github.com/amusedev/amuse/internal/app"
	"github.com/amusedev/amuse/internal/config"
	"github.com/amusedev/amuse/internal/di"
	"github.com/amusedev/amuse/internal/utils"
)

func main() {
	log.Println("启动 Amuse 服务器...")

	// 1. 加载基础配置
	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("基础配置加载完成，端口: %s", baseConfig.Port)

	// 2. 创建必要的目录
	createDirectories(baseConfig)

	// 3. 初始化日志
	if err := utils.InitLogger(baseConfig.LogDir); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}

	// 4. 初始化配置系统
	if err := config.InitConfig(baseConfig.DataDir); err != nil {
		log.Fatalf("初始化配置系统失败: %v", err)
	}

	// 5. 初始化所有服务（按依赖顺序）
	if err := app.InitServices(); err != nil {
		log.Fatalf("初始化服务失败: %v", err)
	}
	defer app.Cleanup()
	log.Println("所有服务初始化完成")

	// 6. 初始化认证系统
	if err := api.InitializeAuth(); err != nil {
		log.Fatalf("初始化认证系统失败: %v", err)
	}

	// 7. 健康检查与路由
	if err := performHealthCheck(); err != nil {
		log.Printf("服务健康检查警告: %v", err)
	}

	router, err := api.SetupRouter()
	if err != nil {
		log.Fatalf("设置路由失败: %v", err)
	}

	log.Printf("服务器启动在端口 %s", baseConfig.Port)
	setupGracefulShutdown(router, baseConfig.Port)
}

// 创建运行所需的目录
func createDirectories(cfg *config.Config) {
	dirs := []string{
		cfg.DataDir,
		cfg.LogDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("创建目录失败 %s: %v", dir, err)
		}
	}
}

// 健康检查
func performHealthCheck() error {
	container := di.GetContainer()

	criticalServices := []string{
		di.ServiceLLM,
		di.ServiceNovel,
		di.ServiceScene,
		di.ServiceGeneration,
	}

	for _, serviceName := range criticalServices {
		if service := container.Get(serviceName); service == nil {
			return fmt.Errorf("关键服务未注册: %s", serviceName)
		}
	}
	return nil
}

// 优雅关闭
func setupGracefulShutdown(router *gin.Engine, port string) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("启动服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务器强制关闭: %v", err)
	}

	log.Println("服务器已退出")
}
