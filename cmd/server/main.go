// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/metspa/woo-ai-customer-service/internal/config"
	"github.com/metspa/woo-ai-customer-service/internal/handler"
	"github.com/metspa/woo-ai-customer-service/internal/middleware"
	"github.com/metspa/woo-ai-customer-service/internal/repository"
	"github.com/metspa/woo-ai-customer-service/internal/service"
	"github.com/metspa/woo-ai-customer-service/pkg/database"
	"github.com/metspa/woo-ai-customer-service/pkg/es"
	"github.com/metspa/woo-ai-customer-service/pkg/llm"
	"github.com/metspa/woo-ai-customer-service/pkg/log"
	"github.com/metspa/woo-ai-customer-service/pkg/mailer"
	"github.com/metspa/woo-ai-customer-service/pkg/storage"
	"github.com/metspa/woo-ai-customer-service/pkg/token"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 和对象存储
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if cfg.Elasticsearch.Enabled {
		if err := es.InitES(cfg.Elasticsearch); err != nil {
			log.Errorf("es 初始化失败 %s", err)
			return
		}
	} else {
		log.Info("Elasticsearch 未启用，会话检索退化为 SQL LIKE")
	}

	// 4. 初始化 Repository
	leadRepo := repository.NewLeadRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.DB)
	orderRepo := repository.NewOrderRepository(database.DB)
	sessionRepo := repository.NewSessionRepository(database.RDB, cfg.Chat.SessionTTL)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.Admin.JWTSecret, cfg.Admin.TokenExpireHours)
	sessionNonce := token.NewSessionNonce(cfg.Chat.NonceSecret)
	llmClient := llm.NewClient(cfg.LLM, cfg.Chat)
	notifier := service.NewNotificationService(cfg.Notify, mailer.NewSender(cfg.Notify))
	eventHub := service.NewEventHub()
	contextBuilder := service.NewContextBuilder(orderRepo)
	conversationService := service.NewConversationService(conversationRepo, cfg.Elasticsearch)
	leadService := service.NewLeadService(leadRepo)
	sessionService := service.NewSessionService(cfg.Chat, leadRepo, sessionRepo,
		contextBuilder, conversationService, notifier, sessionNonce)
	chatService := service.NewChatService(cfg.Chat, sessionRepo, leadRepo,
		conversationService, llmClient, notifier, eventHub)
	uploadService := service.NewUploadService(cfg.MinIO)

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 7. 注册路由
	chatHandler := handler.NewChatHandler(sessionService, chatService, uploadService)
	authHandler := handler.NewAuthHandler(cfg.Admin, jwtManager)
	adminHandler := handler.NewAdminHandler(conversationService, leadService, llmClient)
	liveHandler := handler.NewLiveHandler(eventHub, jwtManager)

	apiV1 := r.Group("/api/v1")
	{
		// 聊天组件公开路由
		chat := apiV1.Group("/chat")
		{
			chat.POST("/session", chatHandler.StartSession)

			// 发消息和传图必须携带建会时下发的防伪令牌
			guarded := chat.Group("/")
			guarded.Use(middleware.SessionNonceMiddleware(sessionNonce))
			{
				guarded.POST("/message", chatHandler.SendMessage)
				guarded.POST("/upload", chatHandler.UploadImage)
				guarded.POST("/end", chatHandler.EndSession)
			}
		}

		// 客服后台路由
		admin := apiV1.Group("/admin")
		{
			admin.POST("/login", authHandler.Login)

			authed := admin.Group("/")
			authed.Use(middleware.AdminAuthMiddleware(jwtManager))
			{
				authed.GET("/conversations", adminHandler.ListConversations)
				authed.GET("/conversations/stats", adminHandler.ConversationStats)
				authed.GET("/conversations/:id", adminHandler.GetConversation)
				authed.PUT("/conversations/:id/status", adminHandler.UpdateConversationStatus)
				authed.DELETE("/conversations/:id", adminHandler.DeleteConversation)

				authed.GET("/leads", adminHandler.ListLeads)
				authed.GET("/leads/:id", adminHandler.GetLead)
				authed.POST("/leads/:id/notes", adminHandler.AddLeadNote)
				authed.DELETE("/leads/:id", adminHandler.DeleteLead)

				authed.POST("/test-llm", adminHandler.TestLLM)
			}

			// 浏览器 WebSocket 无法带 Authorization 头，token 走查询参数并在处理器内校验
			admin.GET("/live", liveHandler.Handle)
		}
	}

	// 8. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
