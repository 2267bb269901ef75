package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"

	"lablink-go/internal/api/handler"
	"lablink-go/internal/config"
)

// RegisterRoutes 注册 API 路由。
// auth.api_keys 非空时，除健康检查外的所有路由都要求 X-API-Key 头。
func RegisterRoutes(
	h *server.Hertz,
	cfg *config.Config,
	matchHandler *handler.MatchHandler,
	professorHandler *handler.ProfessorHandler,
	emailHandler *handler.EmailHandler,
) {
	api := h.Group("/api/v1")

	// 健康检查不做认证
	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	protected := api.Group("")
	if mw := apiKeyMiddleware(cfg.Auth.APIKeys); mw != nil {
		protected.Use(mw)
	}

	protected.POST("/match", matchHandler.HandleMatch)

	protected.GET("/professors", professorHandler.HandleListProfessors)
	protected.GET("/professors/:id", professorHandler.HandleGetProfessor)
	protected.POST("/professors", professorHandler.HandleUpsertProfessor)
	protected.GET("/departments", professorHandler.HandleListDepartments)
	protected.POST("/reload", professorHandler.HandleReload)

	protected.POST("/email/draft", emailHandler.HandleDraftEmail)
	protected.POST("/email/send", emailHandler.HandleSendEmail)
}

// apiKeyMiddleware 基于静态API Key列表的认证中间件。
// 未配置任何Key时返回nil，路由退化为开放模式（本地开发）。
func apiKeyMiddleware(keys []string) app.HandlerFunc {
	if len(keys) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k != "" {
			allowed[k] = true
		}
	}
	return keyauth.New(
		keyauth.WithKeyLookUp("header:X-API-Key", ""),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			return allowed[key], nil
		}),
	)
}
