// Package router 注册HTTP路由与鉴权中间件。
package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"

	"resume-screen-go/internal/api/handler"
)

// RegisterRoutes 注册全部API路由。
// apiKeys 非空时对 /api/v1 下的接口启用 X-API-Key 鉴权，健康检查始终匿名可达。
func RegisterRoutes(h *server.Hertz, screenHandler *handler.ScreenHandler, conditionHandler *handler.ConditionHandler, apiKeys []string) {
	h.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	api := h.Group("/api/v1")
	if len(apiKeys) > 0 {
		api.Use(apiKeyAuth(apiKeys))
	}

	screen := api.Group("/screen")
	screen.POST("/upload", screenHandler.ScreenUpload)
	screen.POST("/batch", screenHandler.ScreenBatch)
	screen.GET("/result", screenHandler.GetResult)
	screen.GET("/stats/:condition_set_id", screenHandler.GetStats)

	talents := api.Group("/talents")
	talents.GET("", screenHandler.ListTalents)
	talents.POST("/search", screenHandler.SearchSimilar)
	talents.GET("/:talent_id", screenHandler.GetTalent)

	conditions := api.Group("/conditions")
	conditions.POST("", conditionHandler.Create)
	conditions.GET("", conditionHandler.List)
	conditions.GET("/:condition_set_id", conditionHandler.Get)
	conditions.PUT("/:condition_set_id", conditionHandler.Update)
	conditions.DELETE("/:condition_set_id", conditionHandler.Delete)
}

func apiKeyAuth(apiKeys []string) app.HandlerFunc {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		allowed[k] = struct{}{}
	}
	return keyauth.New(
		keyauth.WithKeyLookUp("header:X-API-Key", ""),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			_, ok := allowed[key]
			return ok, nil
		}),
	)
}
