package router

import (
	"context"
	"crypto/subtle"
	"errors"

	"portfolio-chat/internal/api/handler"
	"portfolio-chat/internal/constants"
	"portfolio-chat/internal/logger"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/hertz-contrib/keyauth"
)

var errInvalidAPIKey = errors.New("API Key 无效")

// RegisterRoutes 注册 API 路由。apiKeys 非空时对话接口要求 Authorization: Bearer <key>
func RegisterRoutes(h *server.Hertz, chatHandler *handler.ChatHandler, apiKeys []string) {
	h.Use(RequestID())

	api := h.Group("/api")

	// 健康检查不需要鉴权
	api.GET("/health", chatHandler.HandleHealth)

	chat := api.Group("")
	if len(apiKeys) > 0 {
		chat.Use(APIKeyAuth(apiKeys))
		logger.Info().Int("keys", len(apiKeys)).Msg("对话接口已启用 API Key 鉴权")
	}
	chat.POST("/workflow", chatHandler.HandleWorkflow)
	chat.POST("/chat", chatHandler.HandleChat)
}

// RequestID 为每个请求生成或沿用 X-Request-ID，并放入上下文日志
func RequestID() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		requestID := string(ctx.GetHeader(constants.RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx.Response.Header.Set(constants.RequestIDHeader, requestID)
		ctx.Next(logger.WithRequestID(c, requestID))
	}
}

// APIKeyAuth 校验 Bearer API Key
func APIKeyAuth(apiKeys []string) app.HandlerFunc {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
			for _, k := range keys {
				if subtle.ConstantTimeCompare(k, []byte(key)) == 1 {
					return true, nil
				}
			}
			return false, errInvalidAPIKey
		}),
		keyauth.WithErrorHandler(func(c context.Context, ctx *app.RequestContext, err error) {
			logger.Ctx(c).Warn().Err(err).Str("path", string(ctx.Path())).Msg("API Key 鉴权失败")
			ctx.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "未授权"})
		}),
	)
}
