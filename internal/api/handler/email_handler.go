package handler

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"

	"lablink-go/internal/config"
	"lablink-go/internal/logger"
	"lablink-go/internal/notify"
	"lablink-go/internal/storage"
	"lablink-go/internal/types"
)

// EmailHandler 负责套磁邮件草稿生成与发送事件投递。
type EmailHandler struct {
	cfg *config.Config
	mq  storage.MessageQueue // 可为nil（RabbitMQ未配置时发送接口不可用）
}

// NewEmailHandler 创建一个新的 EmailHandler 实例。
func NewEmailHandler(cfg *config.Config, mq storage.MessageQueue) *EmailHandler {
	return &EmailHandler{cfg: cfg, mq: mq}
}

// HandleDraftEmail 生成套磁邮件草稿，不发送。
// POST /api/v1/email/draft
func (h *EmailHandler) HandleDraftEmail(ctx context.Context, c *app.RequestContext) {
	req, ok := h.bindEmailRequest(c)
	if !ok {
		return
	}
	c.JSON(consts.StatusOK, notify.BuildEmail(req))
}

// HandleSendEmail 生成草稿并把发送事件投递到消息队列。
// POST /api/v1/email/send
// 实际投递由队列消费方完成，接口只保证事件入队。
func (h *EmailHandler) HandleSendEmail(ctx context.Context, c *app.RequestContext) {
	if h.mq == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "邮件发送通道未配置"})
		return
	}

	req, ok := h.bindEmailRequest(c)
	if !ok {
		return
	}
	if strings.TrimSpace(req.ProfessorEmail) == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "professor_email 不能为空"})
		return
	}

	draft := notify.BuildEmail(req)
	event := types.EmailSendEvent{
		RequestID:      uuid.NewString(),
		To:             req.ProfessorEmail,
		Subject:        draft.Subject,
		Body:           draft.Body,
		StudentName:    req.StudentName,
		ProfessorName:  req.ProfessorName,
		SubmittedAtUTC: time.Now().UTC().Format(time.RFC3339),
	}

	mqCfg := h.cfg.RabbitMQ
	if err := h.mq.PublishJSON(ctx, mqCfg.EmailEventsExchange, mqCfg.EmailRoutingKey, event, true); err != nil {
		logger.Error().Err(err).Str("request_id", event.RequestID).Msg("投递邮件发送事件失败")
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "邮件事件投递失败"})
		return
	}

	logger.Info().
		Str("request_id", event.RequestID).
		Str("professor", req.ProfessorName).
		Msg("邮件发送事件已入队")

	c.JSON(consts.StatusAccepted, map[string]interface{}{
		"status":     "queued",
		"request_id": event.RequestID,
		"draft":      draft,
	})
}

func (h *EmailHandler) bindEmailRequest(c *app.RequestContext) (types.EmailRequest, bool) {
	var req types.EmailRequest
	if err := c.BindAndValidate(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "请求体解析失败: " + err.Error()})
		return req, false
	}
	if strings.TrimSpace(req.StudentName) == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "student_name 不能为空"})
		return req, false
	}
	if strings.TrimSpace(req.ProfessorName) == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "professor_name 不能为空"})
		return req, false
	}
	return req, true
}
