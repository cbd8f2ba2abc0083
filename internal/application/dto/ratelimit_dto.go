package dto

import "github.com/turtacn/edugate/internal/domain/models"

// RateLimitKeyRequest 定位一个限流计数器：上下文 + 标识符，或直接给出完整 key。
type RateLimitKeyRequest struct {
	Context    string `json:"context" form:"context" binding:"omitempty,oneof=http websocket notification"`
	Identifier string `json:"identifier" form:"identifier" binding:"required_without=Key,max=256"`
	Key        string `json:"key" form:"key" binding:"omitempty,max=512"`
}

// RateLimitCountRequest 查询当前计数
type RateLimitCountRequest struct {
	RateLimitKeyRequest
	WindowSeconds int `json:"window_seconds" form:"window_seconds" binding:"omitempty,min=1,max=86400"`
}

// RateLimitCountResponse 当前计数响应
type RateLimitCountResponse struct {
	Key           string `json:"key"`
	Context       string `json:"context"`
	Count         int    `json:"count"`
	Limit         int    `json:"limit"`
	WindowSeconds int    `json:"window_seconds"`
}

// RateLimitResetResponse 重置响应
type RateLimitResetResponse struct {
	Key   string `json:"key"`
	Reset bool   `json:"reset"`
}

// RateLimitPolicyResponse 有效策略
type RateLimitPolicyResponse struct {
	Context string        `json:"context"`
	Policy  models.Policy `json:"policy"`
}

// NotificationRequest 出站通知请求
type NotificationRequest struct {
	RecipientID string            `json:"recipient_id" binding:"required,max=128"`
	Channel     string            `json:"channel" binding:"required,oneof=email sms push"`
	Subject     string            `json:"subject" binding:"omitempty,max=256"`
	Body        string            `json:"body" binding:"required"`
	Metadata    map[string]string `json:"metadata"`
	Weight      int               `json:"weight" binding:"omitempty,min=1,max=100"`
}

// ToModel 转换为领域对象，租户来自认证身份
func (r *NotificationRequest) ToModel(tenantID string) *models.Notification {
	return &models.Notification{
		TenantID:    tenantID,
		RecipientID: r.RecipientID,
		Channel:     r.Channel,
		Subject:     r.Subject,
		Body:        r.Body,
		Metadata:    r.Metadata,
		Weight:      r.Weight,
	}
}

// NotificationAccepted 通知已受理
type NotificationAccepted struct {
	ID string `json:"id"`
}

// HandshakeResponse 连接握手结果（未升级时返回）
type HandshakeResponse struct {
	Identity *models.Identity `json:"identity"`
}
