package models

// User is the minimal view of an account that admission needs.
// User 是准入控制所需的最小账户视图。
type User struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Active   bool   `json:"active"`
}

// Identity is what a successfully admitted connection carries forward.
type Identity struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role,omitempty"`
	ClientIP string `json:"client_ip"`
}

// Notification is an outbound message subject to the notification budget.
// Notification 是受通知预算约束的出站消息。
type Notification struct {
	ID          string            `json:"id"`
	TenantID    string            `json:"tenant_id"`
	RecipientID string            `json:"recipient_id"`
	Channel     string            `json:"channel"`
	Subject     string            `json:"subject,omitempty"`
	Body        string            `json:"body"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	// Weight is the budget cost of the notification; 0 means 1.
	Weight int `json:"weight,omitempty"`
}
