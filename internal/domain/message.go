package domain

import "time"

// Address 邮件地址及显示名
type Address struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// String 返回地址，地址为空时返回显示名
func (a Address) String() string {
	if a.Address != "" {
		return a.Address
	}
	return a.Name
}

// Attachment 邮件附件元数据（内容留在服务商处）
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// Message 表示服务商返回的一封邮件。
//
// 列表接口只返回摘要字段，Text/HTML 仅在详情接口中填充。
type Message struct {
	ID             string       `json:"id"`
	From           Address      `json:"from"`
	To             []Address    `json:"to,omitempty"`
	Subject        string       `json:"subject"`
	Intro          string       `json:"intro,omitempty"`
	Text           string       `json:"text,omitempty"`
	HTML           string       `json:"html,omitempty"`
	Seen           bool         `json:"seen"`
	Flagged        bool         `json:"flagged,omitempty"`
	HasAttachments bool         `json:"hasAttachments"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	Size           int64        `json:"size,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt,omitempty"`
}

// Inbox 某个邮箱的一次收件箱快照
type Inbox struct {
	Email    string    `json:"email"`
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
}

// EmptyInbox 返回无令牌时的空收件箱
func EmptyInbox(email string) Inbox {
	return Inbox{Email: email, Messages: []Message{}, Total: 0}
}
