package mailtm

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"stealthmail/backend/internal/domain"
)

// collection 兼容 JSON-LD 集合（hydra:member）与普通数组两种响应格式
type collection[T any] []T

func (c *collection[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = nil
		return nil
	}

	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*c = items
		return nil
	}

	var wrapped struct {
		Member []T `json:"hydra:member"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	*c = wrapped.Member
	return nil
}

// flexAddress 兼容 {address,name} 对象与纯字符串
type flexAddress domain.Address

func (a *flexAddress) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*a = flexAddress{Address: s}
		return nil
	}

	var obj struct {
		Address string `json:"address"`
		Name    string `json:"name"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return err
	}
	*a = flexAddress{Address: obj.Address, Name: obj.Name}
	return nil
}

// flexHTML 兼容字符串数组与单个字符串
type flexHTML string

func (h *flexHTML) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*h = ""
		return nil
	}

	if trimmed[0] == '[' {
		var parts []string
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return err
		}
		*h = flexHTML(strings.Join(parts, ""))
		return nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return err
	}
	*h = flexHTML(s)
	return nil
}

type domainDTO struct {
	ID        string `json:"id"`
	Domain    string `json:"domain"`
	IsActive  bool   `json:"isActive"`
	IsPrivate bool   `json:"isPrivate"`
}

// Account 服务商账户
type Account struct {
	ID         string    `json:"id"`
	Address    string    `json:"address"`
	Quota      int64     `json:"quota"`
	Used       int64     `json:"used"`
	IsDisabled bool      `json:"isDisabled"`
	IsDeleted  bool      `json:"isDeleted"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Token 服务商签发的 Bearer 令牌
type Token struct {
	Token string `json:"token"`
	ID    string `json:"id"`
}

type attachmentDTO struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"downloadUrl"`
}

type messageDTO struct {
	ID             string          `json:"id"`
	From           flexAddress     `json:"from"`
	To             []flexAddress   `json:"to"`
	Subject        string          `json:"subject"`
	Intro          string          `json:"intro"`
	Text           string          `json:"text"`
	HTML           flexHTML        `json:"html"`
	Seen           bool            `json:"seen"`
	Flagged        bool            `json:"flagged"`
	HasAttachments bool            `json:"hasAttachments"`
	Attachments    []attachmentDTO `json:"attachments"`
	Size           int64           `json:"size"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func (m messageDTO) toDomain() domain.Message {
	out := domain.Message{
		ID:             m.ID,
		From:           domain.Address(m.From),
		Subject:        m.Subject,
		Intro:          m.Intro,
		Text:           m.Text,
		HTML:           string(m.HTML),
		Seen:           m.Seen,
		Flagged:        m.Flagged,
		HasAttachments: m.HasAttachments,
		Size:           m.Size,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	for _, to := range m.To {
		out.To = append(out.To, domain.Address(to))
	}
	for _, a := range m.Attachments {
		out.Attachments = append(out.Attachments, domain.Attachment{
			ID:          a.ID,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
			DownloadURL: a.DownloadURL,
		})
	}
	return out
}

// errorBody 服务商错误响应，不同接口使用不同字段
type errorBody struct {
	Message     string `json:"message"`
	Detail      string `json:"detail"`
	Description string `json:"hydra:description"`
}

func (e errorBody) text() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Detail != "":
		return e.Detail
	default:
		return e.Description
	}
}
