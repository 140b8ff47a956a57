package domain

import (
	"strings"
	"time"
)

// DefaultMailboxLifetime 临时邮箱在客户端的默认可用时长
const DefaultMailboxLifetime = 10 * time.Minute

// Mailbox 表示一个由上游邮件服务商签发的一次性邮箱。
//
// Token 为空时邮箱不可收信，收件箱始终为空。
// Synthetic 标记服务商不可用时本地生成的占位地址。
type Mailbox struct {
	Address    string    `json:"email"`
	ExternalID string    `json:"id,omitempty"`
	Token      string    `json:"token,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Synthetic  bool      `json:"synthetic,omitempty"`
}

// NewMailbox 以 createdAt 为起点构造邮箱，过期时间为 createdAt + lifetime
func NewMailbox(address, externalID, token string, createdAt time.Time, lifetime time.Duration) Mailbox {
	if lifetime <= 0 {
		lifetime = DefaultMailboxLifetime
	}
	return Mailbox{
		Address:    address,
		ExternalID: externalID,
		Token:      token,
		CreatedAt:  createdAt,
		ExpiresAt:  createdAt.Add(lifetime),
	}
}

// HasToken 判断邮箱是否持有可用的访问令牌
func (m Mailbox) HasToken() bool {
	return strings.TrimSpace(m.Token) != ""
}

// Remaining 返回距离过期的剩余时间，已过期返回 0
func (m Mailbox) Remaining(now time.Time) time.Duration {
	left := m.ExpiresAt.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Expired 判断邮箱在 now 时刻是否已经过期
func (m Mailbox) Expired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}

// LocalPart 返回地址 @ 之前的部分
func (m Mailbox) LocalPart() string {
	local, _, _ := strings.Cut(m.Address, "@")
	return local
}

// Domain 返回地址 @ 之后的部分
func (m Mailbox) Domain() string {
	_, d, _ := strings.Cut(m.Address, "@")
	return d
}

// MailDomain 服务商当前可分配的邮箱域名
type MailDomain struct {
	ID       string `json:"id"`
	Domain   string `json:"domain"`
	IsActive bool   `json:"isActive"`
}
