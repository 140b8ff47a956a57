package domain

import (
	"errors"
	"fmt"
)

// ErrorKind 业务错误分类，决定网关返回的 HTTP 状态码
type ErrorKind int

const (
	KindUnavailable  ErrorKind = iota // 上游不可用或未知错误 -> 500
	KindInvalid                       // 请求参数错误 -> 400
	KindAuthRequired                  // 缺少邮箱令牌 -> 400
	KindNotFound                      // 邮件或文章不存在 -> 404
)

// String 返回分类名称
func (k ErrorKind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindAuthRequired:
		return "auth_required"
	case KindNotFound:
		return "not_found"
	default:
		return "unavailable"
	}
}

// Error 携带分类的业务错误
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError 创建业务错误
func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Invalid 请求参数错误
func Invalid(msg string) *Error {
	return &Error{Kind: KindInvalid, Msg: msg}
}

// NotFound 资源不存在
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// Unavailable 上游不可用
func Unavailable(msg string, err error) *Error {
	return &Error{Kind: KindUnavailable, Msg: msg, Err: err}
}

// ErrAuthRequired 缺少邮箱访问令牌
var ErrAuthRequired = &Error{Kind: KindAuthRequired, Msg: "Authentication token required"}

// KindOf 返回错误分类，非业务错误视为 KindUnavailable
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnavailable
}

// MessageOf 返回面向客户端的错误描述
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
