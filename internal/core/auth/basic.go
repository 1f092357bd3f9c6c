package auth

import (
	"fmt"

	"github.com/dep2p/go-feedbus/internal/core/wire"
)

// Basic 用户名/密码认证策略
//
// 凭据布局: string(username) string(password)
// string(impersonating) string(forwardedFor) string(application)
type Basic struct {
	username string
	password string
	attrs    Attributes
}

// NewBasic 创建 basic 认证策略
//
// 用户名或密码为空时立即返回 ErrConfiguration，
// 不会产生任何网络活动。
func NewBasic(username, password string, attrs ...Attributes) (*Basic, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: basic scheme requires a username", ErrConfiguration)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: basic scheme requires a password", ErrConfiguration)
	}

	a := &Basic{username: username, password: password}
	if len(attrs) > 0 {
		a.attrs = attrs[0]
	}
	return a, nil
}

// Scheme 返回方案名称
func (a *Basic) Scheme() string { return SchemeBasic }

// Credentials 产出凭据字节
func (a *Basic) Credentials() ([]byte, error) {
	w := wire.NewWriter()
	w.WriteString(a.username)
	w.WriteString(a.password)
	encodeAttributes(w, a.attrs)
	return w.Bytes(), nil
}

// encodeAttributes 写入附加属性
func encodeAttributes(w *wire.Writer, attrs Attributes) {
	w.WriteString(attrs.Impersonating)
	w.WriteString(attrs.ForwardedFor)
	w.WriteString(attrs.Application)
}
