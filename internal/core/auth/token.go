package auth

import (
	"fmt"

	"github.com/dep2p/go-feedbus/internal/core/wire"
)

// Token bearer token 认证策略
//
// token 对客户端不透明：结构与过期校验是服务端的职责，
// 这里只做非空检查。
//
// 凭据布局: string(token)
// string(impersonating) string(forwardedFor) string(application)
type Token struct {
	token string
	attrs Attributes
}

// NewToken 创建 bearer token 认证策略
func NewToken(token string, attrs ...Attributes) (*Token, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: bearer scheme requires a token", ErrConfiguration)
	}

	a := &Token{token: token}
	if len(attrs) > 0 {
		a.attrs = attrs[0]
	}
	return a, nil
}

// Scheme 返回方案名称
func (a *Token) Scheme() string { return SchemeToken }

// Credentials 产出凭据字节
func (a *Token) Credentials() ([]byte, error) {
	w := wire.NewWriter()
	w.WriteString(a.token)
	encodeAttributes(w, a.attrs)
	return w.Bytes(), nil
}
