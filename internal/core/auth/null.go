package auth

// Null 免认证策略
//
// 不发送任何凭据，引擎在握手阶段直接进入订阅重放。
type Null struct{}

// NewNull 创建免认证策略
func NewNull() *Null {
	return &Null{}
}

// Scheme 返回方案名称
func (a *Null) Scheme() string { return SchemeNull }

// Credentials 产出凭据字节（恒为空）
func (a *Null) Credentials() ([]byte, error) {
	return nil, nil
}
