// Package metadata 提供请求级身份信息的解析与 Context 存取工具，供控制器与服务层共享。
package metadata

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// 管理端请求头约定。身份由上游网关注入，关联 ID 缺失时本地生成。
const (
	HeaderAdminID    = "x-pocketlol-admin-id"
	HeaderAdminRoles = "x-pocketlol-admin-roles"
	HeaderRequestID  = "x-request-id"
)

// RequestMeta 描述从请求头解析出的管理员身份与关联 ID。
type RequestMeta struct {
	AdminID       string
	Roles         []string
	CorrelationID string
}

// HasRole 判断角色列表中是否包含指定角色，比较时忽略大小写。
func (m RequestMeta) HasRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	for _, r := range m.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsZero 判断 RequestMeta 是否为空。
func (m RequestMeta) IsZero() bool {
	return m.AdminID == "" && len(m.Roles) == 0 && m.CorrelationID == ""
}

// FromHeader 从 HTTP 请求头解析请求元信息。
// 角色以逗号分隔，统一去空格并转小写；关联 ID 缺失时生成新的 UUID。
func FromHeader(header http.Header) RequestMeta {
	meta := RequestMeta{
		AdminID:       strings.TrimSpace(header.Get(HeaderAdminID)),
		CorrelationID: strings.TrimSpace(header.Get(HeaderRequestID)),
	}
	for _, raw := range strings.Split(header.Get(HeaderAdminRoles), ",") {
		role := strings.ToLower(strings.TrimSpace(raw))
		if role != "" {
			meta.Roles = append(meta.Roles, role)
		}
	}
	if meta.CorrelationID == "" {
		meta.CorrelationID = uuid.NewString()
	}
	return meta
}

type ctxKey struct{}

// Inject 将 RequestMeta 注入 Context。
func Inject(ctx context.Context, meta RequestMeta) context.Context {
	if meta.IsZero() {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, meta)
}

// FromContext 读取上游注入的 RequestMeta。
func FromContext(ctx context.Context) (RequestMeta, bool) {
	if ctx == nil {
		return RequestMeta{}, false
	}
	meta, ok := ctx.Value(ctxKey{}).(RequestMeta)
	return meta, ok
}

// CorrelationID 返回 Context 中的关联 ID，不存在时返回空字符串。
func CorrelationID(ctx context.Context) string {
	meta, _ := FromContext(ctx)
	return meta.CorrelationID
}
