// Package controllers 承载 HTTP Handler，负责请求解析、鉴权与服务层调用。
package controllers

import (
	"github.com/pocketlol/services-upload/internal/controllers/dto"
	"github.com/pocketlol/services-upload/internal/metadata"
	"github.com/pocketlol/services-upload/internal/services"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

const reasonAdminRequired = "ADMIN_SCOPE_REQUIRED"

// UploadHandler 暴露管理端的上传签发、状态与配额查询接口。
type UploadHandler struct {
	*BaseHandler
	manager *services.UploadManager
	quota   *services.QuotaService
	log     *log.Helper
}

// NewUploadHandler 构造 UploadHandler。
func NewUploadHandler(base *BaseHandler, manager *services.UploadManager, quota *services.QuotaService, logger log.Logger) *UploadHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{})
	}
	return &UploadHandler{
		BaseHandler: base,
		manager:     manager,
		quota:       quota,
		log:         log.NewHelper(logger),
	}
}

// RegisterRoutes 挂载管理端路由。
func (h *UploadHandler) RegisterRoutes(r *khttp.Router) {
	r.POST("/uploads/sign", h.SignUpload)
	r.GET("/uploads/quota", h.GetQuota)
	r.GET("/uploads/{uploadId}/status", h.GetStatus)
}

// SignUpload 处理签名上传凭证的签发请求。
func (h *UploadHandler) SignUpload(ctx khttp.Context) error {
	identity, err := h.requireAdmin(ctx)
	if err != nil {
		return err
	}

	var req dto.SignUploadRequest
	if err := ctx.Bind(&req); err != nil {
		return kerrors.BadRequest("UPLOAD_REQUEST_INVALID", "malformed request body")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	timeoutCtx, cancel := h.WithTimeout(metadata.Inject(ctx, identity), HandlerTypeCommand)
	defer cancel()

	credential, err := h.manager.IssueUpload(timeoutCtx, req.ToInput(identity.AdminID, identity.CorrelationID))
	if err != nil {
		return err
	}
	return ctx.Result(200, dto.FromUploadCredential(credential))
}

// GetStatus 返回指定上传会话的状态投影。
func (h *UploadHandler) GetStatus(ctx khttp.Context) error {
	identity, err := h.requireAdmin(ctx)
	if err != nil {
		return err
	}

	uploadID, err := pathUploadID(ctx)
	if err != nil {
		return err
	}

	timeoutCtx, cancel := h.WithTimeout(metadata.Inject(ctx, identity), HandlerTypeQuery)
	defer cancel()

	view, err := h.manager.GetStatus(timeoutCtx, identity.AdminID, uploadID)
	if err != nil {
		return err
	}
	return ctx.Result(200, dto.FromUploadStatusView(view))
}

// GetQuota 返回当前管理员的配额占用与上限。
func (h *UploadHandler) GetQuota(ctx khttp.Context) error {
	identity, err := h.requireAdmin(ctx)
	if err != nil {
		return err
	}

	timeoutCtx, cancel := h.WithTimeout(metadata.Inject(ctx, identity), HandlerTypeQuery)
	defer cancel()

	view, err := h.quota.CurrentQuota(timeoutCtx, identity.AdminID)
	if err != nil {
		return err
	}
	return ctx.Result(200, dto.FromQuotaView(view))
}

// requireAdmin 解析并校验管理员身份：缺少身份返回 401，缺少 admin 角色返回 403。
func (h *UploadHandler) requireAdmin(ctx khttp.Context) (metadata.RequestMeta, error) {
	identity := metadata.FromHeader(ctx.Header())
	if identity.AdminID == "" {
		return metadata.RequestMeta{}, kerrors.Unauthorized(reasonAdminRequired, "missing admin identity")
	}
	if !identity.HasRole(adminRole) {
		return metadata.RequestMeta{}, kerrors.Forbidden(reasonAdminRequired, "admin role required")
	}
	return identity, nil
}
