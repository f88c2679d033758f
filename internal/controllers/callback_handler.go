package controllers

import (
	"github.com/pocketlol/services-upload/internal/controllers/dto"
	"github.com/pocketlol/services-upload/internal/metadata"
	"github.com/pocketlol/services-upload/internal/services"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
)

// CallbackHandler 暴露存储校验与处理管线的服务间回调接口。
// 这些路由由服务令牌中间件保护，不要求管理员身份头。
type CallbackHandler struct {
	*BaseHandler
	manager *services.UploadManager
	log     *log.Helper
}

// NewCallbackHandler 构造 CallbackHandler。
func NewCallbackHandler(base *BaseHandler, manager *services.UploadManager, logger log.Logger) *CallbackHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{})
	}
	return &CallbackHandler{
		BaseHandler: base,
		manager:     manager,
		log:         log.NewHelper(logger),
	}
}

// RegisterRoutes 挂载回调路由。
func (h *CallbackHandler) RegisterRoutes(r *khttp.Router) {
	r.POST("/uploads/{uploadId}/validation", h.HandleValidation)
	r.POST("/uploads/{uploadId}/processing", h.HandleProcessing)
}

// HandleValidation 处理存储端校验回调。
func (h *CallbackHandler) HandleValidation(ctx khttp.Context) error {
	var req dto.ValidationCallbackRequest
	if err := ctx.Bind(&req); err != nil {
		return kerrors.BadRequest("UPLOAD_REQUEST_INVALID", "malformed request body")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	meta := metadata.FromHeader(ctx.Header())
	input, err := req.ToInput(ctx.Vars().Get("uploadId"), meta.CorrelationID)
	if err != nil {
		return err
	}

	timeoutCtx, cancel := h.WithTimeout(metadata.Inject(ctx, meta), HandlerTypeCommand)
	defer cancel()

	if _, err := h.manager.HandleValidation(timeoutCtx, input); err != nil {
		return err
	}
	return ctx.Result(200, dto.NewAcceptedResponse())
}

// HandleProcessing 处理管线完成回调。
func (h *CallbackHandler) HandleProcessing(ctx khttp.Context) error {
	var req dto.ProcessingCallbackRequest
	if err := ctx.Bind(&req); err != nil {
		return kerrors.BadRequest("UPLOAD_REQUEST_INVALID", "malformed request body")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	meta := metadata.FromHeader(ctx.Header())
	input, err := req.ToInput(ctx.Vars().Get("uploadId"), meta.CorrelationID)
	if err != nil {
		return err
	}

	timeoutCtx, cancel := h.WithTimeout(metadata.Inject(ctx, meta), HandlerTypeCommand)
	defer cancel()

	if _, err := h.manager.MarkProcessingComplete(timeoutCtx, input); err != nil {
		return err
	}
	return ctx.Result(200, dto.NewAcceptedResponse())
}

func pathUploadID(ctx khttp.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Vars().Get("uploadId"))
	if err != nil {
		return uuid.Nil, kerrors.BadRequest("UPLOAD_REQUEST_INVALID", "uploadId must be a valid UUID")
	}
	return id, nil
}
