package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pocketlol/services-upload/internal/metadata"
	"github.com/pocketlol/services-upload/internal/models/events"
	"github.com/pocketlol/services-upload/internal/models/po"
	"github.com/pocketlol/services-upload/internal/models/vo"
	"github.com/pocketlol/services-upload/internal/repositories"

	"github.com/bionicotaku/lingo-utils/txmanager"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// 对外暴露的错误 reason 常量，经 Kratos 错误编码映射为 HTTP 状态码。
const (
	ReasonInvalidAssetType        = "INVALID_ASSET_TYPE"
	ReasonUnsupportedContentType  = "UNSUPPORTED_CONTENT_TYPE"
	ReasonPayloadTooLarge         = "PAYLOAD_TOO_LARGE"
	ReasonConcurrentQuotaExceeded = "CONCURRENT_QUOTA_EXCEEDED"
	ReasonDailyQuotaExceeded      = "DAILY_QUOTA_EXCEEDED"
	ReasonUploadNotFound          = "UPLOAD_NOT_FOUND"
	ReasonUploadIssuanceFailed    = "UPLOAD_ISSUANCE_FAILED"
)

// SessionRepo 抽象上传会话仓储，由 repositories.SessionRepository 实现。
type SessionRepo interface {
	Create(ctx context.Context, sess txmanager.Session, input repositories.CreateSessionInput) (*po.UploadSession, error)
	MarkUploading(ctx context.Context, sess txmanager.Session, id uuid.UUID) error
	MarkValidating(ctx context.Context, sess txmanager.Session, id uuid.UUID) error
	CompleteValidation(ctx context.Context, sess txmanager.Session, id uuid.UUID, input repositories.CompleteValidationInput) (*po.UploadSession, bool, error)
	UpdateProcessingOutcome(ctx context.Context, sess txmanager.Session, id uuid.UUID, input repositories.ProcessingOutcomeInput) (*po.UploadSession, bool, error)
	GetByID(ctx context.Context, sess txmanager.Session, id uuid.UUID) (*po.UploadSession, error)
	ExpireOlderThan(ctx context.Context, sess txmanager.Session, cutoff time.Time) ([]*po.UploadSession, error)
	MarkQuotaReleased(ctx context.Context, sess txmanager.Session, id uuid.UUID) (bool, error)
}

// QuotaLedger 抽象配额账本，由 repositories.QuotaRepository 实现。
type QuotaLedger interface {
	Claim(ctx context.Context, sess txmanager.Session, adminID string, now time.Time) (po.QuotaState, error)
	Release(ctx context.Context, sess txmanager.Session, adminID string) error
	Current(ctx context.Context, adminID string, now time.Time) (po.QuotaState, error)
	Limits() po.QuotaLimits
}

// SignedUploadRequest 描述一次签名上传凭证的签发参数。
type SignedUploadRequest struct {
	Bucket       string
	ObjectKey    string
	ContentType  string
	MaxSizeBytes int64
	TTL          time.Duration
	Metadata     map[string]string
}

// SignedUpload 为存储端返回的直传凭证。
type SignedUpload struct {
	URL       string
	Fields    map[string]string
	ExpiresAt time.Time
}

// CredentialIssuer 抽象签名上传凭证的签发端，由 gcs.PolicySigner 实现。
type CredentialIssuer interface {
	IssueSignedUpload(ctx context.Context, req SignedUploadRequest) (SignedUpload, error)
}

// EventBus 抽象按具名目标投递的事件总线。
// Configured 返回目标是否已配置：未配置的可选目标发布步骤整体跳过。
type EventBus interface {
	Configured(destination string) bool
	Publish(ctx context.Context, destination string, data []byte, attrs map[string]string) (string, error)
}

// TxRunner 抽象事务执行入口，由 txmanager.Manager 实现。
type TxRunner interface {
	WithinTx(ctx context.Context, opts txmanager.TxOptions, fn func(ctx context.Context, sess txmanager.Session) error) error
}

// UploadConfig 汇集凭证签发所需的静态配置。
type UploadConfig struct {
	Bucket     string
	CDNBaseURL string
	SignedTTL  time.Duration
}

// UploadManager 编排上传会话的完整生命周期：凭证签发、校验与处理回调、
// 过期清扫。每个占用的配额槽位在所有终态与错误路径上恰好归还一次。
type UploadManager struct {
	cfg      UploadConfig
	sessions SessionRepo
	quota    QuotaLedger
	issuer   CredentialIssuer
	bus      EventBus
	audit    AuditSink
	tx       TxRunner
	log      *log.Helper

	now func() time.Time
}

// NewUploadManager 构造 UploadManager。
func NewUploadManager(
	cfg UploadConfig,
	sessions SessionRepo,
	quota QuotaLedger,
	issuer CredentialIssuer,
	bus EventBus,
	audit AuditSink,
	tx TxRunner,
	logger log.Logger,
) *UploadManager {
	return &UploadManager{
		cfg:      cfg,
		sessions: sessions,
		quota:    quota,
		issuer:   issuer,
		bus:      bus,
		audit:    audit,
		tx:       tx,
		log:      log.NewHelper(logger),
		now:      time.Now,
	}
}

// IssueUploadInput 描述一次凭证签发请求。
type IssueUploadInput struct {
	AdminID       string
	ContentID     *string
	AssetType     po.AssetType
	FileName      string
	ContentType   string
	SizeBytes     int64
	CorrelationID string
}

// IssueUpload 校验上传策略、占用配额并签发一次性直传凭证。
// 策略检查先于配额占用；配额占用之后的任何失败都会同步归还槽位。
func (m *UploadManager) IssueUpload(ctx context.Context, input IssueUploadInput) (*vo.UploadCredential, error) {
	if input.CorrelationID == "" {
		input.CorrelationID = metadata.CorrelationID(ctx)
	}
	policy, ok := PolicyFor(input.AssetType)
	if !ok {
		return nil, kerrors.BadRequest(ReasonInvalidAssetType, fmt.Sprintf("unknown asset type %q", input.AssetType))
	}
	if !policy.AllowsContentType(input.ContentType) {
		return nil, kerrors.New(415, ReasonUnsupportedContentType,
			fmt.Sprintf("content type %q is not allowed for asset type %q", input.ContentType, input.AssetType))
	}
	if input.SizeBytes <= 0 || input.SizeBytes > policy.MaxSizeBytes {
		return nil, kerrors.New(413, ReasonPayloadTooLarge,
			fmt.Sprintf("size %d bytes exceeds the %d byte limit for asset type %q", input.SizeBytes, policy.MaxSizeBytes, input.AssetType))
	}

	now := m.now()
	if _, err := m.quota.Claim(ctx, nil, input.AdminID, now); err != nil {
		switch {
		case errors.Is(err, repositories.ErrConcurrentQuotaExceeded):
			return nil, kerrors.New(429, ReasonConcurrentQuotaExceeded, "too many concurrent uploads in flight")
		case errors.Is(err, repositories.ErrDailyQuotaExceeded):
			return nil, kerrors.New(429, ReasonDailyQuotaExceeded, "daily upload quota exhausted")
		default:
			return nil, kerrors.InternalServer(ReasonUploadIssuanceFailed, "claim upload quota").WithCause(err)
		}
	}

	credential, err := m.issueSession(ctx, input, policy, now)
	if err != nil {
		// 补偿：签发失败时归还刚占用的槽位。
		if relErr := m.quota.Release(ctx, nil, input.AdminID); relErr != nil {
			m.log.WithContext(ctx).Errorf("compensating quota release failed: admin_id=%s err=%v", input.AdminID, relErr)
		}
		return nil, err
	}
	return credential, nil
}

func (m *UploadManager) issueSession(ctx context.Context, input IssueUploadInput, policy AssetPolicy, now time.Time) (*vo.UploadCredential, error) {
	objectKey, err := BuildObjectKey(policy, input.FileName, now)
	if err != nil {
		return nil, kerrors.InternalServer(ReasonUploadIssuanceFailed, "build object key").WithCause(err)
	}
	storageURL := "gs://" + m.cfg.Bucket + "/" + objectKey
	cdnURL := strings.TrimRight(m.cfg.CDNBaseURL, "/") + "/" + objectKey
	expiresAt := now.Add(m.cfg.SignedTTL)

	objectMeta := map[string]string{
		"asset-type": string(input.AssetType),
		"admin-id":   input.AdminID,
	}
	if input.ContentID != nil {
		objectMeta["content-id"] = *input.ContentID
	}

	signed, err := m.issuer.IssueSignedUpload(ctx, SignedUploadRequest{
		Bucket:       m.cfg.Bucket,
		ObjectKey:    objectKey,
		ContentType:  input.ContentType,
		MaxSizeBytes: policy.MaxSizeBytes,
		TTL:          m.cfg.SignedTTL,
		Metadata:     objectMeta,
	})
	if err != nil {
		m.log.WithContext(ctx).Errorf("issue signed upload failed: admin_id=%s object_key=%s err=%v", input.AdminID, objectKey, err)
		return nil, kerrors.InternalServer(ReasonUploadIssuanceFailed, "generate signed upload credential").WithCause(err)
	}

	id := uuid.New()
	err = m.tx.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		if _, createErr := m.sessions.Create(txCtx, sess, repositories.CreateSessionInput{
			ID:          id,
			AdminID:     input.AdminID,
			ContentID:   input.ContentID,
			AssetType:   input.AssetType,
			FileName:    input.FileName,
			ContentType: input.ContentType,
			SizeBytes:   input.SizeBytes,
			Bucket:      m.cfg.Bucket,
			ObjectKey:   objectKey,
			StorageURL:  storageURL,
			CDNURL:      cdnURL,
			UploadURL:   &signed.URL,
			FormFields:  signed.Fields,
			ExpiresAt:   expiresAt,
		}); createErr != nil {
			return createErr
		}
		return m.sessions.MarkUploading(txCtx, sess, id)
	})
	if err != nil {
		return nil, kerrors.InternalServer(ReasonUploadIssuanceFailed, "persist upload session").WithCause(err)
	}

	m.audit.Record(events.AuditEvent{
		Type:          events.AuditUploadIntentCreated,
		UploadID:      id,
		AdminID:       input.AdminID,
		ContentID:     input.ContentID,
		StorageKey:    &objectKey,
		CorrelationID: input.CorrelationID,
		OccurredAt:    now,
		Metadata: map[string]string{
			"asset_type":   string(input.AssetType),
			"content_type": input.ContentType,
			"size_bytes":   fmt.Sprintf("%d", input.SizeBytes),
		},
	})
	m.log.WithContext(ctx).Infof("upload credential issued: upload_id=%s admin_id=%s asset_type=%s object_key=%s",
		id, input.AdminID, input.AssetType, objectKey)

	return &vo.UploadCredential{
		UploadID:   id,
		UploadURL:  signed.URL,
		Fields:     signed.Fields,
		ExpiresAt:  expiresAt,
		ObjectKey:  objectKey,
		StorageURL: storageURL,
		CDNURL:     cdnURL,
	}, nil
}

// GetStatus 返回指定会话的状态投影。
// 会话不存在或归属其他管理员时返回同一个 NOT_FOUND 错误，对外不可区分。
func (m *UploadManager) GetStatus(ctx context.Context, adminID string, uploadID uuid.UUID) (*vo.UploadStatusView, error) {
	session, err := m.sessions.GetByID(ctx, nil, uploadID)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, kerrors.NotFound(ReasonUploadNotFound, "upload session not found")
		}
		return nil, err
	}
	if session.AdminID != adminID {
		return nil, kerrors.NotFound(ReasonUploadNotFound, "upload session not found")
	}
	return vo.NewUploadStatusView(session), nil
}

// ValidationInput 描述校验回调。
type ValidationInput struct {
	UploadID      uuid.UUID
	Success       bool
	FailureReason *string
	Meta          po.SessionMeta
	CorrelationID string
}

// HandleValidation 处理存储端校验回调：合并校验元数据并落终态。
// 校验失败时在同一事务内归还配额；校验成功保持槽位占用直至处理完成。
// 事件与审计仅在本次调用确实完成转移时发出，重复回调安全。
func (m *UploadManager) HandleValidation(ctx context.Context, input ValidationInput) (*vo.UploadStatusView, error) {
	if input.CorrelationID == "" {
		input.CorrelationID = metadata.CorrelationID(ctx)
	}
	if err := m.sessions.MarkValidating(ctx, nil, input.UploadID); err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, kerrors.NotFound(ReasonUploadNotFound, "upload session not found")
		}
		return nil, err
	}

	var (
		session  *po.UploadSession
		changed  bool
		released bool
	)
	err := m.tx.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		var txErr error
		session, changed, txErr = m.sessions.CompleteValidation(txCtx, sess, input.UploadID, repositories.CompleteValidationInput{
			Success:       input.Success,
			FailureReason: input.FailureReason,
			Meta:          input.Meta,
		})
		if txErr != nil {
			return txErr
		}
		if changed && !input.Success {
			released, txErr = m.sessions.MarkQuotaReleased(txCtx, sess, input.UploadID)
			if txErr != nil {
				return txErr
			}
			if released {
				return m.quota.Release(txCtx, sess, session.AdminID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := m.now()
	switch {
	case !input.Success && released:
		m.log.WithContext(ctx).Warnf("upload validation failed: upload_id=%s admin_id=%s reason=%v",
			session.ID, session.AdminID, derefOr(input.FailureReason, "unspecified"))
		m.audit.Record(m.auditEvent(events.AuditUploadValidationFailed, session, input.CorrelationID, now, map[string]string{
			"failure_reason": derefOr(input.FailureReason, "unspecified"),
		}))
	case input.Success && changed:
		m.publishUploadValidated(ctx, session, input.CorrelationID, now)
	}
	return vo.NewUploadStatusView(session), nil
}

// publishUploadValidated 在校验通过的转移确立后发布下游事件与审计。
func (m *UploadManager) publishUploadValidated(ctx context.Context, session *po.UploadSession, correlationID string, now time.Time) {
	if env, err := events.NewMediaUploadedEvent(session, uuid.New(), now); err == nil {
		if m.publish(ctx, events.DestinationMediaUploaded, env) {
			m.audit.Record(m.auditEvent(events.AuditMediaUploadedEmitted, session, correlationID, now, nil))
		}
	}
	if session.AssetType == po.AssetTypeVideo && m.bus.Configured(events.DestinationPreviewRequested) {
		if env, err := events.NewPreviewRequestedEvent(session, uuid.New(), now); err == nil {
			if m.publish(ctx, events.DestinationPreviewRequested, env) {
				m.audit.Record(m.auditEvent(events.AuditUploadPreviewRequested, session, correlationID, now, nil))
			}
		}
	}
	m.audit.Record(m.auditEvent(events.AuditUploadValidationPassed, session, correlationID, now, nil))
	m.log.WithContext(ctx).Infof("upload validation passed: upload_id=%s admin_id=%s asset_type=%s",
		session.ID, session.AdminID, session.AssetType)
}

// ProcessingInput 描述处理管线的完成回调。
type ProcessingInput struct {
	UploadID      uuid.UUID
	Ready         bool
	FailureReason *string
	Meta          po.SessionMeta
	CorrelationID string
}

// MarkProcessingComplete 处理管线完成回调：合并处理元数据并写入最终状态。
// 处理失败允许把已 READY 的会话改写为 FAILED。无论成败，配额槽位在首次
// 进入处理终态时恰好归还一次；事件与审计以释放所有权为准，重复回调安全。
func (m *UploadManager) MarkProcessingComplete(ctx context.Context, input ProcessingInput) (*vo.UploadStatusView, error) {
	if input.CorrelationID == "" {
		input.CorrelationID = metadata.CorrelationID(ctx)
	}
	meta := input.Meta
	if input.Ready && meta.PreviewGeneratedAt == nil {
		generatedAt := m.now()
		meta.PreviewGeneratedAt = &generatedAt
	}

	var (
		session  *po.UploadSession
		changed  bool
		released bool
	)
	err := m.tx.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		var txErr error
		session, changed, txErr = m.sessions.UpdateProcessingOutcome(txCtx, sess, input.UploadID, repositories.ProcessingOutcomeInput{
			Ready:         input.Ready,
			FailureReason: input.FailureReason,
			Meta:          meta,
		})
		if txErr != nil {
			return txErr
		}
		if changed {
			released, txErr = m.sessions.MarkQuotaReleased(txCtx, sess, input.UploadID)
			if txErr != nil {
				return txErr
			}
			if released {
				return m.quota.Release(txCtx, sess, session.AdminID)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, kerrors.NotFound(ReasonUploadNotFound, "upload session not found")
		}
		return nil, err
	}

	now := m.now()
	if released {
		if input.Ready {
			m.audit.Record(m.auditEvent(events.AuditUploadProcessingReady, session, input.CorrelationID, now, nil))
			if session.Status == po.UploadStatusReady && m.bus.Configured(events.DestinationMediaProcessed) {
				if env, evErr := events.NewMediaProcessedEvent(session, uuid.New(), now); evErr == nil {
					if m.publish(ctx, events.DestinationMediaProcessed, env) {
						m.audit.Record(m.auditEvent(events.AuditMediaProcessedEmitted, session, input.CorrelationID, now, nil))
					}
				}
			}
			m.log.WithContext(ctx).Infof("upload processing ready: upload_id=%s admin_id=%s", session.ID, session.AdminID)
		} else {
			m.audit.Record(m.auditEvent(events.AuditUploadProcessingFailed, session, input.CorrelationID, now, map[string]string{
				"failure_reason": derefOr(input.FailureReason, "unspecified"),
			}))
			m.log.WithContext(ctx).Warnf("upload processing failed: upload_id=%s admin_id=%s reason=%s",
				session.ID, session.AdminID, derefOr(input.FailureReason, "unspecified"))
		}
	}
	return vo.NewUploadStatusView(session), nil
}

// ExpireStale 将所有超过签发有效期且未进入终态的会话标记为 expired，
// 并逐一归还其配额槽位。返回本次清扫的会话数量。
func (m *UploadManager) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	var expired []*po.UploadSession
	err := m.tx.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		sessions, txErr := m.sessions.ExpireOlderThan(txCtx, sess, cutoff)
		if txErr != nil {
			return txErr
		}
		for _, session := range sessions {
			released, relErr := m.sessions.MarkQuotaReleased(txCtx, sess, session.ID)
			if relErr != nil {
				return relErr
			}
			if released {
				if relErr := m.quota.Release(txCtx, sess, session.AdminID); relErr != nil {
					return relErr
				}
			}
		}
		expired = sessions
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(expired) > 0 {
		m.log.WithContext(ctx).Warnf("expired %d stale upload sessions", len(expired))
	}
	return len(expired), nil
}

func (m *UploadManager) publish(ctx context.Context, destination string, env events.Envelope) bool {
	if !m.bus.Configured(destination) {
		return false
	}
	payload, err := env.MarshalPayload()
	if err != nil {
		m.log.WithContext(ctx).Errorf("marshal event failed: destination=%s event_type=%s err=%v", destination, env.EventType, err)
		return false
	}
	if _, err := m.bus.Publish(ctx, destination, payload, env.Attributes(events.TraceIDFromContext(ctx))); err != nil {
		m.log.WithContext(ctx).Errorf("publish event failed: destination=%s event_type=%s err=%v", destination, env.EventType, err)
		return false
	}
	return true
}

func (m *UploadManager) auditEvent(eventType events.AuditEventType, session *po.UploadSession, correlationID string, occurredAt time.Time, extra map[string]string) events.AuditEvent {
	return events.AuditEvent{
		Type:                eventType,
		UploadID:            session.ID,
		AdminID:             session.AdminID,
		ContentID:           session.ContentID,
		StorageKey:          &session.ObjectKey,
		ManifestURL:         session.Meta.ManifestURL,
		DefaultThumbnailURL: session.Meta.DefaultThumbnailURL,
		Metadata:            extra,
		CorrelationID:       correlationID,
		OccurredAt:          occurredAt,
	}
}

func derefOr(s *string, fallback string) string {
	if s != nil && *s != "" {
		return *s
	}
	return fallback
}
