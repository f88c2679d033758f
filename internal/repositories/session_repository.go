package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pocketlol/services-upload/internal/models/po"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSessionNotFound 表示上传会话不存在。
var ErrSessionNotFound = errors.New("upload session not found")

// querier 抽象 pgxpool.Pool 与 pgx.Tx 的共同查询能力。
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const sessionColumns = `id, admin_id, content_id, asset_type, file_name, content_type, size_bytes,
       bucket, object_key, storage_url, cdn_url, upload_url, status, failure_reason,
       validation_meta, form_fields, expires_at, completed_at, quota_released_at, created_at, updated_at`

// SessionRepository 封装 upload.sessions 表的访问逻辑与状态机约束。
type SessionRepository struct {
	db  *pgxpool.Pool
	log *log.Helper
}

// NewSessionRepository 构造 SessionRepository。
func NewSessionRepository(db *pgxpool.Pool, logger log.Logger) *SessionRepository {
	return &SessionRepository{
		db:  db,
		log: log.NewHelper(logger),
	}
}

func (r *SessionRepository) querier(sess txmanager.Session) querier {
	if sess != nil {
		return sess.Tx()
	}
	return r.db
}

// CreateSessionInput 描述创建上传会话所需的字段，状态固定为 pending。
type CreateSessionInput struct {
	ID          uuid.UUID
	AdminID     string
	ContentID   *string
	AssetType   po.AssetType
	FileName    string
	ContentType string
	SizeBytes   int64
	Bucket      string
	ObjectKey   string
	StorageURL  string
	CDNURL      string
	UploadURL   *string
	FormFields  map[string]string
	ExpiresAt   time.Time
}

// Create 插入一条 pending 状态的上传会话。
func (r *SessionRepository) Create(ctx context.Context, sess txmanager.Session, input CreateSessionInput) (*po.UploadSession, error) {
	metaJSON, err := json.Marshal(po.SessionMeta{})
	if err != nil {
		return nil, fmt.Errorf("marshal session meta: %w", err)
	}
	fieldsJSON, err := json.Marshal(input.FormFields)
	if err != nil {
		return nil, fmt.Errorf("marshal form fields: %w", err)
	}

	row := r.querier(sess).QueryRow(ctx, `
        insert into upload.sessions (
            id, admin_id, content_id, asset_type, file_name, content_type, size_bytes,
            bucket, object_key, storage_url, cdn_url, upload_url, status,
            validation_meta, form_fields, expires_at
        ) values (
            $1, $2, $3, $4, $5, $6, $7,
            $8, $9, $10, $11, $12, 'pending',
            $13, $14, $15
        )
        returning `+sessionColumns,
		input.ID, input.AdminID, input.ContentID, string(input.AssetType), input.FileName,
		input.ContentType, input.SizeBytes, input.Bucket, input.ObjectKey, input.StorageURL,
		input.CDNURL, input.UploadURL, metaJSON, fieldsJSON, input.ExpiresAt,
	)

	session, err := scanSession(row)
	if err != nil {
		r.log.WithContext(ctx).Errorf("create upload session failed: admin_id=%s object_key=%s err=%v", input.AdminID, input.ObjectKey, err)
		return nil, fmt.Errorf("create upload session: %w", err)
	}
	return session, nil
}

// MarkUploading 将 pending 会话推进到 uploading。
// 会话处于其他状态时为幂等空操作；会话不存在时返回 ErrSessionNotFound。
func (r *SessionRepository) MarkUploading(ctx context.Context, sess txmanager.Session, id uuid.UUID) error {
	return r.advance(ctx, sess, id, po.UploadStatusUploading, []po.UploadStatus{po.UploadStatusPending})
}

// MarkValidating 将 pending/uploading 会话推进到 validating，语义同 MarkUploading。
func (r *SessionRepository) MarkValidating(ctx context.Context, sess txmanager.Session, id uuid.UUID) error {
	return r.advance(ctx, sess, id, po.UploadStatusValidating, []po.UploadStatus{po.UploadStatusPending, po.UploadStatusUploading})
}

func (r *SessionRepository) advance(ctx context.Context, sess txmanager.Session, id uuid.UUID, next po.UploadStatus, from []po.UploadStatus) error {
	states := make([]string, 0, len(from))
	for _, s := range from {
		states = append(states, string(s))
	}

	tag, err := r.querier(sess).Exec(ctx, `
        update upload.sessions
        set status = $2, updated_at = now()
        where id = $1 and status = any($3)`,
		id, string(next), states,
	)
	if err != nil {
		r.log.WithContext(ctx).Errorf("advance upload session failed: id=%s next=%s err=%v", id, next, err)
		return fmt.Errorf("advance upload session: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// 未命中更新时区分“不存在”与“重复投递”：后者静默成功。
	var exists bool
	if err := r.querier(sess).QueryRow(ctx, `select exists (select 1 from upload.sessions where id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check upload session: %w", err)
	}
	if !exists {
		return ErrSessionNotFound
	}
	return nil
}

// CompleteValidationInput 描述校验回调的落库参数。
type CompleteValidationInput struct {
	Success       bool
	FailureReason *string
	Meta          po.SessionMeta
}

// CompleteValidation 合并校验元数据并落终态（ready/failed）。
// completed_at 仅在首次进入终态时写入。返回值 changed 表示本次调用确实完成了转移；
// 会话已处于终态时返回当前行且 changed=false，以容忍重复回调。
func (r *SessionRepository) CompleteValidation(ctx context.Context, sess txmanager.Session, id uuid.UUID, input CompleteValidationInput) (*po.UploadSession, bool, error) {
	status := po.UploadStatusReady
	if !input.Success {
		status = po.UploadStatusFailed
	}
	metaJSON, err := json.Marshal(input.Meta)
	if err != nil {
		return nil, false, fmt.Errorf("marshal validation meta: %w", err)
	}

	row := r.querier(sess).QueryRow(ctx, `
        update upload.sessions
        set status = $2,
            failure_reason = coalesce($3, failure_reason),
            validation_meta = validation_meta || $4::jsonb,
            completed_at = coalesce(completed_at, now()),
            updated_at = now()
        where id = $1 and status not in ('ready', 'failed', 'expired')
        returning `+sessionColumns,
		id, string(status), input.FailureReason, metaJSON,
	)

	session, err := scanSession(row)
	if err == nil {
		return session, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.log.WithContext(ctx).Errorf("complete validation failed: id=%s err=%v", id, err)
		return nil, false, fmt.Errorf("complete validation: %w", err)
	}

	session, err = r.GetByID(ctx, sess, id)
	if err != nil {
		return nil, false, err
	}
	return session, false, nil
}

// ProcessingOutcomeInput 描述处理回调的落库参数。
type ProcessingOutcomeInput struct {
	Ready         bool
	FailureReason *string
	Meta          po.SessionMeta
}

// UpdateProcessingOutcome 合并处理元数据并写入最终状态。
// 允许从 ready 再次转移（处理失败可将已 READY 的会话改写为 FAILED，这是状态机中
// 被刻意保留的例外）；failed/expired 上为幂等空操作。
func (r *SessionRepository) UpdateProcessingOutcome(ctx context.Context, sess txmanager.Session, id uuid.UUID, input ProcessingOutcomeInput) (*po.UploadSession, bool, error) {
	status := po.UploadStatusReady
	if !input.Ready {
		status = po.UploadStatusFailed
	}
	metaJSON, err := json.Marshal(input.Meta)
	if err != nil {
		return nil, false, fmt.Errorf("marshal processing meta: %w", err)
	}

	row := r.querier(sess).QueryRow(ctx, `
        update upload.sessions
        set status = $2,
            failure_reason = coalesce($3, failure_reason),
            validation_meta = validation_meta || $4::jsonb,
            completed_at = coalesce(completed_at, now()),
            updated_at = now()
        where id = $1 and status not in ('failed', 'expired')
        returning `+sessionColumns,
		id, string(status), input.FailureReason, metaJSON,
	)

	session, err := scanSession(row)
	if err == nil {
		return session, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.log.WithContext(ctx).Errorf("update processing outcome failed: id=%s err=%v", id, err)
		return nil, false, fmt.Errorf("update processing outcome: %w", err)
	}

	session, err = r.GetByID(ctx, sess, id)
	if err != nil {
		return nil, false, err
	}
	return session, false, nil
}

// GetByID 查询指定 id 的上传会话。
func (r *SessionRepository) GetByID(ctx context.Context, sess txmanager.Session, id uuid.UUID) (*po.UploadSession, error) {
	row := r.querier(sess).QueryRow(ctx, `select `+sessionColumns+` from upload.sessions where id = $1`, id)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		r.log.WithContext(ctx).Errorf("get upload session failed: id=%s err=%v", id, err)
		return nil, fmt.Errorf("get upload session: %w", err)
	}
	return session, nil
}

// ExpireOlderThan 原子地将所有已过期的非终态会话标记为 expired，返回受影响的行，
// 供调用方逐一释放配额。
func (r *SessionRepository) ExpireOlderThan(ctx context.Context, sess txmanager.Session, cutoff time.Time) ([]*po.UploadSession, error) {
	rows, err := r.querier(sess).Query(ctx, `
        update upload.sessions
        set status = 'expired',
            completed_at = coalesce(completed_at, now()),
            updated_at = now()
        where expires_at < $1 and status in ('pending', 'uploading', 'validating')
        returning `+sessionColumns,
		cutoff,
	)
	if err != nil {
		r.log.WithContext(ctx).Errorf("expire upload sessions failed: cutoff=%s err=%v", cutoff, err)
		return nil, fmt.Errorf("expire upload sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*po.UploadSession
	for rows.Next() {
		session, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan expired session: %w", scanErr)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired sessions: %w", err)
	}
	return sessions, nil
}

// MarkQuotaReleased 原子翻转 quota_released_at 标记，返回本次调用是否赢得释放所有权。
// 该标记保证每个会话的配额槽位恰好释放一次，即使回调重复投递。
func (r *SessionRepository) MarkQuotaReleased(ctx context.Context, sess txmanager.Session, id uuid.UUID) (bool, error) {
	tag, err := r.querier(sess).Exec(ctx, `
        update upload.sessions
        set quota_released_at = now(), updated_at = now()
        where id = $1 and quota_released_at is null`,
		id,
	)
	if err != nil {
		r.log.WithContext(ctx).Errorf("mark quota released failed: id=%s err=%v", id, err)
		return false, fmt.Errorf("mark quota released: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanSession(row pgx.Row) (*po.UploadSession, error) {
	var (
		session    po.UploadSession
		assetType  string
		status     string
		metaJSON   []byte
		fieldsJSON []byte
	)
	err := row.Scan(
		&session.ID, &session.AdminID, &session.ContentID, &assetType, &session.FileName,
		&session.ContentType, &session.SizeBytes, &session.Bucket, &session.ObjectKey,
		&session.StorageURL, &session.CDNURL, &session.UploadURL, &status, &session.FailureReason,
		&metaJSON, &fieldsJSON, &session.ExpiresAt, &session.CompletedAt,
		&session.QuotaReleasedAt, &session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	session.AssetType = po.AssetType(assetType)
	session.Status = po.UploadStatus(status)
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &session.Meta); err != nil {
			return nil, fmt.Errorf("decode validation meta: %w", err)
		}
	}
	if len(fieldsJSON) > 0 {
		if err := json.Unmarshal(fieldsJSON, &session.FormFields); err != nil {
			return nil, fmt.Errorf("decode form fields: %w", err)
		}
	}
	return &session, nil
}
