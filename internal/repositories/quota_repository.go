package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pocketlol/services-upload/internal/models/po"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrConcurrentQuotaExceeded 表示并发上传配额已满。
	ErrConcurrentQuotaExceeded = errors.New("concurrent upload quota exceeded")
	// ErrDailyQuotaExceeded 表示当日上传配额已满。
	ErrDailyQuotaExceeded = errors.New("daily upload quota exceeded")
)

// QuotaRepository 基于 upload.admin_quotas 表实现按管理员计数的配额信号量。
// claim/release 通过单条条件更新保证原子性，多实例并发下不会超发。
type QuotaRepository struct {
	db     *pgxpool.Pool
	limits po.QuotaLimits
	log    *log.Helper
}

// NewQuotaRepository 构造 QuotaRepository，配额上限必须为正数。
func NewQuotaRepository(db *pgxpool.Pool, limits po.QuotaLimits, logger log.Logger) (*QuotaRepository, error) {
	if limits.ConcurrentLimit <= 0 {
		return nil, errors.New("quota repository: concurrent limit must be positive")
	}
	if limits.DailyLimit <= 0 {
		return nil, errors.New("quota repository: daily limit must be positive")
	}
	return &QuotaRepository{
		db:     db,
		limits: limits,
		log:    log.NewHelper(logger),
	}, nil
}

func (r *QuotaRepository) querier(sess txmanager.Session) querier {
	if sess != nil {
		return sess.Tx()
	}
	return r.db
}

// Claim 原子地占用一个并发槽位并累计当日计数。
// 并发上限先于日配额检查；任一上限命中返回可区分的哨兵错误，且不产生任何计数变化。
func (r *QuotaRepository) Claim(ctx context.Context, sess txmanager.Session, adminID string, now time.Time) (po.QuotaState, error) {
	day := now.UTC().Format("2006-01-02")

	// 条件 upsert：仅当两个上限都未命中时才会产生一行返回。
	// daily_date 翻转到新的一天时当日计数重置为 1。
	for attempt := 0; attempt < 2; attempt++ {
		var state po.QuotaState
		err := r.querier(sess).QueryRow(ctx, `
            insert into upload.admin_quotas (admin_id, active_uploads, daily_uploads, daily_date, updated_at)
            values ($1, 1, 1, $2::date, now())
            on conflict (admin_id) do update
            set active_uploads = upload.admin_quotas.active_uploads + 1,
                daily_uploads = case
                    when upload.admin_quotas.daily_date = $2::date then upload.admin_quotas.daily_uploads + 1
                    else 1
                end,
                daily_date = $2::date,
                updated_at = now()
            where upload.admin_quotas.active_uploads < $3
              and (upload.admin_quotas.daily_date <> $2::date or upload.admin_quotas.daily_uploads < $4)
            returning active_uploads, daily_uploads`,
			adminID, day, r.limits.ConcurrentLimit, r.limits.DailyLimit,
		).Scan(&state.ActiveUploads, &state.DailyUploads)
		if err == nil {
			state.AdminID = adminID
			return state, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			r.log.WithContext(ctx).Errorf("claim quota failed: admin_id=%s err=%v", adminID, err)
			return po.QuotaState{}, fmt.Errorf("claim quota: %w", err)
		}

		// 条件未满足：读取当前计数以区分命中的上限种类。
		current, err := r.Current(ctx, adminID, now)
		if err != nil {
			return po.QuotaState{}, err
		}
		if current.ActiveUploads >= r.limits.ConcurrentLimit {
			return po.QuotaState{}, ErrConcurrentQuotaExceeded
		}
		if current.DailyUploads >= r.limits.DailyLimit {
			return po.QuotaState{}, ErrDailyQuotaExceeded
		}
		// 竞争窗口内配额被释放，重试一次。
	}
	return po.QuotaState{}, ErrConcurrentQuotaExceeded
}

// Release 归还一个并发槽位，计数下限为零。
// 调用方必须保证每次成功的 claim 恰好对应一次 release。
func (r *QuotaRepository) Release(ctx context.Context, sess txmanager.Session, adminID string) error {
	_, err := r.querier(sess).Exec(ctx, `
        update upload.admin_quotas
        set active_uploads = greatest(active_uploads - 1, 0), updated_at = now()
        where admin_id = $1`,
		adminID,
	)
	if err != nil {
		r.log.WithContext(ctx).Errorf("release quota failed: admin_id=%s err=%v", adminID, err)
		return fmt.Errorf("release quota: %w", err)
	}
	return nil
}

// Current 返回管理员当前配额占用的只读快照，无副作用。
// 账本中没有行或日期已翻转时按零计数处理。
func (r *QuotaRepository) Current(ctx context.Context, adminID string, now time.Time) (po.QuotaState, error) {
	var (
		state     po.QuotaState
		dailyDate time.Time
	)
	err := r.db.QueryRow(ctx, `
        select active_uploads, daily_uploads, daily_date
        from upload.admin_quotas
        where admin_id = $1`,
		adminID,
	).Scan(&state.ActiveUploads, &state.DailyUploads, &dailyDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return po.QuotaState{AdminID: adminID}, nil
		}
		r.log.WithContext(ctx).Errorf("get quota failed: admin_id=%s err=%v", adminID, err)
		return po.QuotaState{}, fmt.Errorf("get quota: %w", err)
	}
	state.AdminID = adminID
	if dailyDate.UTC().Format("2006-01-02") != now.UTC().Format("2006-01-02") {
		state.DailyUploads = 0
	}
	return state, nil
}

// Limits 返回静态配置的配额上限。
func (r *QuotaRepository) Limits() po.QuotaLimits {
	return r.limits
}
