package services

import (
	"context"
	"time"

	"github.com/pocketlol/services-upload/internal/models/vo"

	"github.com/go-kratos/kratos/v2/log"
)

// QuotaService 提供管理员配额占用的只读查询，不产生任何计数副作用。
type QuotaService struct {
	quota QuotaLedger
	log   *log.Helper
}

// NewQuotaService 构造 QuotaService。
func NewQuotaService(quota QuotaLedger, logger log.Logger) *QuotaService {
	return &QuotaService{
		quota: quota,
		log:   log.NewHelper(logger),
	}
}

// CurrentQuota 返回管理员当前的配额占用快照与静态上限。
func (s *QuotaService) CurrentQuota(ctx context.Context, adminID string) (*vo.QuotaView, error) {
	state, err := s.quota.Current(ctx, adminID, time.Now())
	if err != nil {
		s.log.WithContext(ctx).Errorf("get quota snapshot failed: admin_id=%s err=%v", adminID, err)
		return nil, err
	}
	return vo.NewQuotaView(state, s.quota.Limits()), nil
}
