package test

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/pstest"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/pocketlol/services-upload/internal/infrastructure/configloader"
	"github.com/pocketlol/services-upload/internal/infrastructure/eventbus"
	"github.com/pocketlol/services-upload/internal/models/events"
	"github.com/pocketlol/services-upload/internal/models/po"
	"github.com/pocketlol/services-upload/internal/repositories"
	"github.com/pocketlol/services-upload/internal/services"
	"github.com/bionicotaku/lingo-utils/gcpubsub"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/docker/go-connections/nat"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestUploadLifecycleEndToEnd(t *testing.T) {
	env := newUploadE2EEnv(t, po.QuotaLimits{ConcurrentLimit: 3, DailyLimit: 10})
	defer env.Shutdown()

	ctx := env.ctx

	// 1. 管理端请求签发直传凭证。
	credential, err := env.manager.IssueUpload(ctx, services.IssueUploadInput{
		AdminID:       "admin-e2e",
		AssetType:     po.AssetTypeVideo,
		FileName:      "lesson-01.mp4",
		ContentType:   "video/mp4",
		SizeBytes:     32 << 20,
		CorrelationID: "corr-lifecycle",
	})
	require.NoError(t, err)
	require.NotNil(t, credential)
	require.NotEmpty(t, credential.UploadURL)
	require.NotEmpty(t, credential.Fields["key"])

	// 凭证签发后会话处于 uploading，并发槽位被占用。
	row := env.sessionRow(ctx, t, credential.UploadID)
	require.Equal(t, "uploading", row.Status)
	require.Equal(t, int32(1), env.activeUploads(ctx, t, "admin-e2e"))

	// 2. 存储端校验通过。
	checksum := "d41d8cd98f00b204e9800998ecf8427e"
	duration := 92.5
	_, err = env.manager.HandleValidation(ctx, services.ValidationInput{
		UploadID: credential.UploadID,
		Success:  true,
		Meta: po.SessionMeta{
			Checksum:        &checksum,
			DurationSeconds: &duration,
		},
		CorrelationID: "corr-lifecycle",
	})
	require.NoError(t, err)

	row = env.sessionRow(ctx, t, credential.UploadID)
	require.Equal(t, "ready", row.Status)
	// 校验成功保持槽位占用直至处理完成。
	require.Equal(t, int32(1), env.activeUploads(ctx, t, "admin-e2e"))
	require.Equal(t, 1, env.countEvents(events.EventTypeMediaUploaded))
	require.Equal(t, 1, env.countEvents(events.EventTypePreviewRequested))

	// 3. 处理管线完成，配额槽位归还。
	manifest := "https://cdn.test/hls/lesson-01/master.m3u8"
	thumb := "https://cdn.test/thumbs/lesson-01.jpg"
	view, err := env.manager.MarkProcessingComplete(ctx, services.ProcessingInput{
		UploadID: credential.UploadID,
		Ready:    true,
		Meta: po.SessionMeta{
			ManifestURL:         &manifest,
			DefaultThumbnailURL: &thumb,
		},
		CorrelationID: "corr-lifecycle",
	})
	require.NoError(t, err)
	require.Equal(t, "ready", view.Status)

	row = env.sessionRow(ctx, t, credential.UploadID)
	require.Equal(t, "ready", row.Status)
	require.True(t, row.QuotaReleased)
	require.Equal(t, int32(0), env.activeUploads(ctx, t, "admin-e2e"))
	require.Equal(t, 1, env.countEvents(events.EventTypeMediaProcessed))

	// 4. 重复的处理回调幂等：不重复归还配额，也不重复发事件。
	_, err = env.manager.MarkProcessingComplete(ctx, services.ProcessingInput{
		UploadID:      credential.UploadID,
		Ready:         true,
		Meta:          po.SessionMeta{ManifestURL: &manifest},
		CorrelationID: "corr-lifecycle-dup",
	})
	require.NoError(t, err)
	require.Equal(t, int32(0), env.activeUploads(ctx, t, "admin-e2e"))
	require.Equal(t, 1, env.countEvents(events.EventTypeMediaProcessed))
}

func TestUploadEndToEnd_ValidationFailureReleasesQuota(t *testing.T) {
	env := newUploadE2EEnv(t, po.QuotaLimits{ConcurrentLimit: 3, DailyLimit: 10})
	defer env.Shutdown()

	ctx := env.ctx
	credential, err := env.manager.IssueUpload(ctx, services.IssueUploadInput{
		AdminID:     "admin-vfail",
		AssetType:   po.AssetTypeThumbnail,
		FileName:    "cover.png",
		ContentType: "image/png",
		SizeBytes:   1 << 20,
	})
	require.NoError(t, err)
	require.Equal(t, int32(1), env.activeUploads(ctx, t, "admin-vfail"))

	reason := "checksum mismatch"
	view, err := env.manager.HandleValidation(ctx, services.ValidationInput{
		UploadID:      credential.UploadID,
		Success:       false,
		FailureReason: &reason,
	})
	require.NoError(t, err)
	require.Equal(t, "failed", view.Status)

	row := env.sessionRow(ctx, t, credential.UploadID)
	require.Equal(t, "failed", row.Status)
	require.Equal(t, reason, row.FailureReason)
	require.True(t, row.QuotaReleased)
	require.Equal(t, int32(0), env.activeUploads(ctx, t, "admin-vfail"))
	require.Equal(t, 0, env.countEvents(events.EventTypeMediaUploaded))

	// 重复失败回调幂等。
	_, err = env.manager.HandleValidation(ctx, services.ValidationInput{
		UploadID:      credential.UploadID,
		Success:       false,
		FailureReason: &reason,
	})
	require.NoError(t, err)
	require.Equal(t, int32(0), env.activeUploads(ctx, t, "admin-vfail"))
}

func TestUploadEndToEnd_ConcurrentIssueRespectsQuota(t *testing.T) {
	env := newUploadE2EEnv(t, po.QuotaLimits{ConcurrentLimit: 2, DailyLimit: 10})
	defer env.Shutdown()

	ctx := env.ctx
	const workers = 3
	errs := make([]error, workers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(idx int) {
			defer wg.Done()
			<-start
			_, errs[idx] = env.manager.IssueUpload(ctx, services.IssueUploadInput{
				AdminID:     "admin-concurrent",
				AssetType:   po.AssetTypeVideo,
				FileName:    fmt.Sprintf("clip-%d.mp4", idx),
				ContentType: "video/mp4",
				SizeBytes:   8 << 20,
			})
		}(i)
	}
	close(start)
	wg.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			failures++
			require.ErrorContains(t, err, services.ReasonConcurrentQuotaExceeded)
		}
	}
	require.Equal(t, 1, failures, "exactly one issuance should hit the concurrent limit")

	var count int
	require.NoError(t, env.pool.QueryRow(ctx, `select count(*) from upload.sessions where admin_id = $1`, "admin-concurrent").Scan(&count))
	require.Equal(t, 2, count)
	require.Equal(t, int32(2), env.activeUploads(ctx, t, "admin-concurrent"))
}

func TestUploadEndToEnd_ExpirySweepReleasesQuota(t *testing.T) {
	env := newUploadE2EEnv(t, po.QuotaLimits{ConcurrentLimit: 3, DailyLimit: 10})
	defer env.Shutdown()

	ctx := env.ctx
	credential, err := env.manager.IssueUpload(ctx, services.IssueUploadInput{
		AdminID:     "admin-expiry",
		AssetType:   po.AssetTypeBanner,
		FileName:    "banner.webp",
		ContentType: "image/webp",
		SizeBytes:   512 << 10,
	})
	require.NoError(t, err)
	require.Equal(t, int32(1), env.activeUploads(ctx, t, "admin-expiry"))

	expired, err := env.manager.ExpireStale(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	row := env.sessionRow(ctx, t, credential.UploadID)
	require.Equal(t, "expired", row.Status)
	require.True(t, row.QuotaReleased)
	require.Equal(t, int32(0), env.activeUploads(ctx, t, "admin-expiry"))

	// 二次清扫无事可做。
	expired, err = env.manager.ExpireStale(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Zero(t, expired)
}

// --- 测试环境搭建 ---

type uploadE2EEnv struct {
	ctx     context.Context
	cancel  context.CancelFunc
	pool    *pgxpool.Pool
	manager *services.UploadManager
	pubsub  *pstest.Server
	stop    func()
}

func newUploadE2EEnv(t *testing.T, limits po.QuotaLimits) *uploadE2EEnv {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	dsn, terminate := startPostgres(ctx, t)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)

	applyMigrations(ctx, t, pool)

	logger := log.NewStdLogger(io.Discard)

	sessionRepo := repositories.NewSessionRepository(pool, logger)
	quotaRepo, err := repositories.NewQuotaRepository(pool, limits, logger)
	require.NoError(t, err)

	txMgr, err := txmanager.NewManager(pool, txmanager.Config{}, txmanager.Dependencies{Logger: logger})
	require.NoError(t, err)

	// pstest 模拟 Pub/Sub，每个目标一个 topic。
	server := pstest.NewServer()
	projectID := "upload-e2e"
	destinations := map[string]string{
		events.DestinationMediaUploaded:    "media.uploaded",
		events.DestinationPreviewRequested: "media.preview.requested",
		events.DestinationMediaProcessed:   "media.processed",
		events.DestinationAudit:            "admin.audit",
	}
	for _, topicID := range destinations {
		name := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
		_, err := server.GServer.CreateTopic(ctx, &pubsubpb.Topic{Name: name})
		require.NoError(t, err)
	}

	bus, busCleanup, err := eventbus.NewBus(ctx, configloader.MessagingConfig{
		ProjectID:        projectID,
		EmulatorEndpoint: server.Addr,
		Destinations:     destinations,
	}, gcpubsub.Dependencies{Logger: logger}, logger)
	require.NoError(t, err)

	dispatcher := services.NewAuditDispatcher(bus, logger)
	require.NoError(t, dispatcher.Start(ctx))

	manager := services.NewUploadManager(services.UploadConfig{
		Bucket:     "upload-e2e-bucket",
		CDNBaseURL: "https://cdn.test",
		SignedTTL:  15 * time.Minute,
	}, sessionRepo, quotaRepo, stubCredentialIssuer{}, bus, dispatcher, txMgr, logger)

	return &uploadE2EEnv{
		ctx:     ctx,
		cancel:  cancel,
		pool:    pool,
		manager: manager,
		pubsub:  server,
		stop: func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = dispatcher.Stop(stopCtx)
			stopCancel()
			busCleanup()
			server.Close()
			terminate()
		},
	}
}

func (e *uploadE2EEnv) Shutdown() {
	if e == nil {
		return
	}
	if e.stop != nil {
		e.stop()
	}
	if e.pool != nil {
		e.pool.Close()
	}
	if e.cancel != nil {
		e.cancel()
	}
}

// countEvents 统计 pstest 收到的指定类型事件数。
func (e *uploadE2EEnv) countEvents(eventType string) int {
	var count int
	for _, msg := range e.pubsub.Messages() {
		if msg.Attributes["event_type"] == eventType {
			count++
		}
	}
	return count
}

type sessionRow struct {
	Status        string
	FailureReason string
	QuotaReleased bool
}

func (e *uploadE2EEnv) sessionRow(ctx context.Context, t *testing.T, id uuid.UUID) sessionRow {
	t.Helper()
	var (
		row      sessionRow
		reason   *string
		released *time.Time
	)
	err := e.pool.QueryRow(ctx,
		`select status, failure_reason, quota_released_at from upload.sessions where id = $1`, id,
	).Scan(&row.Status, &reason, &released)
	require.NoError(t, err)
	if reason != nil {
		row.FailureReason = *reason
	}
	row.QuotaReleased = released != nil
	return row
}

func (e *uploadE2EEnv) activeUploads(ctx context.Context, t *testing.T, adminID string) int32 {
	t.Helper()
	var active int32
	err := e.pool.QueryRow(ctx,
		`select active_uploads from upload.admin_quotas where admin_id = $1`, adminID,
	).Scan(&active)
	if err != nil {
		// 无账本行等价于零占用。
		return 0
	}
	return active
}

// stubCredentialIssuer 以固定格式返回凭证，避免测试依赖真实 GCS 凭据。
type stubCredentialIssuer struct{}

func (stubCredentialIssuer) IssueSignedUpload(_ context.Context, req services.SignedUploadRequest) (services.SignedUpload, error) {
	return services.SignedUpload{
		URL: "https://storage.googleapis.com/" + req.Bucket + "/",
		Fields: map[string]string{
			"key":          req.ObjectKey,
			"Content-Type": req.ContentType,
		},
		ExpiresAt: time.Now().Add(req.TTL),
	}, nil
}

// --- Postgres + 迁移 ---

func startPostgres(ctx context.Context, t *testing.T) (string, func()) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_DB":       "uploads",
		},
		WaitingFor: wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
			return fmt.Sprintf("postgres://postgres:postgres@%s:%s/uploads?sslmode=disable", host, port.Port())
		}).WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("skip upload e2e: cannot start postgres container: %v", err)
		return "", func() {}
	}

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/uploads?sslmode=disable", host, port.Port())
	cleanup := func() {
		termCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(termCtx)
	}
	return dsn, cleanup
}

func applyMigrations(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	migrationsDir := filepath.Join("..", "migrations")
	files, err := os.ReadDir(migrationsDir)
	require.NoError(t, err)

	var paths []string
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".sql" {
			continue
		}
		paths = append(paths, filepath.Join(migrationsDir, file.Name()))
	}
	sort.Strings(paths)

	for _, path := range paths {
		sqlBytes, readErr := os.ReadFile(path)
		require.NoError(t, readErr)
		_, execErr := pool.Exec(ctx, string(sqlBytes))
		require.NoErrorf(t, execErr, "apply migration %s", filepath.Base(path))
	}
}
