// Package gcs 提供与 Google Cloud Storage 交互的基础设施封装。
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/oauth2/google"

	"github.com/pocketlol/services-upload/internal/services"
)

// PolicySigner 负责生成供浏览器直传的 V4 POST Policy 凭证。
type PolicySigner struct {
	googleAccessID string
	privateKey     []byte
	now            func() time.Time
	log            *log.Helper
}

// Option 定义可选配置。
type Option func(*PolicySigner)

// WithClock 覆盖时间获取函数，便于测试。
func WithClock(clock func() time.Time) Option {
	return func(s *PolicySigner) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithServiceAccountKey 允许直接注入访问 ID 与私钥（测试友好）。
func WithServiceAccountKey(accessID string, privateKey []byte) Option {
	return func(s *PolicySigner) {
		if accessID != "" {
			s.googleAccessID = accessID
		}
		if len(privateKey) > 0 {
			s.privateKey = append([]byte(nil), privateKey...)
		}
	}
}

// NewPolicySigner 创建 PolicySigner，要求默认凭据中包含 service account 私钥。
func NewPolicySigner(ctx context.Context, accessID string, logger log.Logger, opts ...Option) (*PolicySigner, error) {
	signer := &PolicySigner{
		googleAccessID: accessID,
		now:            time.Now,
		log:            log.NewHelper(logger),
	}

	for _, opt := range opts {
		opt(signer)
	}

	if len(signer.privateKey) == 0 {
		privKey, detectedAccessID, err := loadServiceAccountKey(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs signer: %w", err)
		}
		signer.privateKey = privKey
		if signer.googleAccessID == "" {
			signer.googleAccessID = detectedAccessID
		} else if detectedAccessID != "" && detectedAccessID != signer.googleAccessID {
			signer.log.WithContext(ctx).Warnf("gcs signer access id mismatch: config=%s credentials=%s", signer.googleAccessID, detectedAccessID)
		}
	}

	if signer.googleAccessID == "" {
		return nil, errors.New("gcs signer: google access id is required")
	}
	if len(signer.privateKey) == 0 {
		return nil, errors.New("gcs signer: private key is required")
	}

	return signer, nil
}

// IssueSignedUpload 生成带大小与 Content-Type 约束的一次性 POST Policy 凭证。
// 成功上传由存储端以 201 响应，自定义 metadata 随对象一并写入。
func (s *PolicySigner) IssueSignedUpload(ctx context.Context, req services.SignedUploadRequest) (services.SignedUpload, error) {
	if req.Bucket == "" {
		return services.SignedUpload{}, errors.New("bucket is required")
	}
	if req.ObjectKey == "" {
		return services.SignedUpload{}, errors.New("object key is required")
	}
	if req.MaxSizeBytes <= 0 {
		return services.SignedUpload{}, errors.New("max size must be positive")
	}
	if req.TTL <= 0 {
		return services.SignedUpload{}, errors.New("ttl must be positive")
	}

	expires := s.now().Add(req.TTL)

	metadata := make(map[string]string, len(req.Metadata))
	for k, v := range req.Metadata {
		metadata["x-goog-meta-"+k] = v
	}

	policy, err := storage.GenerateSignedPostPolicyV4(req.Bucket, req.ObjectKey, &storage.PostPolicyV4Options{
		GoogleAccessID: s.googleAccessID,
		PrivateKey:     s.privateKey,
		Expires:        expires,
		Conditions: []storage.PostPolicyV4Condition{
			storage.ConditionContentLengthRange(1, uint64(req.MaxSizeBytes)),
		},
		Fields: &storage.PolicyV4Fields{
			ContentType:         req.ContentType,
			StatusCodeOnSuccess: http.StatusCreated,
			Metadata:            metadata,
		},
	})
	if err != nil {
		s.log.WithContext(ctx).Errorf("generate signed post policy failed: bucket=%s object=%s err=%v", req.Bucket, req.ObjectKey, err)
		return services.SignedUpload{}, fmt.Errorf("signed post policy: %w", err)
	}

	return services.SignedUpload{
		URL:       policy.URL,
		Fields:    policy.Fields,
		ExpiresAt: expires,
	}, nil
}

type serviceAccountKey struct {
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
}

func loadServiceAccountKey(ctx context.Context) ([]byte, string, error) {
	creds, err := google.FindDefaultCredentials(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("find default credentials: %w", err)
	}
	if len(creds.JSON) == 0 {
		return nil, "", errors.New("service account JSON not found in default credentials")
	}

	var key serviceAccountKey
	if err := json.Unmarshal(creds.JSON, &key); err != nil {
		return nil, "", fmt.Errorf("parse service account json: %w", err)
	}
	if key.PrivateKey == "" {
		return nil, "", errors.New("service account private key is empty; use a service account JSON credential")
	}
	return []byte(key.PrivateKey), key.ClientEmail, nil
}

// ProvidePolicySigner 供 Wire 注入使用。
func ProvidePolicySigner(ctx context.Context, logger log.Logger) (*PolicySigner, error) {
	return NewPolicySigner(ctx, "", logger)
}
