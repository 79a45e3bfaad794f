package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/harryheman/slack-clone/internal/snowflake"
)

const (
	maxUploadSize   = 10 << 20 // 10 MB
	uploadURLExpiry = 15 * time.Minute
)

// FileStorage abstracts object storage operations for testability.
type FileStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// UploadTarget tells a client where to put an image and which key to send
// with the message that references it.
type UploadTarget struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UploadService hands out storage locations for message images.
type UploadService struct {
	gate      *MemberGate
	snowflake *snowflake.Generator
	storage   FileStorage
}

// NewUploadService creates an UploadService.
func NewUploadService(gate *MemberGate, sf *snowflake.Generator, storage FileStorage) *UploadService {
	return &UploadService{
		gate:      gate,
		snowflake: sf,
		storage:   storage,
	}
}

// GenerateUploadURL reserves an image key in the workspace and returns a
// presigned URL the client can PUT the image to.
func (s *UploadService) GenerateUploadURL(ctx context.Context, workspaceID, userID int64, contentType string) (*UploadTarget, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return nil, BadRequest("INVALID_CONTENT_TYPE", "only images can be attached")
	}
	if _, err := s.gate.Require(ctx, workspaceID, userID); err != nil {
		return nil, err
	}

	key := s.newKey(workspaceID)
	url, err := s.storage.PresignPut(ctx, key, uploadURLExpiry)
	if err != nil {
		return nil, storeFailure("storage.presign", err, "key", key)
	}
	return &UploadTarget{
		Key:       key,
		UploadURL: url,
		ExpiresAt: time.Now().Add(uploadURLExpiry).UTC(),
	}, nil
}

// UploadImage streams an image straight into storage and returns its key.
func (s *UploadService) UploadImage(ctx context.Context, workspaceID, userID int64, size int64, contentType string, reader io.Reader) (string, error) {
	if _, err := s.gate.Require(ctx, workspaceID, userID); err != nil {
		return "", err
	}
	if size > maxUploadSize {
		return "", BadRequest("FILE_TOO_LARGE", "file must be under 10 MB")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", BadRequest("INVALID_CONTENT_TYPE", "only images can be attached")
	}

	key := s.newKey(workspaceID)
	if err := s.storage.Upload(ctx, key, reader, size, contentType); err != nil {
		return "", storeFailure("storage.upload", err, "key", key)
	}
	return key, nil
}

func (s *UploadService) newKey(workspaceID int64) string {
	return fmt.Sprintf("%s%d", imageKeyPrefix(workspaceID), s.snowflake.Generate().Int64())
}

// imageKeyPrefix is the storage prefix of every image in a workspace.
// Messages may only reference keys under their own workspace's prefix.
func imageKeyPrefix(workspaceID int64) string {
	return fmt.Sprintf("images/%d/", workspaceID)
}
