package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-stream/internal/stream"
)

type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

func (s *Service) RecordUpload(ctx context.Context, uid, method, sourceURL string) error {
	u := &Upload{
		ID:        uuid.NewString(),
		UID:       uid,
		Method:    method,
		SourceURL: sourceURL,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateUpload(ctx, u); err != nil {
		return fmt.Errorf("record upload %s: %w", uid, err)
	}
	return nil
}

// RecordWebhook stores the state carried by a store notification.
func (s *Service) RecordWebhook(ctx context.Context, video *stream.VideoRecord) (*WebhookEvent, error) {
	code, _, _ := video.ErrorInfo()
	e := &WebhookEvent{
		ID:            uuid.NewString(),
		UID:           video.UID,
		State:         video.Status.State,
		ReadyToStream: video.ReadyToStream,
		ErrorCode:     code,
		ReceivedAt:    s.now(),
	}
	if e.State == "" {
		e.State = "unknown"
	}
	if err := s.repo.CreateWebhookEvent(ctx, e); err != nil {
		return nil, fmt.Errorf("record webhook for %s: %w", video.UID, err)
	}
	return e, nil
}

// RecentUploads clamps limit into [1, MaxListLimit], defaulting to
// DefaultListLimit.
func (s *Service) RecentUploads(ctx context.Context, limit int) ([]*UploadSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	uploads, err := s.repo.ListUploads(ctx, limit)
	if err != nil {
		return nil, err
	}
	if uploads == nil {
		uploads = []*UploadSummary{}
	}
	return uploads, nil
}

func (s *Service) History(ctx context.Context, uid string) ([]*WebhookEvent, error) {
	return s.repo.ListWebhookEvents(ctx, uid)
}
