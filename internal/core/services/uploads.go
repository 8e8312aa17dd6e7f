package services

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chatrelay/internal/core/contracts"
	"chatrelay/internal/core/domain"
	"chatrelay/pkg/logging"
)

// UploadService stores client blobs and reports back the URL and the
// image/file classification the client uses to shape its sendMessage.
type UploadService struct {
	log  *slog.Logger
	blob contracts.BlobStore
}

func NewUploadService(log *slog.Logger, blob contracts.BlobStore) *UploadService {
	return &UploadService{log: log, blob: blob}
}

func (s *UploadService) Store(ctx context.Context, filename string, r io.Reader) (domain.Upload, error) {
	ctx, span := tracer.Start(ctx, "UploadService.Store", trace.WithAttributes(
		attribute.String("upload.filename", filename),
	))
	defer span.End()
	if filename == "" {
		return domain.Upload{}, domain.ErrValidation
	}
	up, err := s.blob.Save(ctx, filename, r)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "uploads - store - save failed", "filename", filename, logging.Err(err))
		return domain.Upload{}, err
	}
	s.log.InfoContext(ctx, "uploads - store - saved", "filename", filename, "kind", up.Kind, "url", up.URL)
	return up, nil
}
