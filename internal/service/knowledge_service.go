package service

import (
	"context"
	"errors"
	"os"
	"strings"

	"rag-agent-be/internal/dto"
	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/internal/pkg/serverutils"
	"rag-agent-be/pkg/events"
	"rag-agent-be/pkg/ingestion"

	"github.com/gofiber/fiber/v2"
)

type IKnowledgeService interface {
	Ingest(ctx context.Context, req *dto.IngestRequest) (*dto.IngestResponse, error)
	Formats() *dto.FormatsResponse
}

// Ingester turns a document file into stored, embedded chunks.
type Ingester interface {
	Ingest(ctx context.Context, filePath string) (int, error)
}

// EventPublisher broadcasts domain events. May be absent when NATS is
// not configured.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type knowledgeService struct {
	pipeline  Ingester
	eventsPub EventPublisher
	logger    logger.ILogger
}

func NewKnowledgeService(pipeline Ingester, eventsPub EventPublisher, log logger.ILogger) IKnowledgeService {
	return &knowledgeService{
		pipeline:  pipeline,
		eventsPub: eventsPub,
		logger:    log,
	}
}

func (s *knowledgeService) Ingest(ctx context.Context, req *dto.IngestRequest) (*dto.IngestResponse, error) {
	path := strings.TrimSpace(req.FilePath)
	if path == "" {
		return nil, serverutils.NewAppError(fiber.StatusBadRequest, "file_path must not be empty")
	}

	chunks, err := s.pipeline.Ingest(ctx, path)
	if err != nil {
		var ufe *ingestion.UnsupportedFormatError
		switch {
		case errors.As(err, &ufe):
			return nil, serverutils.WrapAppError(fiber.StatusBadRequest, "unsupported document format", err)
		case errors.Is(err, os.ErrNotExist):
			return nil, serverutils.WrapAppError(fiber.StatusNotFound, "document not found", err)
		default:
			return nil, serverutils.WrapAppError(fiber.StatusInternalServerError, "ingestion failed", err)
		}
	}

	if chunks > 0 && s.eventsPub != nil {
		// Event delivery is informational; ingestion already succeeded.
		if err := s.eventsPub.Publish(ctx, events.NewDocumentIngested(path, chunks)); err != nil {
			s.logger.Warn("Knowledge", "failed to publish ingestion event", map[string]interface{}{
				"source": path,
				"error":  err.Error(),
			})
		}
	}

	return &dto.IngestResponse{Source: path, Chunks: chunks}, nil
}

func (s *knowledgeService) Formats() *dto.FormatsResponse {
	return &dto.FormatsResponse{Extensions: ingestion.SupportedExtensions()}
}
