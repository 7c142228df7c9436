package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-agent-be/internal/dto"
	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/internal/pkg/serverutils"
	"rag-agent-be/pkg/events"
	"rag-agent-be/pkg/ingestion"
)

type stubIngester struct {
	chunks  int
	err     error
	gotPath string
}

func (s *stubIngester) Ingest(_ context.Context, filePath string) (int, error) {
	s.gotPath = filePath
	return s.chunks, s.err
}

type capturingEventPublisher struct {
	published []events.Event
	err       error
}

func (p *capturingEventPublisher) Publish(_ context.Context, event events.Event) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, event)
	return nil
}

func TestIngestReturnsChunkCount(t *testing.T) {
	ing := &stubIngester{chunks: 7}
	pub := &capturingEventPublisher{}
	svc := NewKnowledgeService(ing, pub, logger.NewNopLogger())

	res, err := svc.Ingest(context.Background(), &dto.IngestRequest{FilePath: "/docs/spec.pdf"})

	require.NoError(t, err)
	assert.Equal(t, 7, res.Chunks)
	assert.Equal(t, "/docs/spec.pdf", res.Source)
	assert.Equal(t, "/docs/spec.pdf", ing.gotPath)
}

func TestIngestPublishesEvent(t *testing.T) {
	pub := &capturingEventPublisher{}
	svc := NewKnowledgeService(&stubIngester{chunks: 3}, pub, logger.NewNopLogger())

	_, err := svc.Ingest(context.Background(), &dto.IngestRequest{FilePath: "/docs/a.md"})

	require.NoError(t, err)
	require.Len(t, pub.published, 1)
	assert.Equal(t, events.EventDocumentIngested, pub.published[0].EventType())
	assert.Equal(t, "/docs/a.md", pub.published[0].Payload()["source"])
	assert.Equal(t, 3, pub.published[0].Payload()["chunks"])
}

func TestIngestSkipsEventForEmptyDocuments(t *testing.T) {
	pub := &capturingEventPublisher{}
	svc := NewKnowledgeService(&stubIngester{chunks: 0}, pub, logger.NewNopLogger())

	res, err := svc.Ingest(context.Background(), &dto.IngestRequest{FilePath: "/docs/blank.txt"})

	require.NoError(t, err)
	assert.Equal(t, 0, res.Chunks)
	assert.Empty(t, pub.published)
}

func TestIngestWorksWithoutEventBus(t *testing.T) {
	svc := NewKnowledgeService(&stubIngester{chunks: 2}, nil, logger.NewNopLogger())

	res, err := svc.Ingest(context.Background(), &dto.IngestRequest{FilePath: "/docs/a.txt"})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Chunks)
}

func TestIngestToleratesEventFailure(t *testing.T) {
	pub := &capturingEventPublisher{err: errors.New("nats gone")}
	svc := NewKnowledgeService(&stubIngester{chunks: 2}, pub, logger.NewNopLogger())

	_, err := svc.Ingest(context.Background(), &dto.IngestRequest{FilePath: "/docs/a.txt"})

	require.NoError(t, err)
}

func TestIngestRejectsBlankPath(t *testing.T) {
	svc := NewKnowledgeService(&stubIngester{}, nil, logger.NewNopLogger())

	_, err := svc.Ingest(context.Background(), &dto.IngestRequest{FilePath: " "})

	var appErr *serverutils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, fiber.StatusBadRequest, appErr.Code)
}

func TestIngestMapsUnsupportedFormatTo400(t *testing.T) {
	ing := &stubIngester{err: &ingestion.UnsupportedFormatError{Ext: ".csv"}}
	svc := NewKnowledgeService(ing, nil, logger.NewNopLogger())

	_, err := svc.Ingest(context.Background(), &dto.IngestRequest{FilePath: "/docs/data.csv"})

	var appErr *serverutils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, fiber.StatusBadRequest, appErr.Code)
}

func TestIngestMapsMissingFileTo404(t *testing.T) {
	ing := &stubIngester{err: fmt.Errorf("file not found: /docs/x.txt: %w", os.ErrNotExist)}
	svc := NewKnowledgeService(ing, nil, logger.NewNopLogger())

	_, err := svc.Ingest(context.Background(), &dto.IngestRequest{FilePath: "/docs/x.txt"})

	var appErr *serverutils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, fiber.StatusNotFound, appErr.Code)
}

func TestIngestMapsOtherErrorsTo500(t *testing.T) {
	ing := &stubIngester{err: errors.New("db write failed")}
	svc := NewKnowledgeService(ing, nil, logger.NewNopLogger())

	_, err := svc.Ingest(context.Background(), &dto.IngestRequest{FilePath: "/docs/a.txt"})

	var appErr *serverutils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, fiber.StatusInternalServerError, appErr.Code)
}

func TestFormatsListsExtensions(t *testing.T) {
	svc := NewKnowledgeService(&stubIngester{}, nil, logger.NewNopLogger())

	res := svc.Formats()

	assert.Contains(t, res.Extensions, ".pdf")
	assert.Contains(t, res.Extensions, ".md")
}
