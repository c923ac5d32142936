package summary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/upo/upo/internal/domain/draft"
	"github.com/upo/upo/internal/domain/form"
	"github.com/upo/upo/internal/platform/blobstore"
	"github.com/upo/upo/internal/platform/calendar"
	"github.com/upo/upo/internal/platform/metrics"
)

var ErrReminderNotFound = errors.New("reminder not found")

// RecordSource yields the live record of a form.
type RecordSource interface {
	Record(ctx context.Context, workspace, formName string) (form.Record, error)
}

type Service struct {
	composer *Composer
	records  RecordSource
	catalog  *form.Catalog
	blobs    blobstore.BlobStore
	metrics  *metrics.Metrics
	clock    func() time.Time
	logger   zerolog.Logger
}

func NewService(composer *Composer, records RecordSource, catalog *form.Catalog, blobs blobstore.BlobStore, logger zerolog.Logger) *Service {
	return &Service{
		composer: composer,
		records:  records,
		catalog:  catalog,
		blobs:    blobs,
		clock:    time.Now,
		logger:   logger,
	}
}

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

func (s *Service) SetClock(clock func() time.Time) { s.clock = clock }

// Summarize composes the live form of a workspace.
func (s *Service) Summarize(ctx context.Context, workspace, formName string) (*Summary, error) {
	rec, err := s.records.Record(ctx, workspace, formName)
	if err != nil {
		return nil, err
	}
	return s.compose(formName, rec)
}

// SummarizeDraft composes a draft object supplied by the caller, decoded with
// the schema of formName. Nothing is stored.
func (s *Service) SummarizeDraft(formName string, payload []byte) (*Summary, error) {
	schema, err := s.catalog.Form(formName)
	if err != nil {
		return nil, err
	}
	d, err := draft.Decode(payload, []*form.Schema{schema})
	if err != nil {
		s.metrics.SummaryComposed(formName, metrics.ResultInvalid)
		return nil, err
	}
	return s.compose(formName, d.Record)
}

func (s *Service) compose(formName string, rec form.Record) (*Summary, error) {
	sum, err := s.composer.Compose(formName, rec)
	var missing *MissingFieldsError
	switch {
	case errors.As(err, &missing):
		s.metrics.SummaryComposed(formName, metrics.ResultInvalid)
		return nil, err
	case err != nil:
		s.metrics.SummaryComposed(formName, metrics.ResultError)
		return nil, err
	}
	s.metrics.SummaryComposed(formName, metrics.ResultOK)
	return sum, nil
}

// Remind composes the live form and schedules a review reminder minutes from
// now. The calendar file is kept in the blob store under the workspace.
func (s *Service) Remind(ctx context.Context, workspace, formName string, minutes int) (*calendar.Reminder, *blobstore.BlobMetadata, error) {
	sum, err := s.Summarize(ctx, workspace, formName)
	if err != nil {
		return nil, nil, err
	}
	rem, err := calendar.NewReminder(s.clock(), minutes, sum.Reminder)
	if err != nil {
		s.metrics.ReminderCreated(metrics.ResultInvalid)
		return nil, nil, err
	}
	meta, err := s.blobs.Upload(ctx, blobstore.BlobMetadata{
		FileName:    calendar.FileName,
		ContentType: calendar.ContentType,
		Workspace:   workspace,
	}, bytes.NewReader([]byte(rem.ICS())))
	if err != nil {
		s.metrics.ReminderCreated(metrics.ResultError)
		return nil, nil, fmt.Errorf("store reminder: %w", err)
	}
	s.metrics.ReminderCreated(metrics.ResultOK)
	s.logger.Info().
		Str("workspace", workspace).
		Str("form", formName).
		Str("reminder_id", meta.ID).
		Time("start", rem.Start).
		Msg("reminder scheduled")
	return rem, meta, nil
}

// ReminderFile returns a stored reminder. Reminders of other workspaces are
// reported as missing.
func (s *Service) ReminderFile(ctx context.Context, workspace, id string) ([]byte, *blobstore.BlobMetadata, error) {
	rc, meta, err := s.blobs.Download(ctx, id)
	if errors.Is(err, blobstore.ErrBlobNotFound) {
		return nil, nil, ErrReminderNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()
	if meta.Workspace != workspace {
		return nil, nil, ErrReminderNotFound
	}
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, nil, fmt.Errorf("read reminder: %w", err)
	}
	return data, meta, nil
}
