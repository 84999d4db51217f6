// Package photos applies staff crop edits: it renders the print-ready image
// from the original upload and points the record at the new artifact.
package photos

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Voupi/sistema-gestion-addag/internal/app/apperr"
	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	"github.com/Voupi/sistema-gestion-addag/internal/photo"
	"github.com/Voupi/sistema-gestion-addag/internal/platform/metrics"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/blobstore"
	clockport "github.com/Voupi/sistema-gestion-addag/internal/ports/out/clock"
	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/recordstore"
)

// CropInput is the editor's geometry. Crop is in pixels of the source after
// rotating it clockwise by Rotation degrees.
type CropInput struct {
	Crop     photo.Rect
	Rotation int
}

type Service struct {
	store recordstore.Store
	blobs blobstore.Store
	clk   clockport.Clock

	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewService(store recordstore.Store, blobs blobstore.Store, clk clockport.Clock, log *zap.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, blobs: blobs, clk: clk, log: log, metrics: m}
}

// ApplyCrop always renders from the original upload, never from a previous
// artifact, so repeated edits do not compound. Each edit is stored under a
// new name; earlier artifacts are left in place.
func (s *Service) ApplyCrop(ctx context.Context, kind domain.RecordKind, id domain.RecordID, in CropInput) (domain.ApplicantRecord, error) {
	if !photo.MatchesTargetAspect(in.Crop.Width, in.Crop.Height) {
		return domain.ApplicantRecord{}, apperr.Validation("crop must have the card photo aspect ratio", map[string]any{
			"crop":   in.Crop.String(),
			"aspect": "139:166",
		})
	}

	rec, err := s.store.Get(ctx, kind, id)
	if err != nil {
		return domain.ApplicantRecord{}, apperr.FromStore(err)
	}
	if rec.PhotoURL == "" {
		return domain.ApplicantRecord{}, apperr.NotFound("original photo")
	}
	src, err := s.blobs.Fetch(ctx, rec.PhotoURL)
	if errors.Is(err, blobstore.ErrNotFound) {
		return domain.ApplicantRecord{}, apperr.NotFound("original photo")
	}
	if err != nil {
		s.log.Error("fetch original photo failed", zap.String("record_id", string(id)), zap.Error(err))
		return domain.ApplicantRecord{}, apperr.Unavailable("photo fetch", err)
	}

	start := time.Now()
	out, err := photo.RenderCroppedArtifact(src, in.Crop, in.Rotation)
	s.metrics.ObserveCrop(time.Since(start))
	if err != nil {
		return domain.ApplicantRecord{}, renderError(err)
	}

	now := s.clk.Now()
	name := photo.ArtifactName(kind, rec.DocumentNumber, now)
	url, err := s.blobs.Upload(ctx, name, out, "image/jpeg")
	if err != nil {
		s.log.Error("upload artifact failed", zap.String("record_id", string(id)), zap.String("path", name), zap.Error(err))
		return domain.ApplicantRecord{}, apperr.Unavailable("photo upload", err)
	}

	updated, err := s.store.UpdateDetails(ctx, kind, id, recordstore.DetailsPatch{PhotoURLFinal: &url, UpdatedAt: &now})
	if err != nil {
		return domain.ApplicantRecord{}, apperr.FromStore(err)
	}
	s.log.Info("photo cropped",
		zap.String("kind", string(kind)),
		zap.String("record_id", string(id)),
		zap.String("crop", in.Crop.String()),
		zap.Int("rotation", in.Rotation),
		zap.String("artifact", name))
	return updated, nil
}

func renderError(err error) error {
	switch {
	case errors.Is(err, photo.ErrImageDecode):
		return &apperr.Error{Status: 422, Code: apperr.CodeImageDecode, Message: "the original photo cannot be decoded", Err: err}
	case errors.Is(err, photo.ErrImageTooLarge):
		return &apperr.Error{
			Status:  422,
			Code:    apperr.CodeValidation,
			Message: "the original photo is too large to edit",
			Details: map[string]any{"photo": err.Error()},
			Err:     err,
		}
	case errors.Is(err, photo.ErrCropOutOfBounds):
		return &apperr.Error{Status: 422, Code: apperr.CodeCropOutOfBounds, Message: err.Error(), Err: err}
	case errors.Is(err, photo.ErrInvalidRotation):
		return &apperr.Error{
			Status:  422,
			Code:    apperr.CodeValidation,
			Message: "invalid rotation",
			Details: map[string]any{"rotation": "must be a multiple of 90"},
			Err:     err,
		}
	}
	return err
}
