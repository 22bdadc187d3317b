package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fleveque/listing-check/internal/brand"
	"github.com/fleveque/listing-check/internal/metrics"
	"github.com/fleveque/listing-check/internal/model"
	"github.com/fleveque/listing-check/internal/storage"
)

// LogoDetector finds brand logos in an image. vision.LogoDetector implements it.
type LogoDetector interface {
	DetectLogos(ctx context.Context, image []byte) ([]string, error)
}

// Verifier runs the upload pipeline:
//
//	save → detect brands → brand gate → score → verdict
//
// Each step runs in order within the caller's goroutine; the Verifier holds
// only read-only collaborators and is safe for concurrent use.
type Verifier struct {
	fs        *storage.FileSystem
	detector  *brand.Detector
	scorer    *Scorer
	logos     LogoDetector // nil: brand from the filename only
	urlPrefix string
	logger    *zap.Logger
}

// NewVerifier creates a verifier. urlPrefix is where the upload directory is
// served over HTTP; it's used to build Verdict.ImagePath.
func NewVerifier(fs *storage.FileSystem, detector *brand.Detector, scorer *Scorer, urlPrefix string, logger *zap.Logger) *Verifier {
	return &Verifier{
		fs:        fs,
		detector:  detector,
		scorer:    scorer,
		urlPrefix: urlPrefix,
		logger:    logger,
	}
}

// WithLogoDetector enables logo detection as the image-side brand source
// for uploads whose filename names no brand.
func (v *Verifier) WithLogoDetector(d LogoDetector) *Verifier {
	v.logos = d
	return v
}

// Keywords exposes the detector's keyword list for display.
func (v *Verifier) Keywords() []string { return v.detector.Keywords() }

// Verify checks an upload against its description.
func (v *Verifier) Verify(ctx context.Context, upload model.Upload, description string) (*model.Verdict, error) {
	description = strings.ToLower(strings.TrimSpace(description))

	if _, err := v.fs.SaveUpload(upload.Filename, upload.Data); err != nil {
		metrics.VerifyErrorsTotal.WithLabelValues("save").Inc()
		return nil, fmt.Errorf("saving upload: %w", err)
	}
	imagePath := v.fs.PublicURL(v.urlPrefix, upload.Filename)

	fileBrand := v.imageBrand(ctx, upload)
	descBrand := v.detector.Detect(description)

	if brand.Mismatch(fileBrand, descBrand) {
		verdict := model.NewBrandMismatch(fileBrand, descBrand)
		verdict.Threshold = v.scorer.Threshold()
		v.finish(verdict, imagePath, description)
		return verdict, nil
	}

	score, err := v.scorer.Score(ctx, upload.Data, description)
	if err != nil {
		metrics.VerifyErrorsTotal.WithLabelValues("score").Inc()
		return nil, fmt.Errorf("scoring upload %s: %w", upload.Filename, err)
	}
	metrics.SimilarityScore.Observe(score)

	verdict := model.NewScored(score, v.scorer.Threshold())
	verdict.FileBrand = fileBrand
	verdict.DescriptionBrand = descBrand
	v.finish(verdict, imagePath, description)
	return verdict, nil
}

func (v *Verifier) finish(verdict *model.Verdict, imagePath, description string) {
	verdict.ImagePath = imagePath
	verdict.Description = description
	metrics.VerdictsTotal.WithLabelValues(string(verdict.Outcome)).Inc()

	fields := []zap.Field{
		zap.String("image", imagePath),
		zap.String("outcome", string(verdict.Outcome)),
		zap.String("file_brand", verdict.FileBrand),
		zap.String("description_brand", verdict.DescriptionBrand),
	}
	if verdict.Score != nil {
		fields = append(fields, zap.Float64("score", *verdict.Score))
	}
	v.logger.Info("verdict", fields...)
}

// imageBrand reads the brand from the filename, then from detected logos.
// Logo detection failures are logged and treated as no brand.
func (v *Verifier) imageBrand(ctx context.Context, upload model.Upload) string {
	if b := v.detector.Detect(upload.Filename); b != brand.None || v.logos == nil {
		return b
	}

	names, err := v.logos.DetectLogos(ctx, upload.Data)
	if err != nil {
		v.logger.Warn("logo detection failed", zap.String("filename", upload.Filename), zap.Error(err))
		return brand.None
	}
	for _, name := range names {
		if b := v.detector.Detect(name); b != brand.None {
			return b
		}
	}
	return brand.None
}
