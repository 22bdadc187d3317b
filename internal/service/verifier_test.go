package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fleveque/listing-check/internal/brand"
	"github.com/fleveque/listing-check/internal/config"
	"github.com/fleveque/listing-check/internal/model"
	"github.com/fleveque/listing-check/internal/storage"
)

type verifierDeps struct {
	verifier *Verifier
	embedder *fakeEmbedder
	dir      string
}

func setupVerifier(t *testing.T, threshold float64) verifierDeps {
	t.Helper()

	dir := t.TempDir()
	fs, err := storage.NewFileSystem(dir)
	require.NoError(t, err)

	detector, err := brand.NewDetector(config.DefaultKeywords)
	require.NoError(t, err)

	emb := newFakeEmbedder()
	scorer := NewScorer(emb, NewImageProcessor(64), config.DefaultPromptTemplates, threshold)

	return verifierDeps{
		verifier: NewVerifier(fs, detector, scorer, "/static/uploads", zaptest.NewLogger(t)),
		embedder: emb,
		dir:      dir,
	}
}

func TestVerify_BrandMismatchSkipsScoring(t *testing.T) {
	d := setupVerifier(t, config.DefaultThreshold)

	verdict, err := d.verifier.Verify(context.Background(),
		model.Upload{Filename: "iphone13.png", Data: testImage()}, "Samsung Galaxy S21")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeBrandMismatch, verdict.Outcome)
	assert.Equal(t, model.MessageBrandMismatch, verdict.Message)
	assert.Nil(t, verdict.Score)
	assert.Equal(t, "iphone", verdict.FileBrand)
	assert.Equal(t, "samsung", verdict.DescriptionBrand)
	assert.Equal(t, 0, d.embedder.callCount())

	_, err = os.Stat(filepath.Join(d.dir, "iphone13.png"))
	assert.NoError(t, err, "upload is saved even when rejected")
}

func TestVerify_ThresholdIsInclusive(t *testing.T) {
	text := []float32{0.28, 0.96}
	exact, err := CosineSimilarity([]float32{1, 0}, text)
	require.NoError(t, err)

	d := setupVerifier(t, exact)
	d.embedder.defaultText = text

	verdict, err := d.verifier.Verify(context.Background(),
		model.Upload{Filename: "photo.png", Data: testImage()}, "a phone")
	require.NoError(t, err)

	require.NotNil(t, verdict.Score)
	assert.Equal(t, exact, *verdict.Score)
	assert.Equal(t, model.OutcomeMatch, verdict.Outcome)
	assert.Equal(t, model.MessageMatch, verdict.Message)
}

func TestVerify_BelowThreshold(t *testing.T) {
	d := setupVerifier(t, config.DefaultThreshold)

	verdict, err := d.verifier.Verify(context.Background(),
		model.Upload{Filename: "photo.png", Data: testImage()}, "a phone")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeNoMatch, verdict.Outcome)
	assert.Equal(t, model.MessageNoMatch, verdict.Message)
	assert.Equal(t, "0.000", verdict.ScoreText())
	assert.Equal(t, 1, d.embedder.callCount())
}

func TestVerify_SameBrandIsScored(t *testing.T) {
	d := setupVerifier(t, config.DefaultThreshold)
	d.embedder.defaultText = []float32{1, 0}

	verdict, err := d.verifier.Verify(context.Background(),
		model.Upload{Filename: "Samsung_S21.png", Data: testImage()}, "samsung s21")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeMatch, verdict.Outcome)
	assert.Equal(t, "samsung", verdict.FileBrand)
	assert.Equal(t, "samsung", verdict.DescriptionBrand)
}

func TestVerify_NormalizesDescription(t *testing.T) {
	d := setupVerifier(t, config.DefaultThreshold)

	verdict, err := d.verifier.Verify(context.Background(),
		model.Upload{Filename: "galaxy s21.png", Data: testImage()}, "  Galaxy S21 Ultra \n")
	require.NoError(t, err)

	assert.Equal(t, "galaxy s21 ultra", verdict.Description)
	assert.Equal(t, "galaxy s21 ultra", d.embedder.last.Texts[0])
	assert.Equal(t, "/static/uploads/galaxy%20s21.png", verdict.ImagePath)
}

func TestVerify_Deterministic(t *testing.T) {
	d := setupVerifier(t, config.DefaultThreshold)
	d.embedder.defaultText = []float32{0.4, 0.6}
	upload := model.Upload{Filename: "phone.png", Data: testImage()}

	first, err := d.verifier.Verify(context.Background(), upload, "phone")
	require.NoError(t, err)
	second, err := d.verifier.Verify(context.Background(), upload, "phone")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestVerify_Errors(t *testing.T) {
	t.Run("invalid filename", func(t *testing.T) {
		d := setupVerifier(t, config.DefaultThreshold)
		_, err := d.verifier.Verify(context.Background(), model.Upload{Filename: "../x.png", Data: testImage()}, "phone")
		assert.ErrorIs(t, err, storage.ErrInvalidFilename)
	})

	t.Run("corrupt image", func(t *testing.T) {
		d := setupVerifier(t, config.DefaultThreshold)
		_, err := d.verifier.Verify(context.Background(), model.Upload{Filename: "x.png", Data: []byte("garbage")}, "phone")
		assert.ErrorIs(t, err, ErrImageDecode)
		assert.Equal(t, 0, d.embedder.callCount())
	})

	t.Run("backend failure", func(t *testing.T) {
		d := setupVerifier(t, config.DefaultThreshold)
		d.embedder.err = errBackendDown
		_, err := d.verifier.Verify(context.Background(), model.Upload{Filename: "x.png", Data: testImage()}, "phone")
		assert.True(t, errors.Is(err, errBackendDown))
	})
}

func TestVerify_LogoDetection(t *testing.T) {
	t.Run("logo supplies image brand", func(t *testing.T) {
		d := setupVerifier(t, config.DefaultThreshold)
		logos := &fakeLogos{names: []string{"Google", "Samsung Electronics"}}
		d.verifier.WithLogoDetector(logos)

		verdict, err := d.verifier.Verify(context.Background(),
			model.Upload{Filename: "photo.png", Data: testImage()}, "iphone 13")
		require.NoError(t, err)
		assert.Equal(t, model.OutcomeBrandMismatch, verdict.Outcome)
		assert.Equal(t, "samsung", verdict.FileBrand)
		assert.Equal(t, 1, logos.calls)
	})

	t.Run("filename brand wins", func(t *testing.T) {
		d := setupVerifier(t, config.DefaultThreshold)
		logos := &fakeLogos{names: []string{"Samsung"}}
		d.verifier.WithLogoDetector(logos)

		verdict, err := d.verifier.Verify(context.Background(),
			model.Upload{Filename: "iphone.png", Data: testImage()}, "iphone 13")
		require.NoError(t, err)
		assert.Equal(t, "iphone", verdict.FileBrand)
		assert.Equal(t, 0, logos.calls)
	})

	t.Run("detection failure is ignored", func(t *testing.T) {
		d := setupVerifier(t, config.DefaultThreshold)
		d.verifier.WithLogoDetector(&fakeLogos{err: errors.New("quota exceeded")})

		verdict, err := d.verifier.Verify(context.Background(),
			model.Upload{Filename: "photo.png", Data: testImage()}, "iphone 13")
		require.NoError(t, err)
		assert.Equal(t, brand.None, verdict.FileBrand)
		assert.Equal(t, model.OutcomeNoMatch, verdict.Outcome)
	})
}
