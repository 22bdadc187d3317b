// Package vision detects brand logos in images with Google Cloud Vision.
package vision

import (
	"context"
	"fmt"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
)

// LogoDetector calls Vision LOGO_DETECTION. Credentials come from
// Application Default Credentials.
type LogoDetector struct {
	client   *gvision.ImageAnnotatorClient
	minScore float32
}

// NewLogoDetector creates a detector. Logos scored below minScore are ignored.
func NewLogoDetector(ctx context.Context, minScore float32) (*LogoDetector, error) {
	client, err := gvision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating vision client: %w", err)
	}
	return &LogoDetector{client: client, minScore: minScore}, nil
}

// Close releases the Vision API client.
func (d *LogoDetector) Close() error {
	return d.client.Close()
}

// DetectLogos returns detected logo names, most confident first.
func (d *LogoDetector) DetectLogos(ctx context.Context, image []byte) ([]string, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: image},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_LOGO_DETECTION, MaxResults: 5},
				},
			},
		},
	}

	resp, err := d.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision API request failed: %w", err)
	}
	return logoNames(resp, d.minScore)
}

func logoNames(resp *visionpb.BatchAnnotateImagesResponse, minScore float32) ([]string, error) {
	if len(resp.GetResponses()) == 0 {
		return nil, nil
	}

	first := resp.GetResponses()[0]
	if first.GetError() != nil {
		return nil, fmt.Errorf("vision API error: %s", first.GetError().GetMessage())
	}

	names := make([]string, 0, len(first.GetLogoAnnotations()))
	for _, logo := range first.GetLogoAnnotations() {
		if logo.GetScore() < minScore {
			continue
		}
		names = append(names, logo.GetDescription())
	}
	return names, nil
}
