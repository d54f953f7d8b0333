// Package ocr extracts receipt text using the Google Cloud Vision API.
//
// Credentials come from the environment (GOOGLE_APPLICATION_CREDENTIALS) or
// from explicit client options passed to NewClient.
package ocr

import (
	"context"
	"fmt"

	vision "cloud.google.com/go/vision/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

// maxAnnotations bounds the number of text annotations requested per image.
// Only the first annotation is consumed; it carries the full transcription.
const maxAnnotations = 10

// textAnnotator is the slice of the Vision client the extractor uses.
// It exists so tests can substitute the remote call.
type textAnnotator interface {
	DetectTexts(ctx context.Context, img *visionpb.Image, ictx *visionpb.ImageContext, maxResults int, opts ...gax.CallOption) ([]*visionpb.EntityAnnotation, error)
	Close() error
}

// Client wraps a Vision image annotator for receipt text extraction.
type Client struct {
	annotator textAnnotator
}

// NewClient creates an OCR client.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	annotator, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ocr: create image annotator client: %w", err)
	}
	return &Client{annotator: annotator}, nil
}

// ExtractText runs text detection on the given image bytes and returns the
// full transcription. An empty string is a valid result meaning no text was
// found; it is not an error.
func (c *Client) ExtractText(ctx context.Context, imageBytes []byte) (string, error) {
	annotations, err := c.annotator.DetectTexts(ctx, &visionpb.Image{Content: imageBytes}, nil, maxAnnotations)
	if err != nil {
		return "", fmt.Errorf("ocr: text detection: %w", err)
	}

	if len(annotations) == 0 {
		return "", nil
	}

	// The first annotation aggregates the whole document; the rest are
	// per-token entries.
	return annotations[0].GetDescription(), nil
}

// Close releases the underlying Vision client connection.
func (c *Client) Close() error {
	return c.annotator.Close()
}
