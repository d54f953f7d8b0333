// Package classify assigns a spending category to extracted receipt text
// using a Gemini model.
package classify

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	// FallbackCategory is returned when the model yields no usable label.
	FallbackCategory = "Misc"

	// maxCategoryTokens bounds the response length; one word is enough.
	maxCategoryTokens = 10

	// categoryTemperature keeps labeling consistent across identical receipts.
	categoryTemperature = 0.3
)

// generateFunc produces raw model output for a prompt. It exists so tests
// can substitute the remote call.
type generateFunc func(ctx context.Context, model, prompt string) (string, error)

// Classifier maps receipt text to one category label.
type Classifier struct {
	model      string
	categories []string
	generate   generateFunc
}

// NewClassifier creates a Classifier backed by the Gemini API. The API key is
// read from the environment (GEMINI_API_KEY or GOOGLE_API_KEY).
func NewClassifier(ctx context.Context, model string, categories []string) (*Classifier, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("classify: create genai client: %w", err)
	}

	c := &Classifier{
		model:      model,
		categories: categories,
	}
	c.generate = func(ctx context.Context, model, prompt string) (string, error) {
		contents := []*genai.Content{
			{
				Role:  "user",
				Parts: []*genai.Part{{Text: prompt}},
			},
		}
		cfg := &genai.GenerateContentConfig{
			MaxOutputTokens: maxCategoryTokens,
			Temperature:     genai.Ptr(float32(categoryTemperature)),
		}
		resp, err := client.Models.GenerateContent(ctx, model, contents, cfg)
		if err != nil {
			return "", fmt.Errorf("classify: generate content: %w", err)
		}
		return resp.Text(), nil
	}
	return c, nil
}

// Categorize returns one category label for the given receipt text.
//
// An empty or whitespace-only model response falls back to Misc. Any other
// label is passed through verbatim, including labels outside the configured
// set; callers deciding to tighten this should do so explicitly rather than
// here.
func (c *Classifier) Categorize(ctx context.Context, text string) (string, error) {
	raw, err := c.generate(ctx, c.model, buildPrompt(c.categories, text))
	if err != nil {
		return "", err
	}

	label := strings.TrimSpace(raw)
	if label == "" {
		return FallbackCategory, nil
	}
	return label, nil
}

func buildPrompt(categories []string, text string) string {
	var options string
	switch len(categories) {
	case 0:
		options = FallbackCategory
	case 1:
		options = categories[0]
	default:
		options = strings.Join(categories[:len(categories)-1], ", ") + ", or " + categories[len(categories)-1]
	}

	return fmt.Sprintf(
		"Given the following receipt details, determine which category it belongs to "+
			"from these options: %s. Return only one word representing the category.\n\n"+
			"Receipt Details:\n%s\n\nCategory:",
		options, text,
	)
}
