// Package gemini wraps the Google Gemini API for image generation and
// the text prompts the pipeline needs around it.
package gemini

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/brushwork-ai/brushwork/internal/domain"
	"github.com/brushwork-ai/brushwork/internal/storage"
)

const (
	// DefaultImageModel is the image-capable Gemini model.
	DefaultImageModel = "gemini-2.0-flash-preview-image-generation"
	// DefaultTextModel handles prompt splitting and image analysis.
	DefaultTextModel = "gemini-2.0-flash"
)

// Client calls Gemini with a caller-supplied API key per request. Keys
// rotate between attempts, so the underlying SDK client is built fresh
// for every call rather than cached.
type Client struct {
	imageModel string
	textModel  string
	logger     zerolog.Logger
}

func New(imageModel, textModel string, logger zerolog.Logger) *Client {
	if imageModel == "" {
		imageModel = DefaultImageModel
	}
	if textModel == "" {
		textModel = DefaultTextModel
	}
	return &Client{
		imageModel: imageModel,
		textModel:  textModel,
		logger:     logger.With().Str("component", "gemini").Logger(),
	}
}

// The image model rejects text-only requests, so prompts without a
// reference image carry a blank 1x1 canvas instead.
var placeholderPNG = makePlaceholderPNG()

func makePlaceholderPNG() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func (c *Client) connect(ctx context.Context, key string) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
}

// Generate produces one image for the prompt. When refImagePath is set
// the file's bytes are attached as the reference; otherwise the blank
// placeholder keeps the multimodal request valid. Errors come back as
// *domain.GenerationError so the caller can decide whether to retry.
func (c *Client) Generate(ctx context.Context, key, prompt, refImagePath string) ([]byte, error) {
	imgData := placeholderPNG
	mimeType := "image/png"
	if refImagePath != "" {
		data, err := os.ReadFile(refImagePath)
		if err != nil {
			return nil, domain.NewGenerationError(domain.FailurePermanent, "reference image unreadable: %v", err)
		}
		imgData = data
		mimeType = storage.MIMEType(refImagePath)
	}

	client, err := c.connect(ctx, key)
	if err != nil {
		return nil, classify(err)
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: imgData}},
		},
	}}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	resp, err := client.Models.GenerateContent(ctx, c.imageModel, contents, config)
	if err != nil {
		return nil, classify(err)
	}

	return imageFromResponse(resp)
}

// imageFromResponse extracts the generated image. A text-only answer
// means the model declined the request; retrying with another key
// will not change its mind. An answer with neither image nor text is
// a flaky response, worth another key.
func imageFromResponse(resp *genai.GenerateContentResponse) ([]byte, error) {
	if img := firstImage(resp); img != nil {
		return img, nil
	}
	if text := firstText(resp); text != "" {
		return nil, domain.NewGenerationError(domain.FailurePermanent,
			"model returned no image: %s", text)
	}
	return nil, domain.NewGenerationError(domain.FailureTransient,
		"model returned an empty response")
}

// GenerateText sends a plain text prompt to the text model.
func (c *Client) GenerateText(ctx context.Context, key, prompt string) (string, error) {
	client, err := c.connect(ctx, key)
	if err != nil {
		return "", classify(err)
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
	}}
	resp, err := client.Models.GenerateContent(ctx, c.textModel, contents, nil)
	if err != nil {
		return "", classify(err)
	}
	text := firstText(resp)
	if text == "" {
		return "", domain.NewGenerationError(domain.FailurePermanent, "model returned an empty answer")
	}
	return text, nil
}

// DescribeImage asks the text model about the image at path.
func (c *Client) DescribeImage(ctx context.Context, key, path, instruction string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", domain.NewGenerationError(domain.FailurePermanent, "image unreadable: %v", err)
	}

	client, err := c.connect(ctx, key)
	if err != nil {
		return "", classify(err)
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{
			{Text: instruction},
			{InlineData: &genai.Blob{MIMEType: storage.MIMEType(path), Data: data}},
		},
	}}
	resp, err := client.Models.GenerateContent(ctx, c.textModel, contents, nil)
	if err != nil {
		return "", classify(err)
	}
	text := firstText(resp)
	if text == "" {
		return "", domain.NewGenerationError(domain.FailurePermanent, "model returned an empty answer")
	}
	return text, nil
}

func firstImage(resp *genai.GenerateContentResponse) []byte {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}
