// Package prompt turns free-form user text into the discrete image
// prompts a batch runs over, and enriches prompts with a character
// description extracted from a reference image.
package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/brushwork-ai/brushwork/internal/domain"
	"github.com/brushwork-ai/brushwork/internal/keypool"
)

// TextModel is the slice of the Gemini client the splitter needs.
type TextModel interface {
	GenerateText(ctx context.Context, key, prompt string) (string, error)
	DescribeImage(ctx context.Context, key, path, instruction string) (string, error)
}

// SplitResult carries the prompts plus how they were obtained.
type SplitResult struct {
	Prompts  []string `json:"prompts"`
	Count    int      `json:"count"`
	Analysis string   `json:"analysis"`
	KeyUsed  string   `json:"api_key_used,omitempty"`
}

// Splitter extracts prompts either with the text model or with plain
// pattern matching as a fallback.
type Splitter struct {
	pool   *keypool.Pool
	model  TextModel
	logger zerolog.Logger
}

func NewSplitter(pool *keypool.Pool, model TextModel, logger zerolog.Logger) *Splitter {
	return &Splitter{
		pool:   pool,
		model:  model,
		logger: logger.With().Str("component", "prompt").Logger(),
	}
}

// Numbered items and bullet items, checked in that order.
var listPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)(\d+\.\s*[^0-9\n]+)`),
	regexp.MustCompile(`(?m)([•-]\s*[^\n]+)`),
}

// SplitSimple extracts prompts by pattern matching alone. The first
// list style that matches wins; when no list structure is found, every
// non-trivial line counts as one prompt.
func (s *Splitter) SplitSimple(text string) SplitResult {
	var prompts []string
	seen := make(map[string]bool)
	for _, pattern := range listPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			p := strings.TrimSpace(m[1])
			if len(p) > 5 && !seen[p] {
				seen[p] = true
				prompts = append(prompts, p)
			}
		}
		if len(prompts) > 0 {
			break
		}
	}

	if len(prompts) == 0 {
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if len(line) > 10 {
				prompts = append(prompts, line)
			}
		}
	}

	return SplitResult{
		Prompts:  prompts,
		Count:    len(prompts),
		Analysis: fmt.Sprintf("pattern matching found %d prompts", len(prompts)),
		KeyUsed:  "pattern",
	}
}

const splitInstruction = `You extract image-generation requests from free-form text.

TASK: analyze the text below and pull out the concrete image prompts it
contains. Do not invent examples or templates.

TEXT:
%q

RULES:
1. Only extract actual image-generation requests present in the text.
2. Never add sample or placeholder prompts.
3. Each prompt must be a self-contained request for one image.
4. If the text holds a single idea, return exactly one prompt.
5. If it holds several distinct ideas, return one prompt per idea.

Answer with JSON only, no surrounding text:
{
  "prompts": ["first request", "second request"],
  "count": <actual number of prompts>,
  "analysis": "found N concrete image requests"
}`

var jsonBlock = regexp.MustCompile(`(?s)\{.*\}`)

// SplitAI asks the text model to do the extraction. The key that served
// the request is cooled down if it trips quota, like any generation.
func (s *Splitter) SplitAI(ctx context.Context, text string) (SplitResult, error) {
	avail := s.pool.Available()
	if len(avail) == 0 {
		return SplitResult{}, domain.NewGenerationError(domain.FailurePoolEmpty,
			"no credentials available to split prompts")
	}
	key := avail[0]

	answer, err := s.model.GenerateText(ctx, key, fmt.Sprintf(splitInstruction, text))
	if err != nil {
		s.coolDownOnQuota(key, err)
		return SplitResult{}, err
	}

	raw := jsonBlock.FindString(answer)
	if raw == "" {
		return SplitResult{}, fmt.Errorf("model answer contains no JSON")
	}
	var parsed struct {
		Prompts  []string `json:"prompts"`
		Analysis string   `json:"analysis"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return SplitResult{}, fmt.Errorf("parse model answer: %w", err)
	}

	var prompts []string
	for _, p := range parsed.Prompts {
		if p = strings.TrimSpace(p); p != "" {
			prompts = append(prompts, p)
		}
	}
	if len(prompts) == 0 {
		return SplitResult{}, fmt.Errorf("model returned no usable prompts")
	}

	analysis := parsed.Analysis
	if analysis == "" {
		analysis = "split succeeded"
	}
	s.logger.Info().Int("count", len(prompts)).Msg("prompts split by model")
	return SplitResult{
		Prompts:  prompts,
		Count:    len(prompts),
		Analysis: analysis,
		KeyUsed:  domain.KeySuffix(key),
	}, nil
}

const analyzeInstruction = `Describe the FIXED characteristics of the character and the
overall palette of this image so another model can redraw it faithfully. Cover, in order:

1. CHARACTER COLORS: exact hair color, eye color, skin tone, the color of each
   main clothing piece, and accessory colors.
2. OVERALL IMAGE COLORS: dominant tone (warm, cool, neutral, pastel, vibrant),
   main colors, background color, lighting and shadows, contrast, saturation.
3. SHAPE AND STYLE: hairstyle, outfit style, fashion style.
4. ART STYLE: anime, realistic, cartoon, chibi, semi-realistic, and so on.

Answer as one compact paragraph of comma-separated attributes.`

// AnalyzeCharacter extracts a redrawable character description from the
// image at path.
func (s *Splitter) AnalyzeCharacter(ctx context.Context, imagePath string) (string, error) {
	avail := s.pool.Available()
	if len(avail) == 0 {
		return "", domain.NewGenerationError(domain.FailurePoolEmpty,
			"no credentials available to analyze the image")
	}
	key := avail[0]

	analysis, err := s.model.DescribeImage(ctx, key, imagePath, analyzeInstruction)
	if err != nil {
		s.coolDownOnQuota(key, err)
		return "", err
	}
	return strings.TrimSpace(analysis), nil
}

func (s *Splitter) coolDownOnQuota(key string, err error) {
	var genErr *domain.GenerationError
	if errors.As(err, &genErr) && genErr.Kind == domain.FailureQuota {
		s.pool.MarkFailed(key)
	}
}

// EnhanceWithCharacter folds a character analysis into a prompt so the
// generated image keeps the reference character's look.
func EnhanceWithCharacter(prompt, analysis string) string {
	analysis = strings.TrimSpace(analysis)
	if analysis == "" {
		return prompt
	}
	return fmt.Sprintf("%s, featuring a character with these traits: %s, using the same color palette and lighting as the reference image", prompt, analysis)
}
