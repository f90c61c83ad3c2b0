package gemini

import (
	"errors"

	"google.golang.org/genai"

	"github.com/brushwork-ai/brushwork/internal/domain"
)

// classify maps an SDK error onto the pipeline's failure kinds. Quota
// exhaustion cools the key down, other 4xx answers are not retried,
// everything else (network, 5xx) is worth another attempt.
func classify(err error) *domain.GenerationError {
	var genErr *domain.GenerationError
	if errors.As(err, &genErr) {
		return genErr
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED":
			return domain.NewGenerationError(domain.FailureQuota, "quota exhausted: %s", apiErr.Message)
		case apiErr.Code >= 400 && apiErr.Code < 500:
			return domain.NewGenerationError(domain.FailurePermanent, "rejected by API: %s", apiErr.Message)
		default:
			return domain.NewGenerationError(domain.FailureTransient, "API error %d: %s", apiErr.Code, apiErr.Message)
		}
	}

	return domain.NewGenerationError(domain.FailureTransient, "%v", err)
}
