package worker

import (
	"fmt"

	"github.com/brushwork-ai/brushwork/internal/domain"
)

// attemptsPerKey bounds retries: each key gets at most two attempts
// over an item's lifetime, so the budget is 2×(pool size).
const attemptsPerKey = 2

// maxReasonLen caps the recorded error so one verbose API response
// cannot bloat the task log.
const maxReasonLen = 200

// Decision is the retry policy's verdict for one failed attempt.
type Decision struct {
	Retry  bool
	Reason string // the item's error message when Retry is false
}

// Decide maps (attempt index, pool size, classified failure) to a
// verdict. It is a pure function: marking the failed key and sleeping
// between attempts are the caller's job.
func Decide(attempt, poolSize int, genErr *domain.GenerationError) Decision {
	switch genErr.Kind {
	case domain.FailurePoolEmpty:
		return Decision{Reason: "no credentials available, all API keys are cooling down"}
	case domain.FailurePermanent:
		return Decision{Reason: truncate(genErr.Message, maxReasonLen)}
	case domain.FailureQuota, domain.FailureTransient:
		budget := attemptsPerKey * poolSize
		if attempt+1 < budget {
			return Decision{Retry: true}
		}
		return Decision{Reason: fmt.Sprintf("gave up after %d attempts", budget)}
	default:
		return Decision{Reason: fmt.Sprintf("unclassified failure kind %q", genErr.Kind)}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
