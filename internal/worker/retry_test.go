package worker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brushwork-ai/brushwork/internal/domain"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		attempt  int
		poolSize int
		kind     domain.FailureKind
		retry    bool
	}{
		{"pool empty stops immediately", 0, 3, domain.FailurePoolEmpty, false},
		{"permanent stops immediately", 0, 3, domain.FailurePermanent, false},
		{"quota retries within budget", 0, 2, domain.FailureQuota, true},
		{"transient retries within budget", 2, 2, domain.FailureTransient, true},
		{"quota stops at budget", 3, 2, domain.FailureQuota, false},
		{"transient stops past budget", 5, 2, domain.FailureTransient, false},
		{"single key gets two attempts", 0, 1, domain.FailureQuota, true},
		{"single key stops after two", 1, 1, domain.FailureQuota, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.attempt, tt.poolSize, &domain.GenerationError{Kind: tt.kind, Message: "boom"})
			assert.Equal(t, tt.retry, d.Retry)
			if !tt.retry {
				assert.NotEmpty(t, d.Reason)
			}
		})
	}
}

func TestDecidePermanentKeepsMessage(t *testing.T) {
	genErr := &domain.GenerationError{Kind: domain.FailurePermanent, Message: "content blocked by safety filter"}
	d := Decide(0, 3, genErr)
	assert.False(t, d.Retry)
	assert.Equal(t, "content blocked by safety filter", d.Reason)

	long := strings.Repeat("x", maxReasonLen+50)
	d = Decide(0, 3, &domain.GenerationError{Kind: domain.FailurePermanent, Message: long})
	assert.Equal(t, long[:maxReasonLen]+"...", d.Reason)
}

func TestDecideBudgetIsTwicePoolSize(t *testing.T) {
	// An item that always fails with quota errors is attempted exactly
	// 2*N times: attempts 0..2N-2 retry, attempt 2N-1 stops.
	const n = 4
	quota := &domain.GenerationError{Kind: domain.FailureQuota, Message: "rate limit"}
	for attempt := 0; attempt < 2*n-1; attempt++ {
		assert.True(t, Decide(attempt, n, quota).Retry, "attempt %d", attempt)
	}
	assert.False(t, Decide(2*n-1, n, quota).Retry)
}
