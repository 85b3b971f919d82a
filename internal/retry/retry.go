package retry

import (
	"fmt"
	"time"

	"CryptoDCA/internal/model"
)

// Policy bounds the retries of one error streak within a cycle.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func (p Policy) String() string {
	return fmt.Sprintf("%d attempts every %s", p.MaxAttempts, p.Backoff)
}

type classPolicies struct {
	funds     Policy
	transient Policy
}

var table = map[model.CycleKind]classPolicies{
	model.CycleMinutely: {
		funds:     Policy{MaxAttempts: 3, Backoff: 10 * time.Second},
		transient: Policy{MaxAttempts: 3, Backoff: 10 * time.Second},
	},
	model.CycleDaily: {
		funds:     Policy{MaxAttempts: 1, Backoff: 12 * time.Hour},
		transient: Policy{MaxAttempts: 12, Backoff: time.Hour},
	},
	model.CycleWeekly: {
		funds:     Policy{MaxAttempts: 2, Backoff: 24 * time.Hour},
		transient: Policy{MaxAttempts: 24, Backoff: time.Hour},
	},
	model.CycleBiWeekly: {
		funds:     Policy{MaxAttempts: 2, Backoff: 24 * time.Hour},
		transient: Policy{MaxAttempts: 24, Backoff: time.Hour},
	},
	model.CycleMonthly: {
		funds:     Policy{MaxAttempts: 3, Backoff: 24 * time.Hour},
		transient: Policy{MaxAttempts: 24, Backoff: time.Hour},
	},
}

// PolicyFor looks up the retry policy of a recoverable error class. The second result
// is false for fatal or unknown classes and for unknown cycles.
func PolicyFor(class model.ErrorClass, cycle model.CycleKind) (Policy, bool) {
	p, ok := table[cycle]
	if !ok {
		return Policy{}, false
	}
	switch class {
	case model.ClassFunds:
		return p.funds, true
	case model.ClassTransient:
		return p.transient, true
	default:
		return Policy{}, false
	}
}
