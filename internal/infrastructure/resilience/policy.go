package resilience

import "time"

// Policy is the retry and breaker budget for one upstream of the retrieval
// engine. Budgets stay tight on purpose: a search request fans out to the
// embedding provider and both indexes at once, and the orchestrator's branch
// timeouts bound the whole attempt, so retry delays here are measured in
// hundreds of milliseconds.
type Policy struct {
	// MaxAttempts counts the first call; 1 means no retries.
	MaxAttempts  int
	InitialDelay time.Duration
	// MaxDelay caps the delay, which doubles per attempt.
	MaxDelay time.Duration

	BreakerDisabled     bool
	BreakerMinCalls     uint32
	BreakerFailureRatio float64
	// BreakerCooldown is how long an open breaker rejects calls before
	// letting probes through.
	BreakerCooldown time.Duration
	BreakerProbes   uint32
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     400 * time.Millisecond,

		BreakerMinCalls:     10,
		BreakerFailureRatio: 0.5,
		BreakerCooldown:     30 * time.Second,
		BreakerProbes:       2,
	}
}

// QueryPolicy suits the latency-sensitive search path: one retry, short
// delay. Indexing calls in the worker keep DefaultPolicy.
func QueryPolicy() Policy {
	return Policy{
		MaxAttempts:  2,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,

		BreakerMinCalls:     10,
		BreakerFailureRatio: 0.5,
		BreakerCooldown:     15 * time.Second,
		BreakerProbes:       2,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.BreakerMinCalls == 0 {
		p.BreakerMinCalls = def.BreakerMinCalls
	}
	if p.BreakerFailureRatio <= 0 || p.BreakerFailureRatio > 1 {
		p.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if p.BreakerCooldown <= 0 {
		p.BreakerCooldown = def.BreakerCooldown
	}
	if p.BreakerProbes == 0 {
		p.BreakerProbes = def.BreakerProbes
	}
	return p
}
