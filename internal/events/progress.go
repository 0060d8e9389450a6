package events

import "time"

// defaultThrottle caps stage-progress emission at 10 updates/sec, matching
// the teacher's ProgressReporter default.
const defaultThrottle = 100 * time.Millisecond

// ProgressReporter emits throttled StageProgress events for one
// generate/execute run, so a slow account-by-account pipeline doesn't
// flood subscribers.
type ProgressReporter struct {
	manager     *Manager
	module      string
	lastReport  time.Time
	minInterval time.Duration
}

// NewProgressReporter builds a reporter bound to one run. manager may be
// nil, in which case every Report call is a no-op.
func NewProgressReporter(manager *Manager, module string) *ProgressReporter {
	return &ProgressReporter{manager: manager, module: module, minInterval: defaultThrottle}
}

// Report emits a throttled StageProgress event. current == total always
// bypasses the throttle so the final "100%" update is never dropped.
func (r *ProgressReporter) Report(stage string, current, total int, message string) {
	if r.manager == nil {
		return
	}
	now := time.Now()
	if now.Sub(r.lastReport) < r.minInterval && current != total {
		return
	}
	r.lastReport = now
	r.manager.EmitTyped(r.module, &StageProgressData{Stage: stage, Current: current, Total: total, Message: message})
}
