// Package events models the assignment run as a step pipeline that yields
// typed progress events; callers subscribe or ignore (§9: "model the
// assignment run as a step pipeline... callers subscribe or ignore").
//
// Authored fresh against the call shape documented by the teacher's
// internal/queue/progress.go (ProgressReporter) and internal/events's
// typed EventData structs; this repo's own Manager implementation was not
// present in the retrieved reference pack.
package events

import (
	"sync"
	"time"
)

// EventType identifies the kind of event carried by an EventWithData.
type EventType string

const (
	RunStarted      EventType = "run_started"
	PassStarted     EventType = "pass_started"
	StageProgress   EventType = "stage_progress"
	ProposalsReady  EventType = "proposals_ready"
	RunCompleted    EventType = "run_completed"
	RunFailed       EventType = "run_failed"
	BackfillToggled EventType = "backfill_toggled"
)

// EventData is implemented by every typed event payload.
type EventData interface {
	EventType() EventType
}

// EventWithData pairs a typed payload with its timestamp and the module
// that emitted it.
type EventWithData struct {
	Type      EventType
	Timestamp time.Time
	Module    string
	Data      EventData
}

// StageProgressData reports coarse-grained progress within one generate()
// call: a current/total pair (each stage reports 1 of 1) and the pipeline
// stage name (index, threshold, lock_classification, lp_build, solve,
// waterfall).
type StageProgressData struct {
	Stage   string
	Current int
	Total   int
	Message string
}

func (d *StageProgressData) EventType() EventType { return StageProgress }

// RunStartedData announces the start of a generate/execute call.
type RunStartedData struct {
	BuildID string
	Scope   string
}

func (d *RunStartedData) EventType() EventType { return RunStarted }

// PassStartedData announces the start of the customer or prospect pass.
type PassStartedData struct {
	Scope string // "customers" | "prospects"
}

func (d *PassStartedData) EventType() EventType { return PassStarted }

// ProposalsReadyData summarizes a completed generate() report.
type ProposalsReadyData struct {
	TotalAccounts      int
	AssignedAccounts   int
	UnassignedAccounts int
	ConflictCount      int
}

func (d *ProposalsReadyData) EventType() EventType { return ProposalsReady }

// RunCompletedData marks a successful generate/execute call.
type RunCompletedData struct {
	BuildID  string
	Duration time.Duration
}

func (d *RunCompletedData) EventType() EventType { return RunCompleted }

// RunFailedData marks a run that was converted to a user-visible failure
// at the orchestrator boundary (§7: "the orchestrator is the single
// boundary where throws are converted to user-visible failures").
type RunFailedData struct {
	BuildID string
	Reason  string
}

func (d *RunFailedData) EventType() EventType { return RunFailed }

// BackfillToggledData reports an enable/disable backfill action.
type BackfillToggledData struct {
	LeavingRepID   string
	BackfillRepID  string
	Enabled        bool
}

func (d *BackfillToggledData) EventType() EventType { return BackfillToggled }

// Subscriber receives every event published on a Manager.
type Subscriber func(EventWithData)

// Manager is a minimal in-process pub/sub hub: callers subscribe with a
// plain function, the orchestrator emits as it steps through the
// pipeline. No persistence, no replay — a dropped event is simply missed
// by a collaborator that subscribed too late, same as the teacher's queue
// progress reporter.
type Manager struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Subscribe registers fn to receive every future EmitTyped call. Returns
// an unsubscribe function.
func (m *Manager) Subscribe(fn Subscriber) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
	idx := len(m.subscribers) - 1
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if idx < len(m.subscribers) {
			m.subscribers[idx] = nil
		}
	}
}

// EmitTyped publishes data to every live subscriber. A nil Manager is a
// valid no-op receiver, mirroring the teacher's "if eventManager == nil,
// return" guard throughout ProgressReporter.
func (m *Manager) EmitTyped(module string, data EventData) {
	if m == nil {
		return
	}
	evt := EventWithData{Type: data.EventType(), Timestamp: time.Now(), Module: module, Data: data}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sub := range m.subscribers {
		if sub != nil {
			sub(evt)
		}
	}
}
