package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManager_EmitTypedDeliversToSubscribers(t *testing.T) {
	m := NewManager()
	var received []EventWithData
	m.Subscribe(func(e EventWithData) { received = append(received, e) })

	m.EmitTyped("assignment", &RunStartedData{})

	assert.Len(t, received, 1)
	assert.Equal(t, RunStarted, received[0].Type)
}

func TestManager_UnsubscribeStopsDelivery(t *testing.T) {
	m := NewManager()
	count := 0
	unsub := m.Subscribe(func(e EventWithData) { count++ })
	unsub()

	m.EmitTyped("assignment", &RunStartedData{})

	assert.Equal(t, 0, count)
}

func TestManager_NilManagerEmitIsNoop(t *testing.T) {
	var m *Manager
	assert.NotPanics(t, func() { m.EmitTyped("assignment", &RunStartedData{}) })
}

func TestProgressReporter_FinalReportBypassesThrottle(t *testing.T) {
	m := NewManager()
	var received []EventWithData
	m.Subscribe(func(e EventWithData) { received = append(received, e) })

	r := NewProgressReporter(m, "assignment")
	r.Report("lp_build", 1, 1, "done")

	assert.Len(t, received, 1)
}

func TestProgressReporter_NilManagerIsNoop(t *testing.T) {
	r := NewProgressReporter(nil, "assignment")
	assert.NotPanics(t, func() { r.Report("lp_build", 1, 1, "done") })
}
