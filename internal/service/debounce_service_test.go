package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingFlow struct {
	mu    sync.Mutex
	turns []string
}

func (f *recordingFlow) HandleText(_ context.Context, number, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, number+": "+text)
}

func (f *recordingFlow) Restart(context.Context, string) {}

func TestDebounceJoinsFragments(t *testing.T) {
	flow := &recordingFlow{}
	svc := NewDebounceService(30, flow, nopLogger{})

	svc.Enqueue("n1", "hola")
	svc.Enqueue("n1", "quiero la cabaña")
	svc.Enqueue("n1", "para dos personas")
	svc.FlushAll()

	require.Len(t, flow.turns, 1)
	assert.Equal(t, "n1: hola quiero la cabaña para dos personas", flow.turns[0])
}

func TestDebounceBuffersPerNumber(t *testing.T) {
	flow := &recordingFlow{}
	svc := NewDebounceService(30, flow, nopLogger{})

	svc.Enqueue("n1", "uno")
	svc.Enqueue("n2", "dos")
	svc.FlushAll()

	assert.Len(t, flow.turns, 2)
	assert.ElementsMatch(t, []string{"n1: uno", "n2: dos"}, flow.turns)
}

func TestFlushedBufferIsGone(t *testing.T) {
	flow := &recordingFlow{}
	svc := NewDebounceService(30, flow, nopLogger{})

	svc.Enqueue("n1", "hola")
	svc.FlushAll()
	svc.FlushAll()

	assert.Len(t, flow.turns, 1)
}
