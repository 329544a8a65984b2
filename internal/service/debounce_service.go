package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/SantiagoCTB/whatsapp-ia/internal/pkg/logger"
)

type IDebounceService interface {
	// Enqueue buffers a text fragment for a number and restarts its window.
	Enqueue(number, text string)

	// FlushAll drains every pending buffer immediately. Used on shutdown.
	FlushAll()
}

// DebounceService coalesces rapid-fire message fragments per number. Every
// arrival restarts the window; when it elapses the fragments are joined with
// a single space and dispatched as one turn.
type DebounceService struct {
	window time.Duration
	flow   IFlowService
	log    logger.ILogger

	mu      sync.Mutex
	buffers map[string]*debounceBuffer
}

type debounceBuffer struct {
	fragments []string
	timer     *time.Timer
}

func NewDebounceService(windowSeconds int, flow IFlowService, log logger.ILogger) *DebounceService {
	if windowSeconds < 1 {
		windowSeconds = 1
	}
	return &DebounceService{
		window:  time.Duration(windowSeconds) * time.Second,
		flow:    flow,
		log:     log,
		buffers: make(map[string]*debounceBuffer),
	}
}

func (s *DebounceService) Enqueue(number, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.buffers[number]
	if !ok {
		buf = &debounceBuffer{}
		s.buffers[number] = buf
	}
	buf.fragments = append(buf.fragments, text)

	if buf.timer != nil {
		buf.timer.Stop()
	}
	buf.timer = time.AfterFunc(s.window, func() {
		s.flush(number)
	})
}

func (s *DebounceService) FlushAll() {
	s.mu.Lock()
	numbers := make([]string, 0, len(s.buffers))
	for number, buf := range s.buffers {
		if buf.timer != nil {
			buf.timer.Stop()
		}
		numbers = append(numbers, number)
	}
	s.mu.Unlock()

	for _, number := range numbers {
		s.flush(number)
	}
}

// flush runs on the timer goroutine; the webhook context is long gone, so
// the turn gets a fresh one.
func (s *DebounceService) flush(number string) {
	s.mu.Lock()
	buf, ok := s.buffers[number]
	if ok {
		delete(s.buffers, number)
	}
	s.mu.Unlock()

	if !ok || len(buf.fragments) == 0 {
		return
	}

	joined := strings.Join(buf.fragments, " ")
	s.log.Debug("debounce_service", "flushing buffered turn", map[string]interface{}{
		"number": number, "fragments": len(buf.fragments),
	})
	s.flow.HandleText(context.Background(), number, joined)
}
