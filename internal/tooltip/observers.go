package tooltip

import "sync"

// observerSet holds the cancel functions of one tooltip's observers.
type observerSet struct {
	mu       sync.Mutex
	cancels  []func()
	disposed bool
}

func (s *observerSet) add(cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		cancel()
		return
	}
	s.cancels = append(s.cancels, cancel)
}

// dispose cancels every observer. Later calls are no-ops.
func (s *observerSet) dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (s *observerSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cancels)
}
