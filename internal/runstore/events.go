package runstore

import "sync"

// Event names published to store listeners.
const (
	EventRunStarted   = "run:started"
	EventRunCompleted = "run:completed"
	EventRunCancelled = "run:cancelled"
	EventFileUpdated  = "file:updated"
)

// Event carries a store change to subscribed listeners. Run is set
// for run lifecycle events and File for file updates.
type Event struct {
	Name string
	Run  *Run
	File *FileResult
}

// Listener receives store events. Listeners run synchronously on the
// mutating goroutine after the write has committed, so they must stay
// fast and must not call back into mutating store methods.
type Listener func(Event)

// Subscribe registers a listener and returns a function that detaches
// it again. The returned function is safe to call more than once and
// safe to call from inside a listener.
func (s *Store) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	s.listenerMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenerMu.Lock()
			delete(s.listeners, id)
			s.listenerMu.Unlock()
		})
	}
}

func (s *Store) notify(event Event) {
	s.listenerMu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(event)
	}
}

func (s *Store) notifyRun(name string, run *Run) {
	if run == nil {
		return
	}
	s.notify(Event{Name: name, Run: run})
}

func (s *Store) notifyFile(file *FileResult) {
	if file == nil {
		return
	}
	s.notify(Event{Name: EventFileUpdated, File: file})
}
