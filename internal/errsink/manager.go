package errsink

import (
	"log"
	"strings"

	"bibformat/internal/formaterror"
)

// Manager broadcasts every registered FormatError to all enabled backends.
// It implements formaterror.Sink.
type Manager struct {
	backends []Backend
}

// Config selects which backends NewManager enables.
type Config struct {
	Backends  []string // e.g. "file", "loki"
	FilePath  string
	LokiURL   string
}

// NewManager builds a Manager from cfg. A backend that fails to
// initialize is a hard error — unlike a registered FormatError, a
// misconfigured sink is a startup problem, not a per-call one.
func NewManager(cfg Config) (*Manager, error) {
	m := &Manager{}
	enabled := make(map[string]bool, len(cfg.Backends))
	for _, b := range cfg.Backends {
		enabled[strings.ToLower(strings.TrimSpace(b))] = true
	}

	if enabled["file"] {
		fb, err := NewFileBackend(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		m.backends = append(m.backends, fb)
	}

	if enabled["loki"] {
		lb, err := NewLokiBackend(cfg.LokiURL)
		if err != nil {
			return nil, err
		}
		m.backends = append(m.backends, lb)
	}

	if len(m.backends) == 0 {
		log.Println("errsink: no backends enabled, registered errors will only be returned to callers")
	}
	return m, nil
}

// Register implements formaterror.Sink.
func (m *Manager) Register(err *formaterror.FormatError) {
	for _, b := range m.backends {
		if sendErr := b.Send(err); sendErr != nil {
			log.Printf("errsink: backend %q failed to record error: %v", b.Name(), sendErr)
		}
	}
}

// Shutdown stops every backend.
func (m *Manager) Shutdown() {
	for _, b := range m.backends {
		b.Shutdown()
	}
}
