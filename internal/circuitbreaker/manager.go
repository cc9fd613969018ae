package circuitbreaker

import (
	"sort"
	"sync"

	"message-router/internal/common/logging"
)

// Manager hands out one Breaker per destination, all with the same Config
type Manager struct {
	config   Config
	logger   logging.Logger
	mu       sync.RWMutex
	breakers map[string]*Breaker
}

func NewManager(config Config, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Manager{
		config:   config,
		logger:   logger,
		breakers: make(map[string]*Breaker),
	}
}

func (m *Manager) GetOrCreate(name string) *Breaker {
	m.mu.RLock()
	breaker, ok := m.breakers[name]
	m.mu.RUnlock()
	if ok {
		return breaker
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if breaker, ok := m.breakers[name]; ok {
		return breaker
	}
	breaker = New(name, m.config, m.logger)
	m.breakers[name] = breaker
	return breaker
}

// AllStats returns per-breaker stats ordered by name
func (m *Manager) AllStats() []Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make([]Stats, 0, len(m.breakers))
	for _, breaker := range m.breakers {
		stats = append(stats, breaker.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

func (m *Manager) IsOpen(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if breaker, ok := m.breakers[name]; ok {
		return breaker.State() == StateOpen
	}
	return false
}
