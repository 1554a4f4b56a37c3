package header

import "sync"

// Menu is the open/closed state of the mobile navigation panel. It starts
// closed. Parallel requests from one session may touch it, so access is locked.
type Menu struct {
	mu   sync.Mutex
	open bool
}

// Toggle flips the menu and returns the new state.
func (m *Menu) Toggle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = !m.open
	return m.open
}

// Close forces the menu closed.
func (m *Menu) Close() {
	m.mu.Lock()
	m.open = false
	m.mu.Unlock()
}

// IsOpen reports whether the panel is open.
func (m *Menu) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}
