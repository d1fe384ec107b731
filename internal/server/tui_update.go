// ABOUTME: TUI update helpers for server
// ABOUTME: Functions to send server state updates to TUI
package server

import "slices"

// updateTUI sends current server state to TUI
func (s *Server) updateTUI() {
	if s.tui == nil {
		return
	}

	s.clientsMu.RLock()
	clients := make([]ClientInfo, 0, len(s.clients))
	for _, client := range s.clients {
		clients = append(clients, ClientInfo{
			Name:  client.Name,
			ID:    client.ID,
			Roles: slices.Clone(client.Roles),
		})
	}
	s.clientsMu.RUnlock()

	slices.SortFunc(clients, func(a, b ClientInfo) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})

	s.stateMu.Lock()
	session := s.lastState
	s.stateMu.Unlock()

	s.tui.Update(ServerStatus{
		Name:    s.config.Name,
		Port:    s.config.Port,
		Session: session,
		Mixer:   s.mixerState(),
		Clients: clients,
	})
}
