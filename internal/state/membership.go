package state

import "github.com/cwrk-planet/session-hub/internal/domain"

// MembersOf lists the connections currently claiming room, in connect order.
// A room with no members simply does not exist.
func (s *Store) MembersOf(room string) []domain.ConnID {
	if room == "" {
		return nil
	}
	var out []domain.ConnID
	for _, id := range s.order {
		if s.conns[id].Room == room {
			out = append(out, id)
		}
	}
	return out
}

// Rooms derives every occupied room with its member count.
func (s *Store) Rooms() map[string]int {
	out := make(map[string]int)
	for _, c := range s.conns {
		if c.Room != "" {
			out[c.Room]++
		}
	}
	return out
}
