package state

import (
	"fmt"

	"github.com/cwrk-planet/session-hub/internal/domain"
)

type Store struct {
	conns map[domain.ConnID]*domain.Connection
	order []domain.ConnID
	dir   *Directory
}

func New() *Store {
	return &Store{
		conns: make(map[domain.ConnID]*domain.Connection),
		dir:   newDirectory(),
	}
}

// Add allocates an empty record for a freshly connected id.
func (s *Store) Add(id domain.ConnID) (domain.Connection, error) {
	if _, ok := s.conns[id]; ok {
		return domain.Connection{}, fmt.Errorf("add %s: %w", id, domain.ErrConnectionExists)
	}
	c := &domain.Connection{ID: id}
	s.conns[id] = c
	s.order = append(s.order, id)
	return *c, nil
}

func (s *Store) Get(id domain.ConnID) (domain.Connection, bool) {
	c, ok := s.conns[id]
	if !ok {
		return domain.Connection{}, false
	}
	return *c, true
}

// SetName overwrites the display name and mirrors it into the directory.
func (s *Store) SetName(id domain.ConnID, name string) (domain.Connection, error) {
	c, ok := s.conns[id]
	if !ok {
		return domain.Connection{}, fmt.Errorf("set name %s: %w", id, domain.ErrUnknownConnection)
	}
	c.Name = name
	s.dir.Set(id, name)
	return *c, nil
}

// SetRoom moves the connection into room and returns the room it occupied before.
func (s *Store) SetRoom(id domain.ConnID, room string) (string, error) {
	c, ok := s.conns[id]
	if !ok {
		return "", fmt.Errorf("set room %s: %w", id, domain.ErrUnknownConnection)
	}
	prev := c.Room
	c.Room = room
	return prev, nil
}

// Remove drops the record and its directory entry in one step and returns
// the last known state of the connection.
func (s *Store) Remove(id domain.ConnID) (domain.Connection, bool) {
	c, ok := s.conns[id]
	if !ok {
		return domain.Connection{}, false
	}
	delete(s.conns, id)
	s.dir.Remove(id)
	for i, cur := range s.order {
		if cur == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return *c, true
}

func (s *Store) Len() int { return len(s.conns) }

// Connections returns a copy of every live record in connect order.
func (s *Store) Connections() []domain.Connection {
	out := make([]domain.Connection, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.conns[id])
	}
	return out
}

func (s *Store) Directory() *Directory { return s.dir }

func (s *Store) ResolveName(name string) (domain.ConnID, bool) { return s.dir.Resolve(name) }

func (s *Store) DistinctNames() []string { return s.dir.DistinctNames() }
