package state

import "github.com/cwrk-planet/session-hub/internal/domain"

// Directory maps identified connections to their display names, keeping the
// order in which connections first identified.
type Directory struct {
	order []domain.ConnID
	names map[domain.ConnID]string
}

func newDirectory() *Directory {
	return &Directory{names: make(map[domain.ConnID]string)}
}

// Set records name for id. A connection that identifies again keeps its place.
func (d *Directory) Set(id domain.ConnID, name string) {
	if _, ok := d.names[id]; !ok {
		d.order = append(d.order, id)
	}
	d.names[id] = name
}

func (d *Directory) Remove(id domain.ConnID) {
	if _, ok := d.names[id]; !ok {
		return
	}
	delete(d.names, id)
	for i, cur := range d.order {
		if cur == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

func (d *Directory) Name(id domain.ConnID) (string, bool) {
	name, ok := d.names[id]
	return name, ok
}

// Resolve returns the first connection in directory order whose name equals
// name. Other connections sharing the name are never returned.
func (d *Directory) Resolve(name string) (domain.ConnID, bool) {
	for _, id := range d.order {
		if d.names[id] == name {
			return id, true
		}
	}
	return "", false
}

// DistinctNames lists every name once, in order of first appearance.
func (d *Directory) DistinctNames() []string {
	seen := make(map[string]struct{}, len(d.order))
	out := make([]string, 0, len(d.order))
	for _, id := range d.order {
		name := d.names[id]
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func (d *Directory) Len() int { return len(d.order) }
