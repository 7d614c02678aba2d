package domain

// ConnID is assigned by the transport and stays stable for the whole life of a connection.
type ConnID string

// AnonymousName stands in for a connection that has not identified itself yet.
const AnonymousName = "Anonymous"

type Connection struct {
	ID   ConnID
	Name string
	Room string
}

func (c Connection) Identified() bool { return c.Name != "" }

func (c Connection) InRoom() bool { return c.Room != "" }

// DisplayName returns the name used when the hub speaks about the connection.
func (c Connection) DisplayName() string {
	if c.Name == "" {
		return AnonymousName
	}
	return c.Name
}
