package models

// Snapshot is the complete state of both collections at one instant.
// Users are kept in registration order and transfers in creation order.
type Snapshot struct {
	SchemaVersion int        `json:"schemaVersion"`
	Users         []User     `json:"users"`
	Transfers     []Transfer `json:"transfers"`
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{SchemaVersion: s.SchemaVersion}
	if s.Users != nil {
		out.Users = make([]User, len(s.Users))
		copy(out.Users, s.Users)
	}
	if s.Transfers != nil {
		out.Transfers = make([]Transfer, len(s.Transfers))
		for i, t := range s.Transfers {
			out.Transfers[i] = t.Clone()
		}
	}
	return out
}

// FindUser returns the index of the user with the given id, or -1.
func (s *Snapshot) FindUser(id string) int {
	for i := range s.Users {
		if s.Users[i].ID == id {
			return i
		}
	}
	return -1
}

// FindUsername returns the index of the user with the exact username, or -1.
func (s *Snapshot) FindUsername(username string) int {
	for i := range s.Users {
		if s.Users[i].Username == username {
			return i
		}
	}
	return -1
}

// FindTransfer returns the index of the transfer with the given id, or -1.
func (s *Snapshot) FindTransfer(id string) int {
	for i := range s.Transfers {
		if s.Transfers[i].ID == id {
			return i
		}
	}
	return -1
}
