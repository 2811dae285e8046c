package tracker

import "fmt"

// Session is the persistence mode. The zero value is Anonymous: the
// collection lives in local storage. A non-empty OwnerID means the
// collection lives in the remote store, scoped to that owner.
type Session struct {
	OwnerID string
}

// Anonymous returns the local-storage session.
func Anonymous() Session { return Session{} }

// Authenticated returns the remote-storage session for ownerID.
func Authenticated(ownerID string) Session { return Session{OwnerID: ownerID} }

// IsAuthenticated reports whether mutations go to the remote store.
func (s Session) IsAuthenticated() bool { return s.OwnerID != "" }

func (s Session) String() string {
	if !s.IsAuthenticated() {
		return "anonymous"
	}
	return fmt.Sprintf("authenticated(%s)", s.OwnerID)
}
