package ports

import "github.com/google/uuid"

// LocalStore is the device-local persisted subset: the remembered guest
// identity and a few UI preferences. Read at store initialization, written
// on every relevant mutation. Not transactional.
type LocalStore interface {
	GuestID() (uuid.UUID, bool, error)
	SetGuestID(id uuid.UUID) error
	ClearGuestID() error
	GetPref(key string) (string, bool, error)
	SetPref(key, value string) error
	Close() error
}
