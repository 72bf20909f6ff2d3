package repo

import "time"

// APIKey represents a record in the api_keys table.
type APIKey struct {
	ID            string
	Provider      string
	Value         string
	Priority      int
	CooldownUntil *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Available reports whether the key may be used at the given time.
func (k APIKey) Available(now time.Time) bool {
	return k.CooldownUntil == nil || !k.CooldownUntil.After(now)
}
