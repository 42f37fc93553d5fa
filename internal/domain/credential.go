package domain

import "time"

// Credential is the Calendly bearer token saved for a chat identity.
// At most one credential exists per identity; a later OAuth exchange
// overwrites the token in place.
type Credential struct {
	Identity    string    `json:"identity"`
	AccessToken string    `json:"-"` // secret, never serialized
	CreatedAt   time.Time `json:"createdAt"`
}
