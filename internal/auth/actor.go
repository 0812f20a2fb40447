// Package auth defines the verified caller identity the engine trusts.
// Token validation happens upstream; by the time a request reaches the
// engine its identity has already been verified, and every operation takes
// the actor explicitly so authorization checks are pure functions of
// (actor, target state) with no ambient session state.
package auth

// Actor is a verified user identity with role claims.
type Actor struct {
	UserID      string   `json:"user_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
}

// Valid reports whether the actor carries the minimum identity the engine
// requires.
func (a Actor) Valid() bool {
	return a.UserID != ""
}
