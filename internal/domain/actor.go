package domain

import "strings"

// Actor is the identity acting on a request, as supplied by the game-session
// bridge. Elevated mirrors the client capability flag reported at session
// time; it only decides management access in standalone deployments.
type Actor struct {
	Name     string
	Elevated bool
}

// Is reports whether the actor is the given identity, ignoring case. Player
// names keep their display casing but compare case-insensitively everywhere.
func (a Actor) Is(name string) bool {
	return strings.EqualFold(a.Name, name)
}
