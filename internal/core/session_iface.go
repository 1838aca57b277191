package core

import "github.com/google/uuid"

// ConnID identifies one live transport connection. A browser reconnecting
// gets a new ConnID but keeps its domain.Identity.
type ConnID string

func NewConnID() ConnID { return ConnID(uuid.NewString()) }
