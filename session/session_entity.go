package session

import (
	"context"

	"github.com/fundwit/go-commons/types"
)

const RoleAdmin = "admin"

type Identity struct {
	ID    types.ID `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
}

type Session struct {
	Token    string   `json:"token"`
	Identity Identity `json:"identity"`
	Perms    []string `json:"perms"`

	Context context.Context `json:"-"`
}

func (s *Session) Clone() Session {
	c := Session{Token: s.Token, Identity: s.Identity}
	c.Perms = append(c.Perms, s.Perms...)
	return c
}

func (s *Session) HasRole(role string) bool {
	for _, p := range s.Perms {
		if p == role {
			return true
		}
	}
	return false
}

func (s *Session) IsAdmin() bool {
	return s.HasRole(RoleAdmin)
}
