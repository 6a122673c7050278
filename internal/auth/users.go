package auth

import (
	"crypto/subtle"
	"fmt"

	"github.com/kailas-cloud/contentrest/internal/domain"
	"github.com/kailas-cloud/contentrest/internal/domain/principal"
)

// User is a configured login account.
type User struct {
	Name         string
	PasswordHash string
	Roles        []string
}

// APIKey is a static bearer credential bound to a principal.
type APIKey struct {
	Key   string
	Name  string
	Roles []string
}

// Directory authenticates configured users and API keys.
type Directory struct {
	users map[string]User
	keys  []APIKey
}

// NewDirectory indexes users by name.
func NewDirectory(users []User, keys []APIKey) *Directory {
	d := &Directory{users: make(map[string]User, len(users)), keys: keys}
	for _, u := range users {
		d.users[u.Name] = u
	}
	return d
}

// Login checks a username and password.
func (d *Directory) Login(name, password string) (principal.Principal, error) {
	u, ok := d.users[name]
	if !ok || !CheckPassword(password, u.PasswordHash) {
		return principal.Principal{}, fmt.Errorf("login %q: %w", name, domain.ErrUnauthorized)
	}
	return principal.Principal{Name: u.Name, Roles: u.Roles}, nil
}

// Lookup returns the user named name.
func (d *Directory) Lookup(name string) (principal.Principal, bool) {
	u, ok := d.users[name]
	if !ok {
		return principal.Principal{}, false
	}
	return principal.Principal{Name: u.Name, Roles: u.Roles}, true
}

// ByAPIKey resolves a static key in constant time per entry.
func (d *Directory) ByAPIKey(key string) (principal.Principal, bool) {
	for _, k := range d.keys {
		if subtle.ConstantTimeCompare([]byte(k.Key), []byte(key)) == 1 {
			return principal.Principal{Name: k.Name, Roles: k.Roles}, true
		}
	}
	return principal.Principal{}, false
}

// HasAPIKeys reports whether any static key is configured.
func (d *Directory) HasAPIKeys() bool { return len(d.keys) > 0 }
