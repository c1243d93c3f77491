// Package auth implements optional static API key authentication for the
// browse and assistant endpoints.
package auth

import (
	"context"
	"crypto/sha256"
	"fmt"
	"slices"
	"strings"
)

const (
	// RoleReader may browse tables and run the canned reports.
	RoleReader = "reader"
	// RoleAssistant may send questions to the SQL assistant.
	RoleAssistant = "assistant"
)

var knownRoles = map[string]bool{RoleReader: true, RoleAssistant: true}

type Identity struct {
	Name  string
	Roles []string
}

func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

// StaticAPIKeyValidator holds digests of the configured keys rather than the
// keys themselves.
type StaticAPIKeyValidator struct {
	identities map[[sha256.Size]byte]Identity
}

// NewStaticAPIKeyValidator parses comma-separated key:name:role|role entries,
// for example "k1:alice:reader|assistant,k2:bob:reader".
func NewStaticAPIKeyValidator(keys string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{identities: map[[sha256.Size]byte]Identity{}}
	if strings.TrimSpace(keys) == "" {
		return validator, nil
	}
	for _, entry := range strings.Split(keys, ",") {
		key, identity, err := parseKeyEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("static key entry %q: %w", strings.TrimSpace(entry), err)
		}
		digest := sha256.Sum256([]byte(key))
		if _, dup := validator.identities[digest]; dup {
			return nil, fmt.Errorf("static key entry %q: duplicate key", strings.TrimSpace(entry))
		}
		validator.identities[digest] = identity
	}
	return validator, nil
}

func parseKeyEntry(entry string) (string, Identity, error) {
	fields := strings.Split(strings.TrimSpace(entry), ":")
	if len(fields) != 3 {
		return "", Identity{}, fmt.Errorf("expected key:name:role|role")
	}
	key, name := strings.TrimSpace(fields[0]), strings.TrimSpace(fields[1])
	if key == "" || name == "" {
		return "", Identity{}, fmt.Errorf("key and name must be set")
	}

	var roles []string
	for _, role := range strings.Split(fields[2], "|") {
		role = strings.TrimSpace(role)
		switch {
		case role == "":
		case !knownRoles[role]:
			return "", Identity{}, fmt.Errorf("unknown role %q", role)
		case !slices.Contains(roles, role):
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		return "", Identity{}, fmt.Errorf("at least one role is required")
	}
	slices.Sort(roles)
	return key, Identity{Name: name, Roles: roles}, nil
}

// Len reports how many keys are configured.
func (v *StaticAPIKeyValidator) Len() int {
	return len(v.identities)
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.identities[sha256.Sum256([]byte(apiKey))]
	return identity, ok
}

// RequireAnyRole passes requests without an identity, which only happens
// when authentication is disabled.
func RequireAnyRole(ctx context.Context, roles ...string) error {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return nil
	}
	for _, role := range roles {
		if identity.HasRole(role) {
			return nil
		}
	}
	return fmt.Errorf("caller %q lacks a required role (one of %s)", identity.Name, strings.Join(roles, ", "))
}
