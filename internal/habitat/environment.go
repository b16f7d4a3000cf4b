// Package habitat defines the environments the beetles live in and how well
// each phenotype is camouflaged against them.
package habitat

import (
	"fmt"
	"strings"
)

// Kind discriminates environments for the selection rule.
type Kind uint8

const (
	KindLush   Kind = iota // dense vegetation, green background
	KindMeadow             // light grassland, pale green background
	KindArid               // bare soil, brown background
)

func (k Kind) String() string {
	switch k {
	case KindLush:
		return "LUSH"
	case KindMeadow:
		return "MEADOW"
	default:
		return "ARID"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseKind accepts a kind name in any case.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LUSH":
		return KindLush, nil
	case "MEADOW":
		return KindMeadow, nil
	case "ARID":
		return KindArid, nil
	}
	return 0, fmt.Errorf("unknown environment type %q", s)
}

// Environment is one habitat in the rotation.
type Environment struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Kind        Kind   `json:"type"`
	Description string `json:"description"`
}

// Catalog is the fixed, ordered environment rotation.
var Catalog = []Environment{
	{
		Name:        "Lush Forest",
		Color:       "#14532d",
		Kind:        KindLush,
		Description: "Dense green foliage. Dark green beetles blend into the leaves.",
	},
	{
		Name:        "Spring Meadow",
		Color:       "#84cc16",
		Kind:        KindMeadow,
		Description: "Light grass in bloom. Only the lime-colored hybrids are hard to spot.",
	},
	{
		Name:        "Arid Plain",
		Color:       "#92400e",
		Kind:        KindArid,
		Description: "Drought has left bare brown soil. Green shells stand out sharply.",
	},
}

// First returns the initial environment of a session.
func First() Environment {
	return Catalog[0]
}

// IndexOf returns the catalog position of env by kind, or -1.
func IndexOf(env Environment) int {
	for i, e := range Catalog {
		if e.Kind == env.Kind {
			return i
		}
	}
	return -1
}

// Next returns the environment after env in round-robin order.
// Unknown environments restart the rotation.
func Next(env Environment) Environment {
	i := IndexOf(env)
	return Catalog[(i+1)%len(Catalog)]
}

// ByKind looks up the catalog entry for kind.
func ByKind(k Kind) (Environment, bool) {
	for _, e := range Catalog {
		if e.Kind == k {
			return e, true
		}
	}
	return Environment{}, false
}
