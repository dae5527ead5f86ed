// Package envvar holds the environment variable model shared by all CI
// provider adapters and the merge used to reconcile a desired variable set
// against the variables a provider already has.
package envvar

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// Set maps variable names to plain values.
type Set map[string]string

// Names returns the variable names in sorted order.
func (s Set) Names() []string {
	return slices.Sorted(maps.Keys(s))
}

// Clone returns a copy of s with all entries of others applied on top, in order.
func (s Set) Clone(others ...Set) Set {
	out := make(Set, len(s))
	maps.Copy(out, s)
	for _, o := range others {
		maps.Copy(out, o)
	}
	return out
}

// Names is the set of variable names that must be stored encrypted.
type Names map[string]struct{}

func NewNames(names ...string) Names {
	n := make(Names, len(names))
	for _, name := range names {
		n[name] = struct{}{}
	}
	return n
}

func (n Names) Has(name string) bool {
	_, ok := n[name]
	return ok
}

// Var is a single variable as reported by, or sent to, a provider.
type Var struct {
	Name      string
	Value     string
	Encrypted bool

	// ID is the provider-assigned identifier used for update-in-place.
	// Providers that replace variables wholesale leave it empty.
	ID string

	// Carried is set on remote variables passed through the merge unchanged.
	Carried bool
}

// EncryptFunc turns a plain value into the provider's encrypted form. It may
// perform a network round-trip.
type EncryptFunc func(ctx context.Context, value string) (string, error)

// Identity is the EncryptFunc for providers that encrypt server-side.
func Identity(_ context.Context, value string) (string, error) {
	return value, nil
}

// Merge computes the variable set to push to a provider: every desired
// variable (sorted by name, encrypted iff listed in encrypted) followed by the
// remote variables whose names are not desired, in remote order. Desired
// entries inherit the ID of the remote variable they replace.
func Merge(ctx context.Context, desired Set, encrypted Names, remote []Var, encrypt EncryptFunc) ([]Var, error) {
	if encrypt == nil {
		encrypt = Identity
	}

	ids := make(map[string]string, len(remote))
	for _, r := range remote {
		if _, ok := ids[r.Name]; !ok {
			ids[r.Name] = r.ID
		}
	}

	out := make([]Var, 0, len(desired)+len(remote))
	for _, name := range desired.Names() {
		v := Var{Name: name, Value: desired[name], ID: ids[name]}
		if encrypted.Has(name) {
			value, err := encrypt(ctx, v.Value)
			if err != nil {
				return nil, fmt.Errorf("encrypt %q: %w", name, err)
			}
			v.Value = value
			v.Encrypted = true
		}
		out = append(out, v)
	}

	seen := make(map[string]struct{}, len(remote))
	for _, r := range remote {
		if _, ok := desired[r.Name]; ok {
			continue
		}
		if _, ok := seen[r.Name]; ok {
			continue
		}
		seen[r.Name] = struct{}{}
		r.Carried = true
		out = append(out, r)
	}

	return out, nil
}

// Desired returns the entries of a merge result that came from the desired set.
func Desired(vars []Var) []Var {
	return slices.DeleteFunc(slices.Clone(vars), func(v Var) bool { return v.Carried })
}
