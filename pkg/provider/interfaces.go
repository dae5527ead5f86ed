// Package provider defines the contract every CI provider adapter satisfies.
//
// The reconciliation engine only talks to providers through these
// interfaces, enabling external projects to plug in additional CI systems or
// their own confirmation and credential sources.
package provider

import (
	"context"

	"github.com/bincrafters/envy/pkg/envvar"
)

// Provider is the uniform surface of a CI provider adapter. Implementations
// translate each call into the provider's REST dialect.
//
// Providers are not thread-safe. Callers should handle concurrency.
type Provider interface {
	// Name is the stable identifier used in logs, output and credential
	// lookup ("travis", "appveyor", ...).
	Name() string

	// List returns the slugs of every project registered under the
	// configured account. A slug returned here must satisfy Exists.
	List(ctx context.Context) ([]string, error)

	// Exists reports whether the project is registered/active.
	Exists(ctx context.Context, slug string) (bool, error)

	// AddOne registers or activates a single project. It assumes the
	// project is not present yet.
	AddOne(ctx context.Context, slug string) error

	// RemoveOne deregisters or deactivates exactly one project.
	RemoveOne(ctx context.Context, slug string) error

	// Update fetches the remote variables of the project, merges the desired
	// ones on top and pushes the result. Calling it repeatedly with the same
	// input must not change the remote state further.
	Update(ctx context.Context, slug string, desired envvar.Set, encrypted envvar.Names) error
}

// PatternNormalizer is implemented by providers whose project slugs differ
// from the names given on the command line (AppVeyor replaces underscores
// with hyphens). The returned pattern is matched against List output.
type PatternNormalizer interface {
	NormalizePattern(pattern string) string
}

// Confirmer obtains a yes/no decision before a destructive action. The items
// are what will be affected.
type Confirmer interface {
	Confirm(ctx context.Context, question string, items []string) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(ctx context.Context, question string, items []string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, question string, items []string) (bool, error) {
	return f(ctx, question, items)
}

// CredentialProvider resolves the API token of a provider by name. External
// projects implement it to integrate their own secret management systems.
type CredentialProvider interface {
	Token(ctx context.Context, provider string) (string, error)
}
