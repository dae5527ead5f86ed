package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrCredentialMissing = errors.New("no token provided")

// Secret is a literal token from the [token] section of the configuration.
//
// Tokens may refer to environment variables using the ${VAR_NAME} syntax:
//
//	[token]
//	azure = ${AZURE_DEVOPS_PAT}
type Secret struct {
	Name  string
	Value string
}

// get expands environment variable references in the secret value.
func (s *Secret) get() string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(os.ExpandEnv(s.Value))
}

// Credentials resolves provider tokens in priority order: the [token]
// section of the configuration, the {PROVIDER}_TOKEN environment variable and
// finally a {provider}.token file.
type Credentials struct {
	tokens map[string]*Secret
	dir    string
}

func NewCredentials(tokens map[string]*Secret) *Credentials {
	return &Credentials{tokens: tokens}
}

// WithDir sets the directory searched for token files. Defaults to the
// working directory.
func (c *Credentials) WithDir(dir string) *Credentials {
	c.dir = dir
	return c
}

// Token returns the token for the named provider or an error wrapping
// ErrCredentialMissing that names all three options.
func (c *Credentials) Token(_ context.Context, provider string) (string, error) {
	if token := c.tokens[provider].get(); token != "" {
		return token, nil
	}

	envname := strings.ToUpper(provider) + "_TOKEN"
	if token := strings.TrimSpace(os.Getenv(envname)); token != "" {
		return token, nil
	}

	filename := provider + ".token"
	bs, err := os.ReadFile(filepath.Join(c.dir, filename))
	switch {
	case err == nil:
		if token := strings.TrimSpace(string(bs)); token != "" {
			return token, nil
		}
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("failed to read %s token file: %w", provider, err)
	}

	return "", fmt.Errorf("%w for %s: please set %q in the [token] section, specify the %s environment variable or create the %s file",
		ErrCredentialMissing, provider, provider, envname, filename)
}
