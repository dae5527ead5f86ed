package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"

	"github.com/bincrafters/envy/pkg/envvar"
)

// MergeEnv builds the desired variable set for a run. Later sources win:
// the configuration [env] section, then each dotenv file in order, then each
// NAME=VALUE override in order.
func MergeEnv(base envvar.Set, envFiles []string, overrides []string) (envvar.Set, error) {
	layers := make([]envvar.Set, 0, len(envFiles)+1)

	for _, f := range envFiles {
		m, err := godotenv.Read(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file %v: %w", f, err)
		}
		layers = append(layers, m)
	}

	cli := envvar.Set{}
	for _, kv := range overrides {
		name, value, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid environment variable %q, expected NAME=VALUE", kv)
		}
		cli[name] = value
	}
	layers = append(layers, cli)

	return base.Clone(layers...), nil
}
