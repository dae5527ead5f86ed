package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-ini/ini"
	"github.com/go-viper/mapstructure/v2"

	"github.com/bincrafters/envy/pkg/envvar"
)

// DefaultFilename is the configuration file looked up when none is given.
const DefaultFilename = "envy.ini"

var ErrConfigMissing = errors.New("configuration file is missing")

// Section names of the INI configuration file.
const (
	sectionEnv       = "env"
	sectionEncrypted = "encrypted"
	sectionAccount   = "account"
	sectionEndpoint  = "endpoint"
	sectionToken     = "token"
)

// Root is the parsed configuration file.
//
//	[env]
//	CONAN_LOGIN_USERNAME = bincrafters-user
//	CONAN_PASSWORD = ...
//
//	[encrypted]
//	CONAN_PASSWORD
//
//	[account]
//	travis = bincrafters
//	github = bincrafters
//
//	[endpoint]
//	travis = https://api.travis-ci.org
//
//	[token]
//	circle = ${CIRCLE_API_TOKEN}
type Root struct {
	Path      string
	Env       envvar.Set
	Encrypted envvar.Names
	Accounts  Accounts
	Endpoints Endpoints
	Tokens    map[string]*Secret
}

// Accounts holds per-provider account or organization names.
type Accounts struct {
	Travis       string `ini:"travis"`
	AppVeyor     string `ini:"appveyor"`
	Circle       string `ini:"circle"`
	Azure        string `ini:"azure"`
	AzureProject string `ini:"azure_project"`
	GitHub       string `ini:"github"` // owner of the source repositories
}

// Endpoints holds per-provider API host overrides.
type Endpoints struct {
	Travis   string `ini:"travis"`
	AppVeyor string `ini:"appveyor"`
	Circle   string `ini:"circle"`
	Azure    string `ini:"azure"`
}

// Account returns the account configured for the named provider.
func (a Accounts) Account(provider string) string {
	switch provider {
	case "travis":
		return a.Travis
	case "appveyor":
		return a.AppVeyor
	case "circle":
		return a.Circle
	case "azure":
		return a.Azure
	case "github":
		return a.GitHub
	}
	return ""
}

// Endpoint returns the host override configured for the named provider.
func (e Endpoints) Endpoint(provider string) string {
	switch provider {
	case "travis":
		return e.Travis
	case "appveyor":
		return e.AppVeyor
	case "circle":
		return e.Circle
	case "azure":
		return e.Azure
	}
	return ""
}

// Locate resolves the configuration file path. A relative path that does not
// exist in the working directory is looked up in the per-user configuration
// directory ($XDG_CONFIG_HOME/envy on Linux).
func Locate(path string) (string, error) {
	if path == "" {
		path = DefaultFilename
	}

	if isFile(path) {
		return path, nil
	}

	if !filepath.IsAbs(path) {
		if dir, err := os.UserConfigDir(); err == nil {
			candidate := filepath.Join(dir, "envy", path)
			if isFile(candidate) {
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("%w: %s, please create one (see envy.ini.example for the details)", ErrConfigMissing, path)
}

// Load locates and parses the configuration file.
func Load(path string) (*Root, error) {
	resolved, err := Locate(path)
	if err != nil {
		return nil, err
	}

	bs, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", resolved, err)
	}

	root, err := Parse(bs)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", resolved, err)
	}
	root.Path = resolved
	return root, nil
}

// Parse parses INI configuration data. Missing sections are treated as empty.
// Key case is preserved.
func Parse(bs []byte) (*Root, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:    true, // [encrypted] lists names without values
		IgnoreInlineComment: true,
	}, bs)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	root := Root{
		Env:       envvar.Set{},
		Encrypted: envvar.Names{},
		Tokens:    map[string]*Secret{},
	}

	if s, err := f.GetSection(sectionEnv); err == nil {
		for _, k := range s.Keys() {
			root.Env[k.Name()] = k.Value()
		}
	}

	if s, err := f.GetSection(sectionEncrypted); err == nil {
		for _, k := range s.Keys() {
			root.Encrypted[k.Name()] = struct{}{}
		}
	}

	if s, err := f.GetSection(sectionAccount); err == nil {
		if err := decode(s.KeysHash(), &root.Accounts); err != nil {
			return nil, fmt.Errorf("section [%s]: %w", sectionAccount, err)
		}
	}

	if s, err := f.GetSection(sectionEndpoint); err == nil {
		if err := decode(s.KeysHash(), &root.Endpoints); err != nil {
			return nil, fmt.Errorf("section [%s]: %w", sectionEndpoint, err)
		}
	}

	if s, err := f.GetSection(sectionToken); err == nil {
		for _, k := range s.Keys() {
			root.Tokens[k.Name()] = &Secret{Name: k.Name(), Value: k.Value()}
		}
	}

	return &root, nil
}

// Credentials returns the token resolver backed by the [token] section.
func (r *Root) Credentials() *Credentials {
	return NewCredentials(r.Tokens)
}

// we use this one so section structs only need ini tags
func decode(input any, output any) error {
	config := &mapstructure.DecoderConfig{
		TagName:  "ini",
		Metadata: nil,
		Result:   output,
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
