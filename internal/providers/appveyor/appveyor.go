// Package appveyor adapts the AppVeyor REST API.
package appveyor

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"strings"

	lru "github.com/hashicorp/golang-lru"

	"github.com/bincrafters/envy/internal/logging"
	"github.com/bincrafters/envy/internal/transport"
	"github.com/bincrafters/envy/pkg/envvar"
)

const (
	Name           = "appveyor"
	DefaultHost    = "https://ci.appveyor.com"
	DefaultAccount = "BinCrafters"
	DefaultGitHub  = "bincrafters"
)

const encryptCacheSize = 256

type Options struct {
	Host       string
	Account    string
	GitHub     string // owner of the source repositories
	Token      string
	HTTPClient *http.Client
	Rate       float64
	Logger     *logging.Logger
}

type Provider struct {
	account string
	github  string
	client  *transport.Client
	logger  *logging.Logger
	cache   *lru.Cache // plaintext -> ciphertext
}

func New(opts Options) *Provider {
	host := strings.TrimRight(cmp.Or(opts.Host, DefaultHost), "/")
	account := cmp.Or(opts.Account, DefaultAccount)

	// v2 tokens are scoped to an account.
	endpoint := host + "/api"
	if strings.HasPrefix(opts.Token, "v2.0") {
		endpoint = host + "/api/account/" + account
	}

	client := transport.New(Name, endpoint).
		WithHeaders(map[string]string{"Content-Type": "application/json"}).
		WithAuth(transport.TokenAuth{Scheme: "Bearer", Token: opts.Token}).
		WithHTTPClient(opts.HTTPClient).
		WithRateLimit(opts.Rate)

	cache, err := lru.New(encryptCacheSize)
	if err != nil {
		panic(err) // only fails for a non-positive size
	}

	return &Provider{
		account: account,
		github:  cmp.Or(opts.GitHub, DefaultGitHub),
		client:  client,
		logger:  cmp.Or(opts.Logger, logging.NewNop()),
		cache:   cache,
	}
}

func (*Provider) Name() string {
	return Name
}

// NormalizePattern maps a project name to the slug AppVeyor derives from it.
func (*Provider) NormalizePattern(pattern string) string {
	return normalize(pattern)
}

func normalize(slug string) string {
	return strings.ReplaceAll(slug, "_", "-")
}

func (p *Provider) projectPath(slug string) string {
	return "/projects/" + p.account + "/" + slug
}

func (p *Provider) List(ctx context.Context) ([]string, error) {
	var projects []struct {
		Slug string `json:"slug"`
	}
	if err := p.client.Get(ctx, "/projects", &projects); err != nil {
		return nil, err
	}

	slugs := make([]string, 0, len(projects))
	for _, project := range projects {
		slugs = append(slugs, project.Slug)
	}
	return slugs, nil
}

func (p *Provider) Exists(ctx context.Context, slug string) (bool, error) {
	err := p.client.Get(ctx, p.projectPath(slug), nil)
	switch {
	case err == nil:
		return true, nil
	case transport.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

func (p *Provider) AddOne(ctx context.Context, slug string) error {
	req := map[string]string{
		"repositoryProvider": "gitHub",
		"repositoryName":     p.github + "/" + slug,
	}
	return p.client.Do(ctx, http.MethodPost, "/projects", req, http.StatusOK, nil)
}

func (p *Provider) RemoveOne(ctx context.Context, slug string) error {
	return p.client.Do(ctx, http.MethodDelete, p.projectPath(slug), nil, http.StatusNoContent, nil)
}

type variable struct {
	Name  string `json:"name"`
	Value value  `json:"value"`
}

type value struct {
	IsEncrypted bool   `json:"isEncrypted"`
	Value       string `json:"value"`
}

// Update replaces the project's environment with the merge of the desired
// and the existing variables. Encrypted values are sent as ciphertext.
func (p *Provider) Update(ctx context.Context, slug string, desired envvar.Set, encrypted envvar.Names) error {
	path := p.projectPath(normalize(slug)) + "/settings/environment-variables"

	var current []variable
	if err := p.client.Get(ctx, path, &current); err != nil {
		return err
	}

	remote := make([]envvar.Var, 0, len(current))
	for _, v := range current {
		remote = append(remote, envvar.Var{Name: v.Name, Value: v.Value.Value, Encrypted: v.Value.IsEncrypted})
	}

	merged, err := envvar.Merge(ctx, desired, encrypted, remote, p.encrypt)
	if err != nil {
		return err
	}

	req := make([]variable, 0, len(merged))
	for _, v := range merged {
		req = append(req, variable{Name: v.Name, Value: value{IsEncrypted: v.Encrypted, Value: v.Value}})
	}

	return p.client.Do(ctx, http.MethodPut, path, req, http.StatusNoContent, nil)
}

// encrypt asks AppVeyor for the ciphertext of a value. Results are memoized
// so a value is only encrypted once per run.
func (p *Provider) encrypt(ctx context.Context, plain string) (string, error) {
	if v, ok := p.cache.Get(plain); ok {
		return v.(string), nil
	}

	var raw []byte
	if err := p.client.Do(ctx, http.MethodPost, "/account/encrypt", map[string]string{"plainValue": plain}, http.StatusOK, &raw); err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}

	ciphertext := strings.ToValidUTF8(string(raw), "�")
	p.cache.Add(plain, ciphertext)
	p.logger.Debugf("appveyor: encrypted a value (%d cached)", p.cache.Len())
	return ciphertext, nil
}
