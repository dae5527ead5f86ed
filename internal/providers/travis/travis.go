// Package travis adapts the Travis CI v3 API.
package travis

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/bincrafters/envy/internal/logging"
	"github.com/bincrafters/envy/internal/transport"
	"github.com/bincrafters/envy/pkg/envvar"
)

const (
	Name           = "travis"
	DefaultHost    = "https://api.travis-ci.com"
	DefaultAccount = "bincrafters"
)

// maxPages bounds List in case the API keeps returning a next page.
const maxPages = 1000

type Options struct {
	Host       string
	Account    string
	Token      string
	HTTPClient *http.Client
	Rate       float64 // requests per second, zero means unlimited
	Logger     *logging.Logger
}

type Provider struct {
	account string
	client  *transport.Client
	logger  *logging.Logger
}

func New(opts Options) *Provider {
	client := transport.New(Name, cmp.Or(opts.Host, DefaultHost)).
		WithHeaders(map[string]string{
			"User-Agent":         "Envy/1.0",
			"Accept":             "application/vnd.travis-ci.2+json",
			"Travis-API-Version": "3",
			"Content-Type":       "application/json",
		}).
		WithAuth(transport.TokenAuth{Scheme: "token", Token: opts.Token}).
		WithHTTPClient(opts.HTTPClient).
		WithRateLimit(opts.Rate)

	return &Provider{
		account: cmp.Or(opts.Account, DefaultAccount),
		client:  client,
		logger:  cmp.Or(opts.Logger, logging.NewNop()),
	}
}

func (*Provider) Name() string {
	return Name
}

// repoPath addresses a repository by slug. The separator must stay escaped.
func (p *Provider) repoPath(slug string) string {
	return "/repo/" + p.account + "%2F" + slug
}

type repository struct {
	Slug   string `json:"slug"`
	Active bool   `json:"active"`
}

type pagination struct {
	Next *struct {
		Href string `json:"@href"`
	} `json:"next"`
}

func (p *Provider) Exists(ctx context.Context, slug string) (bool, error) {
	var repo repository
	if err := p.client.Get(ctx, p.repoPath(slug), &repo); err != nil {
		return false, err
	}
	return repo.Active, nil
}

func (p *Provider) List(ctx context.Context) ([]string, error) {
	var projects []string

	path := "/owner/" + p.account + "/repos"
	for range maxPages {
		var page struct {
			Pagination   pagination   `json:"@pagination"`
			Repositories []repository `json:"repositories"`
		}
		if err := p.client.Get(ctx, path, &page); err != nil {
			return nil, err
		}

		for _, r := range page.Repositories {
			if !r.Active {
				continue
			}
			_, name, ok := strings.Cut(r.Slug, "/")
			if !ok {
				name = r.Slug
			}
			projects = append(projects, name)
		}

		if page.Pagination.Next == nil || page.Pagination.Next.Href == "" {
			return projects, nil
		}
		path = page.Pagination.Next.Href
	}

	return nil, fmt.Errorf("listing repositories of %s: more than %d pages", p.account, maxPages)
}

func (p *Provider) AddOne(ctx context.Context, slug string) error {
	return p.client.Do(ctx, http.MethodPost, p.repoPath(slug)+"/activate", nil, http.StatusOK, nil)
}

func (p *Provider) RemoveOne(ctx context.Context, slug string) error {
	return p.client.Do(ctx, http.MethodPost, p.repoPath(slug)+"/deactivate", nil, http.StatusOK, nil)
}

type envVar struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Value  string `json:"value"`
	Public bool   `json:"public"`
}

type envVarRequest struct {
	Name   string `json:"env_var.name"`
	Value  string `json:"env_var.value"`
	Public bool   `json:"env_var.public"`
}

// Update creates or patches every desired variable. Travis encrypts private
// variables itself and leaves other variables untouched.
func (p *Provider) Update(ctx context.Context, slug string, desired envvar.Set, encrypted envvar.Names) error {
	path := p.repoPath(slug) + "/env_vars"

	var list struct {
		EnvVars []envVar `json:"env_vars"`
	}
	if err := p.client.Get(ctx, path, &list); err != nil {
		return err
	}

	remote := make([]envvar.Var, 0, len(list.EnvVars))
	for _, v := range list.EnvVars {
		remote = append(remote, envvar.Var{Name: v.Name, Value: v.Value, Encrypted: !v.Public, ID: v.ID})
	}

	merged, err := envvar.Merge(ctx, desired, encrypted, remote, envvar.Identity)
	if err != nil {
		return err
	}

	for _, v := range envvar.Desired(merged) {
		req := envVarRequest{Name: v.Name, Value: v.Value, Public: !v.Encrypted}
		if v.ID != "" {
			p.logger.Debugf("travis: patching %s on %s", v.Name, slug)
			err = p.client.Do(ctx, http.MethodPatch, p.repoPath(slug)+"/env_var/"+v.ID, req, http.StatusOK, nil)
		} else {
			p.logger.Debugf("travis: creating %s on %s", v.Name, slug)
			err = p.client.Do(ctx, http.MethodPost, path, req, http.StatusCreated, nil)
		}
		if err != nil {
			return fmt.Errorf("variable %s: %w", v.Name, err)
		}
	}

	return nil
}
