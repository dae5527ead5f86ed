// Package circle adapts the CircleCI v1.1 API.
package circle

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/bincrafters/envy/internal/logging"
	"github.com/bincrafters/envy/internal/transport"
	"github.com/bincrafters/envy/pkg/envvar"
)

const (
	Name          = "circle"
	DefaultHost   = "https://circleci.com"
	DefaultGitHub = "bincrafters"
)

type Options struct {
	Host       string
	GitHub     string // owner of the followed repositories
	Token      string
	HTTPClient *http.Client
	Rate       float64
	Logger     *logging.Logger
}

type Provider struct {
	github string
	client *transport.Client
	logger *logging.Logger
}

func New(opts Options) *Provider {
	client := transport.New(Name, strings.TrimRight(cmp.Or(opts.Host, DefaultHost), "/")+"/api/v1.1").
		WithHeaders(map[string]string{
			"Accept":       "application/json",
			"Content-Type": "application/json",
		}).
		WithAuth(transport.BasicAuth{Username: opts.Token}).
		WithHTTPClient(opts.HTTPClient).
		WithRateLimit(opts.Rate)

	return &Provider{
		github: cmp.Or(opts.GitHub, DefaultGitHub),
		client: client,
		logger: cmp.Or(opts.Logger, logging.NewNop()),
	}
}

func (*Provider) Name() string {
	return Name
}

func (p *Provider) projectPath(slug string) string {
	return "/project/github/" + p.github + "/" + slug
}

func (p *Provider) List(ctx context.Context) ([]string, error) {
	var projects []struct {
		RepoName string `json:"reponame"`
	}
	if err := p.client.Get(ctx, "/projects", &projects); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(projects))
	for _, project := range projects {
		names = append(names, project.RepoName)
	}
	return names, nil
}

// Exists reports whether the project is among the followed projects.
func (p *Provider) Exists(ctx context.Context, slug string) (bool, error) {
	projects, err := p.List(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(projects, slug), nil
}

func (p *Provider) AddOne(ctx context.Context, slug string) error {
	return p.client.Do(ctx, http.MethodPost, p.projectPath(slug)+"/follow", nil, http.StatusOK, nil)
}

func (p *Provider) RemoveOne(ctx context.Context, slug string) error {
	return p.client.Do(ctx, http.MethodPost, p.projectPath(slug)+"/unfollow", nil, http.StatusOK, nil)
}

type envVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Update makes the project environment equal to the desired set: variables
// not desired are deleted, then every desired variable is written. CircleCI
// masks all values, so there is nothing to encrypt client-side.
func (p *Provider) Update(ctx context.Context, slug string, desired envvar.Set, encrypted envvar.Names) error {
	path := p.projectPath(slug) + "/envvar"

	var current []envVar
	if err := p.client.Get(ctx, path, &current); err != nil {
		return err
	}

	remote := make([]envvar.Var, 0, len(current))
	for _, v := range current {
		remote = append(remote, envvar.Var{Name: v.Name, Value: v.Value})
	}

	merged, err := envvar.Merge(ctx, desired, encrypted, remote, envvar.Identity)
	if err != nil {
		return err
	}

	for _, v := range merged {
		if !v.Carried {
			continue
		}
		p.logger.Debugf("circle: deleting %s from %s", v.Name, slug)
		if err := p.client.Do(ctx, http.MethodDelete, path+"/"+url.PathEscape(v.Name), nil, http.StatusOK, nil); err != nil {
			return fmt.Errorf("variable %s: %w", v.Name, err)
		}
	}

	for _, v := range envvar.Desired(merged) {
		if err := p.client.Do(ctx, http.MethodPost, path, envVar{Name: v.Name, Value: v.Value}, http.StatusCreated, nil); err != nil {
			return fmt.Errorf("variable %s: %w", v.Name, err)
		}
	}

	return nil
}
