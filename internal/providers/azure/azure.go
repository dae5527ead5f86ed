// Package azure adapts the Azure DevOps build definition and variable group
// APIs.
package azure

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/bincrafters/envy/internal/jsonpatch"
	"github.com/bincrafters/envy/internal/logging"
	"github.com/bincrafters/envy/internal/transport"
	"github.com/bincrafters/envy/pkg/envvar"
)

const (
	Name           = "azure"
	DefaultHost    = "https://dev.azure.com"
	DefaultAccount = "bincrafters"
	DefaultProject = "packages"

	apiVersion      = "api-version=5.0"
	groupAPIVersion = "api-version=5.0-preview.1"

	groupDescription = "conan environment variables provided by envy"
	pipelineFile     = "./azure-pipelines.yml"
	defaultBranch    = "refs/heads/live"
)

// ErrAmbiguous is returned when a name lookup matches more than one object.
var ErrAmbiguous = errors.New("ambiguous name")

var errNotFound = errors.New("not found")

type Options struct {
	Host       string
	Account    string
	Project    string // Azure DevOps project holding the pipelines
	Token      string
	HTTPClient *http.Client
	Rate       float64
	Logger     *logging.Logger
}

type Provider struct {
	account string
	client  *transport.Client
	logger  *logging.Logger
}

func New(opts Options) *Provider {
	account := cmp.Or(opts.Account, DefaultAccount)
	base := strings.TrimRight(cmp.Or(opts.Host, DefaultHost), "/") + "/" + account + "/" + cmp.Or(opts.Project, DefaultProject) + "/_apis"

	client := transport.New(Name, base).
		WithHeaders(map[string]string{"Content-Type": "application/json"}).
		WithAuth(transport.BasicAuth{Username: opts.Token}).
		WithHTTPClient(opts.HTTPClient).
		WithRateLimit(opts.Rate)

	return &Provider{
		account: account,
		client:  client,
		logger:  cmp.Or(opts.Logger, logging.NewNop()),
	}
}

func (*Provider) Name() string {
	return Name
}

// qualified returns the definition and variable group name of a project.
func (p *Provider) qualified(slug string) string {
	return p.account + "." + slug
}

type object struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type collection[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}

// exactlyOne picks the single object named name out of a lookup result.
func exactlyOne[T any](items []T, nameOf func(T) string, name string) (T, error) {
	var (
		found T
		n     int
	)
	for _, item := range items {
		if nameOf(item) == name {
			found = item
			n++
		}
	}

	switch n {
	case 0:
		return found, fmt.Errorf("%s: %w", name, errNotFound)
	case 1:
		return found, nil
	default:
		return found, fmt.Errorf("%w: %d objects named %s", ErrAmbiguous, n, name)
	}
}

func (p *Provider) definition(ctx context.Context, slug string) (object, error) {
	name := p.qualified(slug)

	var defs collection[object]
	if err := p.client.Get(ctx, "/build/definitions?"+apiVersion+"&name="+url.QueryEscape(name), &defs); err != nil {
		return object{}, err
	}
	return exactlyOne(defs.Value, func(o object) string { return o.Name }, name)
}

func (p *Provider) Exists(ctx context.Context, slug string) (bool, error) {
	_, err := p.definition(ctx, slug)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errNotFound):
		return false, nil
	default:
		return false, err
	}
}

// List returns the projects of all definitions named after the account.
func (p *Provider) List(ctx context.Context) ([]string, error) {
	var defs collection[object]
	if err := p.client.Get(ctx, "/build/definitions?"+apiVersion, &defs); err != nil {
		return nil, err
	}

	prefix := p.account + "."
	counts := map[string]int{}
	var projects []string
	for _, d := range defs.Value {
		if slug, ok := strings.CutPrefix(d.Name, prefix); ok && slug != "" {
			if counts[slug] == 0 {
				projects = append(projects, slug)
			}
			counts[slug]++
		}
	}

	// Duplicated names cannot be resolved by Exists or RemoveOne.
	return slices.DeleteFunc(projects, func(slug string) bool {
		if counts[slug] > 1 {
			p.logger.Warnf("skipping %d build definitions named %s%s", counts[slug], prefix, slug)
			return true
		}
		return false
	}), nil
}

type buildDefinition struct {
	Name              string         `json:"name"`
	Type              string         `json:"type"`
	QueueStatus       string         `json:"queueStatus"`
	Process           process        `json:"process"`
	ProcessParameters map[string]any `json:"processParameters"`
	Drafts            []any          `json:"drafts"`
	Repository        repository     `json:"repository"`
}

type process struct {
	Type         int    `json:"type"` // 2 is YAML
	YAMLFilename string `json:"yamlFilename"`
}

type repository struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	URL                string `json:"url"`
	DefaultBranch      string `json:"defaultBranch"`
	Clean              string `json:"clean"`
	CheckoutSubmodules string `json:"checkoutSubmodules"`
}

func (p *Provider) AddOne(ctx context.Context, slug string) error {
	repo := p.account + "/" + slug
	def := buildDefinition{
		Name:              p.qualified(slug),
		Type:              "build",
		QueueStatus:       "enabled",
		Process:           process{Type: 2, YAMLFilename: pipelineFile},
		ProcessParameters: map[string]any{},
		Drafts:            []any{},
		Repository: repository{
			ID:                 repo,
			Type:               "GitHub",
			URL:                "https://github.com/" + repo + ".git",
			DefaultBranch:      defaultBranch,
			Clean:              "false",
			CheckoutSubmodules: "false",
		},
	}
	return p.client.Do(ctx, http.MethodPost, "/build/definitions?"+apiVersion, def, http.StatusOK, nil)
}

func (p *Provider) RemoveOne(ctx context.Context, slug string) error {
	def, err := p.definition(ctx, slug)
	if err != nil {
		return err
	}
	return p.client.Do(ctx, http.MethodDelete, "/build/definitions/"+strconv.Itoa(def.ID)+"?"+apiVersion, nil, http.StatusNoContent, nil)
}

type variable struct {
	Value    *string `json:"value"` // nil for secrets read back from the API
	IsSecret bool    `json:"isSecret"`
}

type variableGroup struct {
	object
	Variables map[string]variable `json:"variables"`
}

// Update writes the desired variables into the project's variable group,
// creating the group if needed. Variables already in the group and not
// desired are kept.
func (p *Provider) Update(ctx context.Context, slug string, desired envvar.Set, encrypted envvar.Names) error {
	name := p.qualified(slug)

	var groups collection[json.RawMessage]
	if err := p.client.Get(ctx, "/distributedtask/variablegroups?"+groupAPIVersion+"&groupName="+url.QueryEscape(name), &groups); err != nil {
		return err
	}

	docs := make(map[int]json.RawMessage, len(groups.Value))
	parsed := make([]variableGroup, 0, len(groups.Value))
	for _, raw := range groups.Value {
		var g variableGroup
		if err := json.Unmarshal(raw, &g); err != nil {
			return fmt.Errorf("decode variable group: %w", err)
		}
		docs[g.ID] = raw
		parsed = append(parsed, g)
	}

	group, err := exactlyOne(parsed, func(g variableGroup) string { return g.Name }, name)
	found := err == nil
	if err != nil && !errors.Is(err, errNotFound) {
		return err
	}

	remote := make([]envvar.Var, 0, len(group.Variables))
	for n, v := range group.Variables {
		remote = append(remote, envvar.Var{Name: n, Value: deref(v.Value), Encrypted: v.IsSecret})
	}

	merged, err := envvar.Merge(ctx, desired, encrypted, remote, envvar.Identity)
	if err != nil {
		return err
	}

	variables := make(map[string]variable, len(desired))
	for _, v := range envvar.Desired(merged) {
		variables[v.Name] = variable{Value: &v.Value, IsSecret: v.Encrypted}
	}

	patch := map[string]any{
		"type":        "Vsts",
		"name":        name,
		"description": groupDescription,
		"variables":   variables,
	}

	if !found {
		p.logger.Debugf("azure: creating variable group %s", name)
		return p.client.Do(ctx, http.MethodPost, "/distributedtask/variablegroups?"+groupAPIVersion, patch, http.StatusOK, nil)
	}

	doc, err := jsonpatch.Merge(docs[group.ID], patch)
	if err != nil {
		return fmt.Errorf("variable group %s: %w", name, err)
	}

	p.logger.Debugf("azure: updating variable group %s (%d)", name, group.ID)
	return p.client.Do(ctx, http.MethodPut, "/distributedtask/variablegroups/"+strconv.Itoa(group.ID)+"?"+groupAPIVersion, doc, http.StatusOK, nil)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
