package cmd

import (
	"cmp"
	"context"
	"net/http"

	"github.com/bincrafters/envy/internal/config"
	"github.com/bincrafters/envy/internal/logging"
	"github.com/bincrafters/envy/internal/providers/appveyor"
	"github.com/bincrafters/envy/internal/providers/azure"
	"github.com/bincrafters/envy/internal/providers/circle"
	"github.com/bincrafters/envy/internal/providers/travis"
	"github.com/bincrafters/envy/internal/transport"
	"github.com/bincrafters/envy/pkg/provider"
)

// newProviders builds the enabled provider adapters in a fixed order. All
// tokens are resolved first so a missing one fails before any request.
func newProviders(ctx context.Context, p *commonParams, root *config.Root, creds provider.CredentialProvider, log *logging.Logger) ([]provider.Provider, error) {
	tokens := map[string]string{}
	for _, pf := range p.providers {
		if pf.skip {
			continue
		}
		token, err := creds.Token(ctx, pf.name)
		if err != nil {
			return nil, err
		}
		tokens[pf.name] = token
	}

	client := &http.Client{Timeout: p.timeout}
	if p.debugHTTP {
		client.Transport = transport.NewLoggingTransport(nil, log)
	}

	var providers []provider.Provider
	for _, pf := range p.providers {
		if pf.skip {
			continue
		}

		host := cmp.Or(root.Endpoints.Endpoint(pf.name), pf.host)
		logger := log.With("provider", pf.name)

		switch pf.name {
		case travis.Name:
			providers = append(providers, travis.New(travis.Options{
				Host:       host,
				Account:    root.Accounts.Travis,
				Token:      tokens[pf.name],
				HTTPClient: client,
				Rate:       p.rate,
				Logger:     logger,
			}))
		case appveyor.Name:
			providers = append(providers, appveyor.New(appveyor.Options{
				Host:       host,
				Account:    root.Accounts.AppVeyor,
				GitHub:     root.Accounts.GitHub,
				Token:      tokens[pf.name],
				HTTPClient: client,
				Rate:       p.rate,
				Logger:     logger,
			}))
		case circle.Name:
			providers = append(providers, circle.New(circle.Options{
				Host:       host,
				GitHub:     cmp.Or(root.Accounts.Circle, root.Accounts.GitHub),
				Token:      tokens[pf.name],
				HTTPClient: client,
				Rate:       p.rate,
				Logger:     logger,
			}))
		case azure.Name:
			providers = append(providers, azure.New(azure.Options{
				Host:       host,
				Account:    root.Accounts.Azure,
				Project:    root.Accounts.AzureProject,
				Token:      tokens[pf.name],
				HTTPClient: client,
				Rate:       p.rate,
				Logger:     logger,
			}))
		}
	}

	return providers, nil
}
