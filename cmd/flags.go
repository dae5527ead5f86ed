package cmd

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/thediveo/enumflag/v2"

	"github.com/bincrafters/envy/internal/logging"
	"github.com/bincrafters/envy/internal/providers/appveyor"
	"github.com/bincrafters/envy/internal/providers/azure"
	"github.com/bincrafters/envy/internal/providers/circle"
	"github.com/bincrafters/envy/internal/providers/travis"
)

var logLevelIds = map[logging.Level][]string{
	logging.LevelDebug: {"debug"},
	logging.LevelInfo:  {"info"},
	logging.LevelWarn:  {"warn", "warning"},
	logging.LevelError: {"error"},
}

var logFormatIds = map[logging.Format][]string{
	logging.FormatText: {"text"},
	logging.FormatJSON: {"json"},
}

// providerFlags selects a provider and overrides its API host.
type providerFlags struct {
	name string
	skip bool
	host string
}

// commonParams are shared by every command.
type commonParams struct {
	configFile string
	providers  []*providerFlags
	logLevel   logging.Level
	logFormat  logging.Format
	debugHTTP  bool
	rate       float64
	timeout    time.Duration
	tokenDir   string
}

func newCommonParams() *commonParams {
	return &commonParams{
		logLevel: logging.LevelInfo,
		providers: []*providerFlags{
			{name: travis.Name},
			{name: appveyor.Name},
			{name: circle.Name},
			{name: azure.Name},
		},
	}
}

var defaultHosts = map[string]string{
	travis.Name:   travis.DefaultHost,
	appveyor.Name: appveyor.DefaultHost,
	circle.Name:   circle.DefaultHost,
	azure.Name:    azure.DefaultHost,
}

func addCommonFlags(fs *pflag.FlagSet, p *commonParams) {
	fs.StringVarP(&p.configFile, "config", "c", "", "configuration INI file name (default \"envy.ini\", then the user config directory)")
	for _, pf := range p.providers {
		fs.BoolVar(&pf.skip, "skip-"+pf.name, false, "skip "+pf.name+" configuration")
		fs.StringVar(&pf.host, pf.name+"-host", "", "endpoint for "+pf.name+" REST API (default \""+defaultHosts[pf.name]+"\")")
	}
	fs.Var(enumflag.New(&p.logLevel, "level", logLevelIds, enumflag.EnumCaseInsensitive), "log-level", "log level: debug, info, warn or error")
	fs.Var(enumflag.New(&p.logFormat, "format", logFormatIds, enumflag.EnumCaseInsensitive), "log-format", "log format: text or json")
	fs.BoolVar(&p.debugHTTP, "debug-http", false, "log provider requests and responses (implies --log-level debug)")
	fs.Float64Var(&p.rate, "rate", 0, "maximum requests per second per provider (0 means unlimited)")
	fs.DurationVar(&p.timeout, "timeout", time.Minute, "timeout of a single provider request")
	fs.StringVar(&p.tokenDir, "token-dir", "", "directory searched for {provider}.token files (default the working directory)")
}
