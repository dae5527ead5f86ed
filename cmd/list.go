package cmd

import (
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag/v2"
)

type outputFormat int

const (
	outputTable outputFormat = iota
	outputYAML
)

var outputFormatIds = map[outputFormat][]string{
	outputTable: {"table"},
	outputYAML:  {"yaml"},
}

func newListCommand(common *commonParams) *cobra.Command {
	var format outputFormat

	list := &cobra.Command{
		Use:   "list",
		Short: "List the projects registered on each enabled provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := newLogger(common, cmd.ErrOrStderr())

			root, creds, err := loadConfig(common)
			if err != nil {
				return err
			}

			providers, err := newProviders(ctx, common, root, creds, log)
			if err != nil {
				return err
			}

			listed := yaml.MapSlice{}
			for _, p := range providers {
				projects, err := p.List(ctx)
				if err != nil {
					return fmt.Errorf("list %s: %w", p.Name(), err)
				}
				if projects == nil {
					projects = []string{}
				}
				listed = append(listed, yaml.MapItem{Key: p.Name(), Value: projects})
			}

			out := cmd.OutOrStdout()
			switch format {
			case outputYAML:
				bs, err := yaml.Marshal(listed)
				if err != nil {
					return err
				}
				_, err = out.Write(bs)
				return err
			default:
				table := tablewriter.NewWriter(out)
				table.Header("PROVIDER", "PROJECT")
				for _, item := range listed {
					for _, project := range item.Value.([]string) {
						if err := table.Append(item.Key.(string), project); err != nil {
							return err
						}
					}
				}
				return table.Render()
			}
		},
	}

	list.Flags().VarP(enumflag.New(&format, "format", outputFormatIds, enumflag.EnumCaseInsensitive), "output", "o", "output format: table or yaml")

	return list
}
