package main

import (
	"github.com/spf13/cobra"
	"github.com/sre-norns/cloudapi/pkg/bark"
	"github.com/sre-norns/cloudapi/pkg/server"
	"gopkg.in/yaml.v3"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version of the binary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()

			return enc.Encode(bark.NewVersionResponse(server.Name))
		},
	}
}
