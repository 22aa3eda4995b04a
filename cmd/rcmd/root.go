package main

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rcmd",
		Short: "Remote command client and server",
		Long: `rcmd runs file, process and screen-capture commands on a remote host
over a single TCP connection. Start "rcmd server" on the target and
connect with "rcmd client".`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServerCmd(), newClientCmd())
	return root
}
