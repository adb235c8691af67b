package node

import (
	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	nodeCommand := &cobra.Command{
		Use:   "node",
		Short: "Operations on captured nodes",
	}

	nodeCommand.AddCommand(initListCommand())
	nodeCommand.AddCommand(initPresentCommand())
	nodeCommand.AddCommand(initOpenCommand())

	return nodeCommand
}
