package node

import (
	"log"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/zvonler/groupmig/configuration"
)

func initOpenCommand() *cobra.Command {
	openCommand := &cobra.Command{
		Use:   "open <node-id>",
		Short: "Opens a captured node's source permalink in a browser.",
		Args:  cobra.ExactArgs(1),
		Run:   runOpenCommand,
	}
	return openCommand
}

func runOpenCommand(cmd *cobra.Command, args []string) {
	store, err := configuration.OpenExistingStore()
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	// Confirm the id is captured before opening anything.
	tree, err := store.Tree(args[0])
	if err != nil {
		log.Fatal(err)
	}
	browser.OpenURL("https://www.facebook.com/" + tree.ID)
}
