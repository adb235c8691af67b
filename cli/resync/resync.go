package resync

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/zvonler/groupmig/configuration"
	"github.com/zvonler/groupmig/crawler"
	"github.com/zvonler/groupmig/graph"
	"github.com/zvonler/groupmig/media"
)

var (
	parallelism int
)

func NewCommand() *cobra.Command {
	resyncCommand := &cobra.Command{
		Use:   "resync <group-id>",
		Short: "Re-captures posts newer than the last sync point",
		Long: "Like sync, but posts already in the database are purged and fetched " +
			"again, so edits to previously captured content are picked up.",
		Args: cobra.ExactArgs(1),
		Example: "" +
			"  " + os.Args[0] + " resync 123456789",
		Run: runResyncCommand,
	}

	resyncCommand.Flags().IntVar(&parallelism, "parallelism", 1, "Concurrent root subtree fetches")

	return resyncCommand
}

func runResyncCommand(cmd *cobra.Command, args []string) {
	store, err := configuration.OpenExistingStore()
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	client, err := configuration.NewGraphClient()
	if err != nil {
		log.Fatal(err)
	}

	c := crawler.New(client, store, media.NewFetcher())
	c.Parallelism = parallelism
	if err := c.Run(context.Background(), args[0], graph.ModeResync); err != nil {
		log.Fatal(err)
	}
}
