package sync

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
	syncCommand := &cobra.Command{
		Use:   "sync <group-id>",
		Short: "Captures posts newer than the last sync point",
		Args:  cobra.ExactArgs(1),
		Example: "" +
			"  " + os.Args[0] + " sync 123456789",
		Run: runSyncCommand,
	}

	syncCommand.Flags().IntVar(&parallelism, "parallelism", 1, "Concurrent root subtree fetches")

	return syncCommand
}

func runSyncCommand(cmd *cobra.Command, args []string) {
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
	if err := c.Run(context.Background(), args[0], graph.ModeSync); err != nil {
		log.Fatal(err)
	}
}
