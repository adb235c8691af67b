package fetch

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
	overwrite bool
)

func NewCommand() *cobra.Command {
	fetchCommand := &cobra.Command{
		Use:   "fetch <node-id>...",
		Short: "Captures single posts by id",
		Long: "Fetches the given root nodes with their full comment trees. Useful for " +
			"retrying roots a crawl reported as failed.",
		Args: cobra.MinimumNArgs(1),
		Example: "" +
			"  " + os.Args[0] + " fetch 123456789_987654321",
		Run: runFetchCommand,
	}

	fetchCommand.Flags().BoolVar(&overwrite, "overwrite", false, "Purge and refetch ids already captured")

	return fetchCommand
}

func runFetchCommand(cmd *cobra.Command, args []string) {
	store, err := configuration.OpenStore()
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	client, err := configuration.NewGraphClient()
	if err != nil {
		log.Fatal(err)
	}

	mode := graph.ModeInitial
	if overwrite {
		mode = graph.ModeResync
	}

	c := crawler.New(client, store, media.NewFetcher())
	for _, id := range args {
		if err := c.RunOne(context.Background(), id, graph.SchemaFull, mode); err != nil {
			log.Printf("Failed root %s: %v", id, err)
		}
	}
}
