package crawl

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
	crawlCommand := &cobra.Command{
		Use:   "crawl <group-id>",
		Short: "Runs the full initial crawl of a group",
		Long: "Captures every post of the group with its comment tree and attachments, " +
			"skipping posts already in the database.",
		Args: cobra.ExactArgs(1),
		Example: "" +
			"  " + os.Args[0] + " crawl 123456789",
		Run: runCrawlCommand,
	}

	crawlCommand.Flags().IntVar(&parallelism, "parallelism", 1, "Concurrent root subtree fetches")

	return crawlCommand
}

func runCrawlCommand(cmd *cobra.Command, args []string) {
	store, err := configuration.OpenStore()
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
	if err := c.Run(context.Background(), args[0], graph.ModeInitial); err != nil {
		log.Fatal(err)
	}
}
