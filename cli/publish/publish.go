package publish

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zvonler/groupmig/configuration"
	"github.com/zvonler/groupmig/database"
	"github.com/zvonler/groupmig/wordpress"
)

var (
	uploadResources bool
	force           bool
)

func NewCommand() *cobra.Command {
	publishCommand := &cobra.Command{
		Use:   "publish [node-id...]",
		Short: "Pushes captured trees to the destination blog",
		Long: "Publishes materialized trees as posts with nested comments. With no " +
			"arguments every captured tree not yet published is pushed.",
		Example: "" +
			"  " + os.Args[0] + " publish\n" +
			"  " + os.Args[0] + " publish 123456789_987654321",
		Run: runPublishCommand,
	}

	publishCommand.Flags().BoolVar(&uploadResources, "upload-resources", false,
		"Upload downloaded attachments to the destination instead of linking source URLs")
	publishCommand.Flags().BoolVar(&force, "force", false,
		"Publish trees even when a destination id is already recorded for them")

	publishCommand.AddCommand(initAuthorsCommand())

	return publishCommand
}

func initAuthorsCommand() *cobra.Command {
	authorsCommand := &cobra.Command{
		Use:   "authors",
		Short: "Rebuilds the destination page of per-author post counts",
		Args:  cobra.NoArgs,
		Run:   runAuthorsCommand,
	}
	return authorsCommand
}

func runAuthorsCommand(cmd *cobra.Command, args []string) {
	publisher, err := newPublisher()
	if err != nil {
		log.Fatal(err)
	}
	if err := publisher.UpdateAuthorsPage(context.Background()); err != nil {
		log.Fatal(err)
	}
}

func newPublisher() (*wordpress.Publisher, error) {
	blogURL, err := url.Parse(viper.GetString("wp-url"))
	if err != nil || blogURL.Host == "" {
		return nil, fmt.Errorf("no destination blog configured (set WP_URL)")
	}
	caller := wordpress.NewRESTCaller(blogURL,
		viper.GetString("wp-username"), viper.GetString("wp-password"))
	return wordpress.NewPublisher(caller, uploadResources), nil
}

func runPublishCommand(cmd *cobra.Command, args []string) {
	store, err := configuration.OpenExistingStore()
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	publisher, err := newPublisher()
	if err != nil {
		log.Fatal(err)
	}

	ids := args
	if len(ids) == 0 {
		summaries, err := store.Summaries()
		if err != nil {
			log.Fatal(err)
		}
		for _, s := range summaries {
			ids = append(ids, s.ID)
		}
	}

	ctx := context.Background()
	for _, id := range ids {
		if err := publishOne(ctx, store, publisher, id); err != nil {
			log.Printf("Failed to publish %s: %v", id, err)
		}
	}
}

func publishOne(ctx context.Context, store *database.SyncStore, publisher *wordpress.Publisher, id string) error {
	if !force {
		destID, err := store.DestinationID(id)
		if err != nil {
			return err
		}
		if destID != "" {
			return nil
		}
	}
	tree, err := store.Tree(id)
	if err != nil {
		return err
	}
	destID, err := publisher.Publish(ctx, tree)
	if err != nil {
		return err
	}
	if destID != "" {
		store.SetDestinationID(id, destID)
	}
	return nil
}
