package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zvonler/groupmig/cli/crawl"
	"github.com/zvonler/groupmig/cli/fetch"
	"github.com/zvonler/groupmig/cli/node"
	"github.com/zvonler/groupmig/cli/publish"
	"github.com/zvonler/groupmig/cli/resync"
	"github.com/zvonler/groupmig/cli/sync"
)

var (
	dbPath       string
	resourcesDir string
)

func NewCommand() *cobra.Command {
	groupmigCli := &cobra.Command{
		Use:     "groupmig",
		Short:   "Groupmig CLI",
		Long:    "Migrates a group's posts, comment trees and media between content services",
		Example: fmt.Sprintf("  %s <command> [flags...]", os.Args[0]),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is fine, the environment may be set already.
			godotenv.Load()
			viper.BindEnv("access-token", "GRAPH_ACCESS_TOKEN")
			viper.BindEnv("wp-url", "WP_URL")
			viper.BindEnv("wp-username", "WP_USERNAME")
			viper.BindEnv("wp-password", "WP_PASSWORD")
		},
	}

	groupmigCli.PersistentFlags().StringVar(&dbPath, "database", "groupmig.db", "Database filename")
	groupmigCli.PersistentFlags().StringVar(&resourcesDir, "resources", "resources", "Directory for downloaded attachments")
	viper.BindPFlag("database", groupmigCli.PersistentFlags().Lookup("database"))
	viper.BindPFlag("resources", groupmigCli.PersistentFlags().Lookup("resources"))

	groupmigCli.AddCommand(crawl.NewCommand())
	groupmigCli.AddCommand(fetch.NewCommand())
	groupmigCli.AddCommand(node.NewCommand())
	groupmigCli.AddCommand(publish.NewCommand())
	groupmigCli.AddCommand(resync.NewCommand())
	groupmigCli.AddCommand(sync.NewCommand())

	return groupmigCli
}
