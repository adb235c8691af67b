package node

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/zvonler/groupmig/configuration"
)

func initListCommand() *cobra.Command {
	listCommand := &cobra.Command{
		Use:   "list",
		Short: "Lists captured nodes in the database",
		Run:   runListCommand,
	}
	return listCommand
}

func runListCommand(cmd *cobra.Command, args []string) {
	store, err := configuration.OpenExistingStore()
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	summaries, err := store.Summaries()
	if err != nil {
		log.Fatal(err)
	}
	for _, s := range summaries {
		line := fmt.Sprintf("%s: %s (%s)", s.ID, s.Author, s.CreatedAt.Format("2006-01-02"))
		if s.Unresolved > 0 {
			line += fmt.Sprintf(" [%d unresolved attachments]", s.Unresolved)
		}
		fmt.Println(line)
	}
}
