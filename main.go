package main

import (
	"log"

	"github.com/zvonler/groupmig/cli"
)

func main() {
	groupmigCmd := cli.NewCommand()
	if err := groupmigCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
