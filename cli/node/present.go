package node

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/bit101/go-ansi"
	"github.com/spf13/cobra"
	"github.com/zvonler/groupmig/configuration"
	"github.com/zvonler/groupmig/model"
	"golang.org/x/term"
)

func initPresentCommand() *cobra.Command {
	presentCommand := &cobra.Command{
		Use:   "present <node-id>",
		Short: "Formats a captured tree for human consumption",
		Args:  cobra.ExactArgs(1),
		Run:   runPresentCommand,
	}
	return presentCommand
}

func paginateTree(tree *model.ContentNode) {
	cmd := exec.Command("/usr/bin/less", "-FRX")
	cmd.Stdout = os.Stdout

	if stdin, err := cmd.StdinPipe(); err == nil {
		go func() {
			defer stdin.Close()
			writeTree(stdin, tree, 0)
		}()
	} else {
		log.Fatal(err)
	}

	err := cmd.Run()
	if err != nil {
		log.Fatal(err)
	}
}

func writeTree(w io.Writer, node *model.ContentNode, depth int) {
	indent := strings.Repeat("  ", depth)
	ansi.Fprintf(w, ansi.Red, "%s%s", indent, node.Author.Name)
	ansi.Fprintf(w, ansi.Default, " (")
	ansi.Fprintf(w, ansi.Cyan, "%s", node.CreatedAt.Format("2006-01-02 15:04"))
	ansi.Fprintf(w, ansi.Default, ")\n")
	for _, line := range strings.Split(node.Message, "\n") {
		ansi.Fprintf(w, ansi.Default, "%s%s\n", indent, line)
	}
	for _, a := range node.Attachments {
		target := a.RemoteURL
		if a.Resolved() {
			target = a.LocalPath
		}
		ansi.Fprintf(w, ansi.Green, "%s[%s] %s\n", indent, a.Kind, target)
	}
	ansi.Fprintln(w, ansi.Blue, indent+"--------")
	for i := range node.Children {
		writeTree(w, &node.Children[i], depth+1)
	}
}

func printTree(node *model.ContentNode, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Printf("%s%s (%s)\n", indent, node.Author.Name, node.CreatedAt.Format("2006-01-02 15:04"))
	for _, line := range strings.Split(node.Message, "\n") {
		fmt.Printf("%s%s\n", indent, line)
	}
	for _, a := range node.Attachments {
		fmt.Printf("%s[%s] %s\n", indent, a.Kind, a.RemoteURL)
	}
	fmt.Println(indent + "--------")
	for i := range node.Children {
		printTree(&node.Children[i], depth+1)
	}
}

func runPresentCommand(cmd *cobra.Command, args []string) {
	isTty := term.IsTerminal(int(os.Stdout.Fd()))

	store, err := configuration.OpenExistingStore()
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	tree, err := store.Tree(args[0])
	if err != nil {
		log.Fatal(err)
	}
	if isTty {
		paginateTree(tree)
	} else {
		printTree(tree, 0)
	}
}
