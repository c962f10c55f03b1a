package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/citizen-alerts-service/internal/chat"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the alerts assistant",
		Long: `Start an interactive session with the alerts assistant.

  /photo <text>  send a message with one attached photo
  /clear         start over
  /quit          exit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.InOrStdin(), cmd.OutOrStdout(), chat.NewConversation(nil))
		},
	}
}

func runChat(in io.Reader, out io.Writer, conv *chat.Conversation) error {
	printMessage(out, conv.Messages()[0])

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/clear":
			conv.Clear()
			printMessage(out, conv.Messages()[0])
			continue
		}

		images := 0
		if rest, ok := strings.CutPrefix(line, "/photo "); ok {
			images = 1
			line = rest
		}
		printMessage(out, conv.Send(line, images))
	}
}

func printMessage(w io.Writer, m chat.Message) {
	fmt.Fprintln(w, m.Content)
	if c := m.AlertCard; c != nil {
		fmt.Fprintf(w, "  [%s] %s @ %s\n", c.Severity, c.Title, c.Location)
	}
	for _, q := range m.QuickReplies {
		fmt.Fprintf(w, "  > %s\n", q)
	}
	fmt.Fprintln(w)
}
