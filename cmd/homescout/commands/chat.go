package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/homescout/internal/agent"
	"github.com/jmylchreest/homescout/internal/conversation"
	"github.com/jmylchreest/homescout/internal/logger"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the real-estate agent in the terminal",
	Long: `Start an interactive session with the agent. The agent searches
listings on your behalf when you ask for them.

Type 'exit' or 'quit' to leave.

Examples:
  homescout chat
  homescout chat --prompt "Find 3 flats in Lyon between 100k and 250k"`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("prompt", "p", "", "send a single message and exit")
}

func runChat(cmd *cobra.Command, _ []string) error {
	svc, cleanup, err := newSearchService(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	orch, err := newOrchestrator(svc)
	if err != nil {
		return err
	}

	conv, _ := conversation.NewStore(0).GetOrCreate("")
	out := cmd.OutOrStdout()

	if prompt, _ := cmd.Flags().GetString("prompt"); prompt != "" {
		reply, err := orch.Respond(cmd.Context(), conv, prompt)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, reply.Text)
		return nil
	}
	return repl(cmd.Context(), orch, conv, cmd.InOrStdin(), out)
}

// repl reads user lines until EOF, exit or quit. A failed turn is reported
// and the session continues.
func repl(ctx context.Context, orch *agent.Orchestrator, conv *conversation.Conversation, in io.Reader, out io.Writer) error {
	_, _ = fmt.Fprintln(out, "Real estate orchestrator ready. Type 'exit' to quit.")

	sc := bufio.NewScanner(in)
	for {
		_, _ = fmt.Fprint(out, "\nYou: ")
		if !sc.Scan() {
			_, _ = fmt.Fprintln(out)
			return sc.Err()
		}
		text := strings.TrimSpace(sc.Text())
		switch strings.ToLower(text) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		reply, err := orch.Respond(ctx, conv, text)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("turn failed", "conversation", conv.ID, "error", err)
			_, _ = fmt.Fprintf(out, "Agent: sorry, something went wrong (%v)\n", err)
			continue
		}
		_, _ = fmt.Fprintf(out, "Agent: %s\n", reply.Text)
	}
}
