package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Folken2/ag-ui-research/internal/app"
	"github.com/Folken2/ag-ui-research/internal/config"
	"github.com/Folken2/ag-ui-research/internal/stream"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive terminal conversation",
	Long: `Starts a conversation in the terminal. Research progress (tool calls,
agent status) is printed inline as it happens. Say goodbye or press Ctrl+D
to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	fmt.Println("research-chat — ask me anything. Ctrl+D to quit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}

		for ev := range a.Adapter.Process(ctx, message) {
			printEvent(ev)
		}
		fmt.Println()

		if !a.Adapter.Session().Active() {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// printEvent renders one stream frame for the terminal: content inline,
// progress as dim status lines, lifecycle frames silent.
func printEvent(ev stream.Event) {
	switch ev.Type {
	case stream.TypeRunStarted, stream.TypeRunFinished, stream.TypeSourcesUpdate:
		// Sources are already cited in the synthesized answer.
	case stream.TypeTextMessageDelta:
		if content, ok := ev.Data["content"].(string); ok {
			fmt.Println(content)
		}
	case stream.TypeAgentError, stream.TypeTaskError, stream.TypeToolError:
		fmt.Printf("  [error] %v\n", ev.Data["error"])
	case stream.TypeToolUsage:
		if tool, ok := ev.Data["tool"].(string); ok {
			fmt.Printf("  · %s (%v)\n", tool, ev.Data["status"])
		}
	default:
		if message, ok := ev.Data["message"].(string); ok {
			fmt.Printf("  · %s\n", message)
		} else if status, ok := ev.Data["status"].(string); ok {
			fmt.Printf("  · %s\n", status)
		}
	}
}
