package cli

import (
	"bufio"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/homar/homar/internal/adminclient"
	"github.com/homar/homar/internal/config"
)

func newChatCommand(logger *slog.Logger) *cobra.Command {
	_ = logger
	var (
		chatID     string
		fromUserID string
		display    string
		message    string
		timeoutSec int
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to a running homar server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := adminclient.New(config.FromEnv())

			text := strings.TrimSpace(message)
			if text == "" && len(args) > 0 {
				text = strings.TrimSpace(strings.Join(args, " "))
			}
			resolvedFromUserID := strings.TrimSpace(fromUserID)
			if resolvedFromUserID == "" {
				resolvedFromUserID = "cli"
			}

			if text != "" {
				ctx, cancel := context.WithTimeout(context.Background(), boundedTimeout(timeoutSec))
				defer cancel()
				response, err := client.Chat(ctx, adminclient.ChatRequest{
					ChatID:      chatID,
					FromUserID:  resolvedFromUserID,
					DisplayName: display,
					Text:        text,
				})
				if err != nil {
					return err
				}
				printReply(cmd, response.Reply)
				return nil
			}

			cmd.Printf("Connected to %s as %s. Type /exit to quit.\n", chatID, resolvedFromUserID)
			return runInteractiveChat(cmd, client, chatID, resolvedFromUserID, display, timeoutSec)
		},
	}
	cmd.Flags().StringVar(&chatID, "chat-id", "cli", "chat thread to speak in")
	cmd.Flags().StringVar(&fromUserID, "from-user-id", "", "origin user id (defaults to cli)")
	cmd.Flags().StringVar(&display, "display-name", "CLI", "display name for the transcript")
	cmd.Flags().StringVarP(&message, "message", "m", "", "single message to send (non-interactive mode)")
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 120, "request timeout in seconds")
	return cmd
}

func runInteractiveChat(cmd *cobra.Command, client *adminclient.Client, chatID, fromUserID, displayName string, timeoutSec int) error {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		cmd.Print("you> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/exit" || text == "/quit" {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), boundedTimeout(timeoutSec))
		response, err := client.Chat(ctx, adminclient.ChatRequest{
			ChatID:      chatID,
			FromUserID:  fromUserID,
			DisplayName: displayName,
			Text:        text,
		})
		cancel()
		if err != nil {
			cmd.PrintErrf("chat request failed: %v\n", err)
			continue
		}
		printReply(cmd, response.Reply)
	}

	return scanner.Err()
}

func printReply(cmd *cobra.Command, reply string) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		cmd.Println("homar> (no reply)")
		return
	}
	for index, line := range strings.Split(reply, "\n") {
		line = strings.TrimRight(line, "\r")
		if index == 0 {
			cmd.Printf("homar> %s\n", line)
			continue
		}
		cmd.Printf("       %s\n", line)
	}
}

func boundedTimeout(input int) time.Duration {
	if input < 1 {
		input = 120
	}
	if input > 600 {
		input = 600
	}
	return time.Duration(input) * time.Second
}
