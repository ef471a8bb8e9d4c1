package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/edusuite/chat-bridge/internal/domain"
)

// InteractiveCLI handles interactive command-line interface
type InteractiveCLI struct {
	handler *CommandHandler
	reader  *bufio.Reader
	writer  io.Writer
}

// NewInteractiveCLI creates a new interactive CLI
func NewInteractiveCLI(handler *CommandHandler) *InteractiveCLI {
	return &InteractiveCLI{
		handler: handler,
		reader:  bufio.NewReader(os.Stdin),
		writer:  os.Stdout,
	}
}

// Run starts the interactive CLI loop
func (cli *InteractiveCLI) Run(ctx context.Context) error {
	cli.printWelcome()

	// Subscribe to events in background
	eventChan := cli.handler.SubscribeEvents([]domain.EventType{
		domain.EventTypeMessageReceived,
		domain.EventTypeMessageConfirmed,
		domain.EventTypeMessageFailed,
		domain.EventTypeConnectionStatus,
	})

	go cli.handleEvents(eventChan)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			cli.print("\n> ")
			line, err := cli.reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			if err := cli.processCommand(ctx, line); err != nil {
				if err.Error() == "quit" {
					cli.println("Goodbye!")
					return nil
				}
				cli.printf("Error: %s\n", err)
			}
		}
	}
}

func (cli *InteractiveCLI) printWelcome() {
	cli.println("===========================================")
	cli.println("  Chat Bridge CLI")
	cli.println("===========================================")
	cli.println("Type /help for available commands")
	cli.println("")

	// Show current status
	status, _ := cli.handler.cmdStatus()
	if s, ok := status.(SessionStatus); ok {
		cli.printf("Status: %s\n", s.Status)
	}
}

func (cli *InteractiveCLI) processCommand(ctx context.Context, input string) error {
	cmd, err := ParseCommand(input)
	if err != nil {
		return err
	}

	result, err := cli.handler.Execute(ctx, cmd)
	if err != nil {
		return err
	}

	// Check for quit command
	if m, ok := result.(map[string]bool); ok && m["quit"] {
		return fmt.Errorf("quit")
	}

	// Format and display result
	cli.displayResult(cmd.Name, result)
	return nil
}

func (cli *InteractiveCLI) displayResult(cmdName string, result interface{}) {
	switch cmdName {
	case "help", "h":
		if m, ok := result.(map[string]string); ok {
			cli.println(m["help"])
		}

	case "status", "s":
		if s, ok := result.(SessionStatus); ok {
			cli.printf("Session Status: %s\n", s.Status)
			cli.printf("  User: %s\n", s.UserID)
			if s.ActiveChat != "" {
				cli.printf("  Active chat: %s\n", s.ActiveChat)
			}
			if len(s.JoinedRooms) > 0 {
				cli.printf("  Rooms: %s\n", strings.Join(s.JoinedRooms, ", "))
			}
			if s.QueuedSends > 0 {
				cli.printf("  Queued sends: %d\n", s.QueuedSends)
			}
		}

	case "chats", "ls":
		if m, ok := result.(map[string]interface{}); ok {
			chats, _ := m["chats"].([]ChatInfo)
			cli.printf("Found %d chat(s):\n\n", len(chats))
			for i, chat := range chats {
				cli.printf("%d. %s (%s)\n", i+1, chat.Name, chat.Type)
				cli.printf("   ID: %s\n", chat.ID)
				if chat.LastMessageText != "" {
					preview := chat.LastMessageText
					if len(preview) > 50 {
						preview = preview[:50] + "..."
					}
					cli.printf("   Last: %s\n", preview)
				}
			}
		}

	case "open", "o", "messages", "msg", "history":
		if m, ok := result.(map[string]interface{}); ok {
			messages, _ := m["messages"].([]MessageInfo)
			cli.printf("Found %d message(s):\n\n", len(messages))
			for _, msg := range messages {
				cli.printMessage(msg)
			}
		}

	case "send", "retry":
		if msg, ok := result.(MessageInfo); ok {
			cli.printf("Message %s\n", msg.Status)
			cli.printf("  ID: %s\n", msg.ID)
			cli.printf("  Time: %s\n", msg.Timestamp.Format("2006-01-02 15:04:05"))
		}

	case "search":
		if m, ok := result.(map[string]interface{}); ok {
			query, _ := m["query"].(string)
			messages, _ := m["messages"].([]MessageInfo)
			cli.printf("Search results for '%s' (%d found):\n\n", query, len(messages))
			for i, msg := range messages {
				sender := "Me"
				if !msg.FromSelf {
					sender = msg.SenderName
				}
				cli.printf("%d. [%s] %s:\n", i+1, msg.Timestamp.Format("2006-01-02 15:04"), sender)
				text := msg.Text
				if len(text) > 80 {
					text = text[:80] + "..."
				}
				cli.printf("   %s\n", text)
				cli.printf("   Chat: %s | ID: %s\n\n", msg.ChatID, msg.ID)
			}
		}

	default:
		// Generic JSON output for other commands
		if m, ok := result.(map[string]string); ok {
			if msg, exists := m["message"]; exists {
				cli.println(msg)
				return
			}
		}
		// Pretty print JSON
		data, _ := json.MarshalIndent(result, "", "  ")
		cli.println(string(data))
	}
}

func (cli *InteractiveCLI) printMessage(msg MessageInfo) {
	sender := "Me"
	if !msg.FromSelf {
		sender = msg.SenderName
		if sender == "" {
			sender = msg.SenderID
		}
	}
	timestamp := msg.Timestamp.Format("2006-01-02 15:04")
	marker := ""
	if msg.Status == string(domain.StatusPending) {
		marker = " (sending...)"
	} else if msg.Status == string(domain.StatusFailed) {
		marker = " (FAILED)"
	}
	cli.printf("[%s] %s%s:\n", timestamp, sender, marker)
	cli.printf("  %s\n", msg.Text)
	cli.printf("  ID: %s\n\n", msg.ID)
}

func (cli *InteractiveCLI) handleEvents(eventChan <-chan Event) {
	for event := range eventChan {
		switch event.Type {
		case "message_received":
			if msg, ok := event.Data.(MessageInfo); ok {
				sender := msg.SenderName
				if sender == "" {
					sender = msg.SenderID
				}
				cli.printf("\n[New Message] From %s:\n", sender)
				cli.printf("  %s\n", msg.Text)
				cli.print("> ")
			}
		case "message_confirmed":
			if msg, ok := event.Data.(MessageInfo); ok {
				cli.printf("\n[Delivered] %s\n", msg.ID)
				cli.print("> ")
			}
		case "message_failed":
			if msg, ok := event.Data.(MessageInfo); ok {
				cli.printf("\n[Send Failed] %s (retry with /retry %s)\n", msg.Text, msg.CorrelationID)
				cli.print("> ")
			}
		case "connection_status":
			if data, ok := event.Data.(map[string]interface{}); ok {
				connected, _ := data["connected"].(bool)
				if connected {
					cli.println("\n[Connected to chat server]")
				} else {
					reason, _ := data["reason"].(string)
					cli.printf("\n[Disconnected: %s]\n", reason)
				}
				cli.print("> ")
			}
		}
	}
}

func (cli *InteractiveCLI) print(s string) {
	fmt.Fprint(cli.writer, s)
}

func (cli *InteractiveCLI) println(s string) {
	fmt.Fprintln(cli.writer, s)
}

func (cli *InteractiveCLI) printf(format string, args ...interface{}) {
	fmt.Fprintf(cli.writer, format, args...)
}
