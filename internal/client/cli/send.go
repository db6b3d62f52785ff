package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/iudanet/chatsync/internal/models"
)

func (c *Cli) runSend(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(c.io)
	replyTo := fs.String("reply-to", "", "ID of the message to reply to")
	if err := fs.Parse(args); err != nil {
		return err
	}

	text := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(text) == "" {
		input, err := c.io.ReadInput("Message: ")
		if err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}
		text = input
	}

	msg, err := c.chat.Send(ctx, models.SendInput{Text: text, ReplyToID: *replyTo})
	if err != nil {
		c.printFailedHint()
		return fmt.Errorf("failed to send message: %w", err)
	}

	c.io.Printf("✓ Message sent (id: %s)\n", msg.ID)
	return nil
}

func (c *Cli) runRetry(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: chatsync retry <id>")
	}

	msg, err := c.chat.RetrySend(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to resend message: %w", err)
	}

	c.io.Printf("✓ Message sent (id: %s)\n", msg.ID)
	return nil
}

func (c *Cli) runDiscard(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: chatsync discard <id>")
	}

	if err := c.chat.Discard(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to discard message: %w", err)
	}

	c.io.Println("✓ Message discarded")
	return nil
}

// printFailedHint выводит id неотправленных сообщений
func (c *Cli) printFailedHint() {
	all := c.messages.All()
	for i := range all {
		if all[i].Status == models.StatusFailed {
			c.io.Printf("Message %s was not delivered. Run 'chatsync retry %s' to resend it.\n", all[i].ID, all[i].ID)
		}
	}
}
