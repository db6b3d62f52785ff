package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/chatsync/internal/client/chat"
)

func (c *Cli) runReact(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: chatsync react <id> <emoji>")
	}
	messageID, emoji := args[0], args[1]

	if err := c.chat.React(ctx, messageID, emoji); err != nil {
		if errors.Is(err, chat.ErrReactionFailed) {
			c.io.Println("✗ Reaction was not accepted by the server and has been reverted.")
		}
		return fmt.Errorf("failed to react: %w", err)
	}

	c.io.Printf("✓ Reacted %s to %s\n", emoji, messageID)
	return nil
}
