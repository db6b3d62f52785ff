package cli

import (
	"context"

	"github.com/dustin/go-humanize"

	"github.com/iudanet/chatsync/internal/models"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Chat Status ===")
	c.io.Println()

	sess := c.session.Get()
	if sess.SessionID == "" {
		c.io.Println("Session: none")
		c.io.Println()
		c.io.Println("Run 'chatsync sync' to connect to the server.")
	} else {
		c.io.Printf("Session:      %s (API v%d)\n", sess.SessionID, sess.APIVersion)
		if sess.LastSyncCursor.IsZero() {
			c.io.Println("Last sync:    never")
		} else {
			c.io.Printf("Last sync:    %s\n", humanize.RelTime(sess.LastSyncCursor, c.now(), "ago", "from now"))
		}
	}

	var sending, failed int
	all := c.messages.All()
	for i := range all {
		switch all[i].Status {
		case models.StatusSending:
			sending++
		case models.StatusFailed:
			failed++
		}
	}

	c.io.Printf("Messages:     %s\n", humanize.Comma(int64(len(all))))
	c.io.Printf("Participants: %s\n", humanize.Comma(int64(c.participants.Len())))

	c.io.Println()
	switch {
	case failed > 0:
		c.io.Printf("⚠️  %d message(s) failed to send\n", failed)
		c.io.Println("Run 'chatsync retry <id>' or 'chatsync discard <id>'.")
	case sending > 0:
		c.io.Printf("⚠️  %d message(s) waiting for server confirmation\n", sending)
	default:
		c.io.Println("✓ All messages delivered")
	}

	return nil
}
