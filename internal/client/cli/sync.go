package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	syncengine "github.com/iudanet/chatsync/internal/client/sync"
)

func (c *Cli) runSync(ctx context.Context) error {
	c.io.Println("=== Synchronization ===")
	c.io.Println()
	c.io.Println("Starting synchronization with server...")

	res, err := c.engine.Poll(ctx)
	if err != nil {
		return fmt.Errorf("synchronization failed: %w", err)
	}
	if res.Discarded || res.Outcome == syncengine.OutcomeCanceled {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("synchronization interrupted: %w", err)
		}
		return errors.New("synchronization interrupted")
	}

	c.io.Println()
	if res.SessionReset {
		c.io.Println("Server session changed, local chat state was reset.")
	}
	c.io.Printf("Pulled messages:      %d\n", res.PulledMessages)
	c.io.Printf("Pulled participants:  %d\n", res.PulledParticipants)
	c.io.Printf("Added locally:        %d\n", res.Merged.Added)
	c.io.Printf("Updated locally:      %d\n", res.Merged.Updated)
	if res.Merged.Reconciled > 0 {
		c.io.Printf("Confirmed sends:      %d\n", res.Merged.Reconciled)
	}
	if res.Reapplied > 0 {
		c.io.Printf("Pending reactions:    %d\n", res.Reapplied)
	}
	c.io.Printf("Took:                 %s\n", res.Duration.Round(time.Millisecond))
	c.io.Println()

	switch res.Outcome {
	case syncengine.OutcomeOK:
		c.io.Println("✓ Synchronization completed successfully!")
		return nil
	case syncengine.OutcomeConflict:
		c.io.Println("⚠️  Server reported a conflict, changes will be picked up on the next sync.")
		return nil
	default:
		if res.Err == nil {
			return errors.New("synchronization failed")
		}
		return fmt.Errorf("synchronization failed: %w", res.Err)
	}
}
