package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/iudanet/chatsync/internal/client/grouping"
	"github.com/iudanet/chatsync/internal/client/metrics"
	syncengine "github.com/iudanet/chatsync/internal/client/sync"
	"github.com/iudanet/chatsync/internal/models"
)

func (c *Cli) runWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(c.io)
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *metricsAddr != "" {
		if c.gatherer == nil {
			return errors.New("metrics are not configured")
		}
		srv := &http.Server{
			Addr:              *metricsAddr,
			Handler:           c.metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			c.logger.Info("Serving metrics", "addr", *metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				c.logger.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				c.logger.Error("Failed to shutdown metrics server", "error", err)
			}
		}()
	}

	changed := make(chan struct{}, 1)
	c.chat.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	c.engine.OnStatusChange(func(s syncengine.ConnectionStatus) {
		c.io.Printf("[%s]\n", s)
	})

	c.printGroups()

	if err := c.chat.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sync: %w", err)
	}
	defer c.chat.Stop()

	for {
		select {
		case <-ctx.Done():
			c.io.Println("Stopped.")
			return nil
		case <-changed:
			c.printGroups()
		}
	}
}

func (c *Cli) metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(c.gatherer))
	return mux
}

// printGroups выводит сообщения, сгруппированные по дню и автору
func (c *Cli) printGroups() {
	groups := c.chat.Groups()
	if len(groups) == 0 {
		c.io.Println("No messages yet.")
		return
	}

	for _, g := range groups {
		if g.DateSeparator {
			c.io.Printf("--- %s ---\n", g.Day.Format("Mon, 02 Jan 2006"))
		}
		c.io.Printf("%s:\n", c.authorName(g))
		for i := range g.Messages {
			c.io.Printf("  %s\n", formatMessage(&g.Messages[i], g.Day.Location()))
		}
	}
}

func (c *Cli) authorName(g grouping.MessageGroup) string {
	if len(g.Messages) > 0 && g.Messages[0].Author.Name != "" {
		return g.Messages[0].Author.Name
	}
	if p, ok := c.participants.Get(g.AuthorID); ok && p.Name != "" {
		return p.Name
	}
	return g.AuthorID
}

func formatMessage(m *models.Message, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] #%s", m.CreatedAt.In(loc).Format("15:04"), m.ID)
	if m.ReplyTo != nil {
		fmt.Fprintf(&b, " (reply to #%s)", m.ReplyTo.ID)
	}
	b.WriteString(" ")
	b.WriteString(m.Text)
	if m.EditedAt != nil {
		b.WriteString(" (edited)")
	}
	for _, r := range m.Reactions {
		fmt.Fprintf(&b, "  %s %d", r.Emoji, r.Count)
	}
	if m.Status != models.StatusSent {
		fmt.Fprintf(&b, " [%s]", m.Status)
	}
	return b.String()
}
