package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iudanet/chatsync/internal/client/chat"
	"github.com/iudanet/chatsync/internal/client/iocli"
	"github.com/iudanet/chatsync/internal/client/state"
	syncengine "github.com/iudanet/chatsync/internal/client/sync"
)

// ErrUnknownCommand возвращается для неизвестной команды
var ErrUnknownCommand = errors.New("unknown command")

// Deps компоненты, с которыми работают команды
type Deps struct {
	Chat         *chat.Chat
	Engine       *syncengine.Engine
	Messages     *state.Messages
	Participants *state.Participants
	Session      *state.Session
	Gatherer     prometheus.Gatherer // источник метрик для watch --metrics-addr
}

type Cli struct {
	io           iocli.IO
	chat         *chat.Chat
	engine       *syncengine.Engine
	messages     *state.Messages
	participants *state.Participants
	session      *state.Session
	gatherer     prometheus.Gatherer
	logger       *slog.Logger
	now          func() time.Time
	location     *time.Location
}

func New(io iocli.IO, deps Deps, logger *slog.Logger) *Cli {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cli{
		io:           io,
		chat:         deps.Chat,
		engine:       deps.Engine,
		messages:     deps.Messages,
		participants: deps.Participants,
		session:      deps.Session,
		gatherer:     deps.Gatherer,
		logger:       logger,
		now:          time.Now,
		location:     time.Local,
	}
}

func PrintUsage() {
	fmt.Println("Chatsync Client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  chatsync [OPTIONS] COMMAND")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version                    Show version information")
	fmt.Println("  --config PATH                Path to YAML config file")
	fmt.Println("  --env-file PATH              Path to .env file (default: .env)")
	fmt.Println("  --server URL                 Server URL (default: http://localhost:8080)")
	fmt.Println("  --storage DRIVER             Local storage: bolt, sqlite or memory (default: bolt)")
	fmt.Println("  --db PATH                    Path to local database (default: chatsync-client.db)")
	fmt.Println("  --log-level LEVEL            debug, info, warn or error")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  CHATSYNC_SERVER_URL, CHATSYNC_STORAGE_DRIVER, CHATSYNC_STORAGE_PATH,")
	fmt.Println("  CHATSYNC_LOG_LEVEL and other CHATSYNC_* variables override the config file.")
	fmt.Println("  Command line options override the environment.")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  sync                    Run one synchronization cycle")
	fmt.Println("  watch [--metrics-addr]  Keep synchronizing and print the chat on every change")
	fmt.Println("  send [--reply-to ID] TEXT")
	fmt.Println("                          Send a message (prompts for text if omitted)")
	fmt.Println("  retry <id>              Resend a message that failed to send")
	fmt.Println("  discard <id>            Drop a message that failed to send")
	fmt.Println("  react <id> <emoji>      React to a message")
	fmt.Println("  status                  Show session and local state")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  chatsync sync")
	fmt.Println("  chatsync --storage sqlite --db chat.sqlite watch --metrics-addr :9100")
	fmt.Println("  chatsync send --reply-to 42 'sounds good'")
	fmt.Println("  chatsync react 42 👍")
}
