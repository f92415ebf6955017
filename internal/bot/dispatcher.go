// Package bot drives the update loop: it pulls updates from the transport,
// runs the guard chain, and hands each update off to the relay core on its
// own task.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"anonword-relay/internal/domain"
	"anonword-relay/internal/integrations/telegram"
	"anonword-relay/internal/usecase"
)

const defaultPollTimeout = 50 // seconds, long-poll

// UpdateSource is the polling side of the transport.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]telegram.Update, error)
}

// Relay is the surface of the relay core the dispatcher drives.
type Relay interface {
	EnsureUser(ctx context.Context, senderID int64) (*domain.User, bool, error)
	Start(ctx context.Context, msg *telegram.Message, arg string) error
	Link(ctx context.Context, msg *telegram.Message, arg string) error
	Welcome(ctx context.Context, msg *telegram.Message, arg string) error
	Delete(ctx context.Context, msg *telegram.Message) error
	Reveal(ctx context.Context, msg *telegram.Message) error
	Ban(ctx context.Context, msg *telegram.Message) error
	RevealForwarded(ctx context.Context, msg *telegram.Message) error
	HandleMessage(ctx context.Context, msg *telegram.Message)
	ReportFailure(ctx context.Context, msg *telegram.Message, err error)
	StorageChannelID() int64
}

// Dispatcher routes inbound updates to the relay core, one goroutine per
// update. It owns no state besides the poll offset.
type Dispatcher struct {
	source UpdateSource
	relay  Relay
	log    *slog.Logger
}

// New validates dependencies and builds a Dispatcher.
func New(source UpdateSource, relay Relay, log *slog.Logger) (*Dispatcher, error) {
	if source == nil {
		return nil, errors.New("bot: update source must not be nil")
	}
	if relay == nil {
		return nil, errors.New("bot: relay must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{source: source, relay: relay, log: log}, nil
}

// Run long-polls for updates until ctx is canceled. Each update is handled
// on its own goroutine; in-flight tasks run to completion rather than being
// canceled with the loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	var offset int64
	for {
		updates, err := d.source.GetUpdates(ctx, offset, defaultPollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.log.Error("getUpdates failed", "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			msg := update.Message
			if msg == nil || msg.From == nil || msg.From.IsBot {
				continue
			}
			go d.Dispatch(context.WithoutCancel(ctx), msg)
		}
	}
}

// Dispatch handles one inbound message end to end: guard chain, command
// routing, then the relay pipeline. It never returns an error; failures end
// in the relay's containment boundary.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *telegram.Message) {
	log := d.log.With("task", uuid.NewString(), "sender", msg.From.ID)

	user, ok, err := d.relay.EnsureUser(ctx, msg.From.ID)
	if err != nil {
		d.relay.ReportFailure(ctx, msg, err)
		return
	}
	if !ok {
		return
	}

	if command, args, isCommand := parseCommand(msg.Text); isCommand {
		handled, err := d.runCommand(ctx, user, msg, command, args)
		if err != nil {
			d.relay.ReportFailure(ctx, msg, err)
		}
		if handled {
			return
		}
		// Unknown commands fall through: inside a live session they are
		// just message content.
	}

	if msg.ForwardOrigin != nil && msg.ForwardOrigin.Chat != nil &&
		msg.ForwardOrigin.Chat.ID == d.relay.StorageChannelID() {
		if err := d.relay.RevealForwarded(ctx, msg); err != nil {
			d.relay.ReportFailure(ctx, msg, err)
		}
		return
	}

	log.Debug("routing message", "message", msg.MessageID)
	d.relay.HandleMessage(ctx, msg)
}

// runCommand maps a parsed command to its handler. Privileged commands are
// gated on the admin role and silently ignored for everyone else; unknown
// commands report handled=false so they can flow on as message content.
func (d *Dispatcher) runCommand(ctx context.Context, user *domain.User, msg *telegram.Message, command string, args []string) (bool, error) {
	switch command {
	case "start":
		arg := ""
		if len(args) != 0 {
			arg = args[0]
		}
		return true, d.relay.Start(ctx, msg, arg)
	case "link":
		return true, d.relay.Link(ctx, msg, strings.Join(args, ""))
	case "welcome":
		return true, d.relay.Welcome(ctx, msg, strings.Join(args, " "))
	case "delete":
		return true, d.relay.Delete(ctx, msg)
	case "reveal":
		if !usecase.IsAdmin(user) {
			return true, nil
		}
		return true, d.relay.Reveal(ctx, msg)
	case "ban":
		if !usecase.IsAdmin(user) {
			return true, nil
		}
		return true, d.relay.Ban(ctx, msg)
	default:
		return false, nil
	}
}

// parseCommand splits "/cmd@bot arg1 arg2" into its command and arguments.
func parseCommand(text string) (string, []string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 || fields[0] == "/" {
		return "", nil, false
	}
	command := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(command, '@'); at != -1 {
		command = command[:at]
	}
	return strings.ToLower(command), fields[1:], true
}
