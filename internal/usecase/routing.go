package usecase

import (
	"context"
	"errors"

	"anonword-relay/internal/domain"
	"anonword-relay/internal/integrations/backend"
	"anonword-relay/internal/integrations/telegram"
)

// RoutePath is the delivery path chosen for an inbound message.
type RoutePath int

const (
	// PathNone means the message carries no routing intent and is ignored.
	PathNone RoutePath = iota
	// PathSession delivers through the sender's live pending-link session.
	PathSession
	// PathReply continues a reply chain back to the original author.
	PathReply
)

// RoutingOutcome is the resolver's decision for one inbound message.
type RoutingOutcome struct {
	Path          RoutePath
	Recipient     *domain.User
	RecipientGone bool
}

// resolveRoute decides the delivery path in strict precedence order: a live
// session wins over a reply chain, and a message matching neither is ignored.
// A live session is consumed here regardless of whether the link still
// resolves, so a stale link can never redeliver.
func (s *Service) resolveRoute(ctx context.Context, msg *telegram.Message) (RoutingOutcome, error) {
	senderID := msg.From.ID

	link, live, err := s.sessions.ConsumePendingLink(ctx, senderID)
	if err != nil {
		return RoutingOutcome{}, newNotifyError(ErrorInternal, "session_consume_failed", err)
	}

	if live {
		recipient, err := s.directory.GetUserByLink(ctx, link)
		if errors.Is(err, backend.ErrNotFound) {
			// The link owner changed or removed the link after the session
			// was created.
			return RoutingOutcome{RecipientGone: true}, nil
		}
		if err != nil {
			return RoutingOutcome{}, newNotifyError(ErrorUpstream, "link_owner_lookup_failed", err)
		}
		return RoutingOutcome{Path: PathSession, Recipient: recipient}, nil
	}

	if msg.ReplyToMessage != nil {
		recipient, err := s.directory.GetAuthor(ctx, msg.ReplyToMessage.MessageID)
		if err != nil {
			return RoutingOutcome{}, newNotifyError(ErrorUpstream, "reply_author_lookup_failed", err)
		}
		return RoutingOutcome{Path: PathReply, Recipient: recipient}, nil
	}

	return RoutingOutcome{Path: PathNone}, nil
}
