package usecase

import (
	"context"
	"errors"
	"fmt"

	"anonword-relay/internal/domain"
	"anonword-relay/internal/integrations/telegram"
)

// HandleMessage runs the full relay pipeline for one inbound message. It is
// the containment boundary: any fault is reported to the operator channel
// and swallowed, so one failing message never affects another task or
// crashes the process.
func (s *Service) HandleMessage(ctx context.Context, msg *telegram.Message) {
	if err := s.relay(ctx, msg); err != nil {
		s.containFailure(ctx, msg, err)
	}
}

// relay sequences mirror → audit reveal → optional session notice → content
// delivery → optional elevated-role reveal → record persistence.
func (s *Service) relay(ctx context.Context, msg *telegram.Message) error {
	outcome, err := s.resolveRoute(ctx, msg)
	if err != nil {
		return err
	}

	switch {
	case outcome.RecipientGone:
		if err := s.sendText(ctx, msg.Chat.ID, s.templates.RecipientGone); err != nil {
			return newError(ErrorTransport, "recipient_gone_notice_failed", err)
		}
		return nil
	case outcome.Path == PathNone:
		return nil
	}
	recipient := outcome.Recipient

	// Confirm to the sender first: success always yields at least one reply,
	// which is what distinguishes it from a contained failure.
	if err := s.sendText(ctx, msg.Chat.ID, s.templates.Event.AnonymousMessageSent); err != nil {
		return newError(ErrorTransport, "sent_confirmation_failed", err)
	}

	// Mirror into the storage channel. The storage message id has to exist
	// before the audit reveal so its text can reference it.
	storageMessageID, err := s.transport.CopyMessage(ctx, telegram.CopyMessageParams{
		ChatID:     s.cfg.StorageChannelID,
		FromChatID: msg.Chat.ID,
		MessageID:  msg.MessageID,
	})
	if err != nil {
		return newError(ErrorTransport, "mirror_failed", err)
	}

	if err := s.reveal(ctx, revealContext{
		recipientID:      recipient.TelegramID,
		authorID:         msg.From.ID,
		toStorage:        true,
		storageMessageID: storageMessageID,
	}); err != nil {
		return err
	}

	if outcome.Path == PathSession {
		if err := s.sendMarkdown(ctx, recipient.TelegramID, s.templates.Event.AnonymousMessageReceived); err != nil {
			return newError(ErrorTransport, "received_notice_failed", err)
		}
	}

	recipientChatMessageID, deliveredTo, err := s.deliver(ctx, msg, outcome)
	if err != nil {
		return err
	}

	// Special-role recipients always see the sender's identity, on top of
	// the mandatory audit reveal above.
	if recipient.Roles.Has(domain.RoleSpecial) {
		if err := s.reveal(ctx, revealContext{
			recipientID: recipient.TelegramID,
			authorID:    msg.From.ID,
		}); err != nil {
			return err
		}
	}

	record := domain.MessageRecord{
		AuthorChatMessageID:    msg.MessageID,
		RecipientChatMessageID: recipientChatMessageID,
		StorageMessageID:       storageMessageID,
		AuthorID:               msg.From.ID,
		RecipientID:            deliveredTo,
		Body:                   msg.Text,
	}
	if err := s.directory.CreateMessage(ctx, record); err != nil {
		return newError(ErrorUpstream, "record_persist_failed", err)
	}
	return nil
}

// deliver copies the message content to the resolved recipient and returns
// the recipient-side message id together with the chat it landed in.
func (s *Service) deliver(ctx context.Context, msg *telegram.Message, outcome RoutingOutcome) (int64, int64, error) {
	if outcome.Path == PathSession {
		id, err := s.transport.CopyMessage(ctx, telegram.CopyMessageParams{
			ChatID:     outcome.Recipient.TelegramID,
			FromChatID: msg.Chat.ID,
			MessageID:  msg.MessageID,
		})
		if err != nil {
			return 0, 0, newError(ErrorTransport, "session_delivery_failed", err)
		}
		return id, outcome.Recipient.TelegramID, nil
	}

	// Reply chain: look up the original record to thread the counter-reply
	// onto the author's own copy of the message.
	original, err := s.directory.GetMessage(ctx, msg.From.ID, msg.ReplyToMessage.MessageID)
	if err != nil {
		return 0, 0, newError(ErrorUpstream, "reply_record_lookup_failed", err)
	}

	id, err := s.transport.CopyMessage(ctx, telegram.CopyMessageParams{
		ChatID:           original.AuthorID,
		FromChatID:       msg.Chat.ID,
		MessageID:        msg.MessageID,
		ReplyToMessageID: original.AuthorChatMessageID,
	})
	if telegram.IsReplyTargetGone(err) {
		// The author deleted their original message; tell them so and
		// deliver plain instead of threaded.
		if err := s.sendMarkdown(ctx, original.AuthorID, s.templates.ReplyToDeleted); err != nil {
			return 0, 0, newError(ErrorTransport, "deleted_target_notice_failed", err)
		}
		id, err = s.transport.CopyMessage(ctx, telegram.CopyMessageParams{
			ChatID:     original.AuthorID,
			FromChatID: msg.Chat.ID,
			MessageID:  msg.MessageID,
		})
		if err != nil {
			return 0, 0, newError(ErrorTransport, "reply_fallback_delivery_failed", err)
		}
		return id, original.AuthorID, nil
	}
	if err != nil {
		return 0, 0, newError(ErrorTransport, "reply_delivery_failed", err)
	}
	return id, original.AuthorID, nil
}

// containFailure is the absorbing failure state: forward the triggering
// message and its identifying metadata to the operator channel, best-effort,
// and stop. Nothing is re-raised and nothing is retried.
func (s *Service) containFailure(ctx context.Context, msg *telegram.Message, err error) {
	s.log.Error("relay pipeline failed",
		"sender", msg.From.ID,
		"message", msg.MessageID,
		"err", err,
	)

	if _, copyErr := s.transport.CopyMessage(ctx, telegram.CopyMessageParams{
		ChatID:     s.cfg.ErrorChannelID,
		FromChatID: msg.Chat.ID,
		MessageID:  msg.MessageID,
	}); copyErr != nil {
		s.log.Error("failed to forward message to error channel", "err", copyErr)
	}

	report := fmt.Sprintf("Something strange happen.\n\nUID: `%d`\nMID: `%d`", msg.From.ID, msg.MessageID)
	if sendErr := s.sendMarkdown(ctx, s.cfg.ErrorChannelID, report); sendErr != nil {
		s.log.Error("failed to report to error channel", "err", sendErr)
	}

	var uerr *Error
	if errors.As(err, &uerr) && uerr.NotifySender {
		if sendErr := s.sendText(ctx, msg.Chat.ID, s.templates.Error); sendErr != nil {
			s.log.Error("failed to send error reply", "sender", msg.From.ID, "err", sendErr)
		}
	}
}
