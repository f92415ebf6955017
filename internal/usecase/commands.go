package usecase

import (
	"context"
	"errors"

	"anonword-relay/internal/domain"
	"anonword-relay/internal/integrations/backend"
	"anonword-relay/internal/integrations/telegram"
)

// Start handles /start. Without an argument it shows the sender their own
// link; with a link argument it opens an anonymous-message session targeting
// the link's owner.
func (s *Service) Start(ctx context.Context, msg *telegram.Message, arg string) error {
	author, err := s.directory.GetUserByTelegramID(ctx, msg.From.ID)
	if err != nil {
		return newNotifyError(ErrorUpstream, "start_author_lookup_failed", err)
	}

	if arg == "" {
		if !author.HasLink() {
			return s.sendMarkdown(ctx, msg.Chat.ID, s.templates.Start.NoLink)
		}
		return s.sendMarkdown(ctx, msg.Chat.ID, s.linkReply(s.templates.Start.Default, *author.Link))
	}

	receiver, err := s.directory.GetUserByLink(ctx, arg)
	if errors.Is(err, backend.ErrNotFound) {
		return s.sendText(ctx, msg.Chat.ID, s.templates.RecipientGone)
	}
	if err != nil {
		return newNotifyError(ErrorUpstream, "start_receiver_lookup_failed", err)
	}

	if err := s.sessions.SetPendingLink(ctx, msg.From.ID, arg, sessionTTL); err != nil {
		return newNotifyError(ErrorInternal, "session_set_failed", err)
	}

	if err := s.sendMarkdown(ctx, msg.Chat.ID, s.templates.Start.AnonymousMessage); err != nil {
		return err
	}
	if receiver.WelcomeMessage != nil && *receiver.WelcomeMessage != "" {
		return s.sendMarkdown(ctx, msg.Chat.ID, *receiver.WelcomeMessage)
	}
	return nil
}

// Link handles /link: shows the sender's current link, or claims a new one.
func (s *Service) Link(ctx context.Context, msg *telegram.Message, arg string) error {
	if arg == "" {
		user, err := s.directory.GetUserByTelegramID(ctx, msg.From.ID)
		if err != nil {
			return newNotifyError(ErrorUpstream, "link_lookup_failed", err)
		}
		if !user.HasLink() {
			return s.sendMarkdown(ctx, msg.Chat.ID, s.templates.Link.NoLink)
		}
		return s.sendMarkdown(ctx, msg.Chat.ID, s.linkReply(s.templates.Link.Default, *user.Link))
	}

	if !linkPattern.MatchString(arg) {
		return s.sendMarkdown(ctx, msg.Chat.ID, s.templates.Link.Denied)
	}

	user, err := s.directory.PatchUser(ctx, msg.From.ID, backend.UserPatch{Link: &arg})
	if errors.Is(err, backend.ErrConflict) {
		return s.sendMarkdown(ctx, msg.Chat.ID, s.templates.Link.AlreadyExist)
	}
	if err != nil {
		return newNotifyError(ErrorUpstream, "link_patch_failed", err)
	}
	return s.sendMarkdown(ctx, msg.Chat.ID, s.linkReply(s.templates.Link.Success, *user.Link))
}

// Welcome handles /welcome: shows usage, sets the greeting shown to senders
// opening the user's link, or clears it with the literal argument "clear".
func (s *Service) Welcome(ctx context.Context, msg *telegram.Message, arg string) error {
	if arg == "" {
		return s.sendMarkdown(ctx, msg.Chat.ID, s.templates.Welcome.Default)
	}

	if arg != "clear" && !welcomePattern.MatchString(arg) {
		return s.sendMarkdown(ctx, msg.Chat.ID, s.templates.Welcome.Denied)
	}

	user, err := s.directory.PatchUser(ctx, msg.From.ID, backend.UserPatch{WelcomeMessage: &arg})
	if errors.Is(err, backend.ErrConflict) || errors.Is(err, backend.ErrNotFound) {
		return s.sendMarkdown(ctx, msg.Chat.ID, s.templates.Welcome.Denied)
	}
	if err != nil {
		return newNotifyError(ErrorUpstream, "welcome_patch_failed", err)
	}

	if arg == "clear" {
		return s.sendMarkdown(ctx, msg.Chat.ID, s.templates.Welcome.Deleted)
	}
	if err := s.sendMarkdown(ctx, msg.Chat.ID, s.templates.Welcome.Success); err != nil {
		return err
	}
	if user.WelcomeMessage == nil {
		return nil
	}
	return s.sendMarkdown(ctx, msg.Chat.ID, *user.WelcomeMessage)
}

// Delete handles /delete: drops the sender's link so nobody can open new
// anonymous sessions against them.
func (s *Service) Delete(ctx context.Context, msg *telegram.Message) error {
	user, err := s.directory.GetUserByTelegramID(ctx, msg.From.ID)
	if err != nil {
		return newNotifyError(ErrorUpstream, "delete_lookup_failed", err)
	}
	if !user.HasLink() {
		return s.sendMarkdown(ctx, msg.Chat.ID, s.templates.Delete.AlreadyDeleted)
	}

	sentinel := domain.LinkDeletedSentinel
	if _, err := s.directory.PatchUser(ctx, msg.From.ID, backend.UserPatch{Link: &sentinel}); err != nil {
		return newNotifyError(ErrorUpstream, "delete_patch_failed", err)
	}
	return s.sendMarkdown(ctx, msg.Chat.ID, s.templates.Delete.Success)
}

// Reveal handles /reveal (admin only, enforced by the dispatcher): discloses
// the author of the relayed message the command replies to.
func (s *Service) Reveal(ctx context.Context, msg *telegram.Message) error {
	if msg.ReplyToMessage == nil {
		return s.sendText(ctx, msg.Chat.ID, s.templates.Reveal.NeedReply)
	}

	author, err := s.directory.GetAuthor(ctx, msg.ReplyToMessage.MessageID)
	if err != nil {
		return newNotifyError(ErrorUpstream, "reveal_author_lookup_failed", err)
	}
	return s.reveal(ctx, revealContext{
		recipientID: msg.From.ID,
		authorID:    author.TelegramID,
	})
}

// RevealForwarded discloses the author of a message forwarded out of the
// storage channel back to the forwarding user.
func (s *Service) RevealForwarded(ctx context.Context, msg *telegram.Message) error {
	author, err := s.directory.GetAuthorFromStorage(ctx, msg.ForwardOrigin.MessageID)
	if err != nil {
		return newNotifyError(ErrorUpstream, "storage_author_lookup_failed", err)
	}
	return s.reveal(ctx, revealContext{
		recipientID: msg.From.ID,
		authorID:    author.TelegramID,
	})
}

// Ban handles /ban (admin only, enforced by the dispatcher): flags the
// author of the replied-to relayed message as banned and revokes their send
// permission in the storage channel when possible.
func (s *Service) Ban(ctx context.Context, msg *telegram.Message) error {
	if msg.ReplyToMessage == nil {
		return s.sendText(ctx, msg.Chat.ID, s.templates.Ban.NeedReply)
	}

	author, err := s.directory.GetAuthor(ctx, msg.ReplyToMessage.MessageID)
	if err != nil {
		return newNotifyError(ErrorUpstream, "ban_author_lookup_failed", err)
	}

	bits := author.Roles.With(domain.RoleBanned).Bits()
	if _, err := s.directory.PatchUser(ctx, author.TelegramID, backend.UserPatch{Roles: &bits}); err != nil {
		return newNotifyError(ErrorUpstream, "ban_patch_failed", err)
	}

	// Restriction in the storage channel is best effort: the banned user is
	// typically not a member there.
	if err := s.transport.RestrictChatMember(ctx, s.cfg.StorageChannelID, author.TelegramID); err != nil {
		s.log.Warn("restrict in storage channel failed", "user", author.TelegramID, "err", err)
	}

	return s.sendMarkdown(ctx, msg.Chat.ID, s.templates.Ban.Success)
}
