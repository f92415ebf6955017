package usecase

import (
	"context"
	"fmt"
	"strings"

	"anonword-relay/internal/integrations/telegram"
)

// revealContext describes one identity disclosure. toStorage selects the
// audit variant, which renders both parties and goes to the storage channel.
type revealContext struct {
	recipientID      int64
	authorID         int64
	toStorage        bool
	storageMessageID int64
}

// reveal resolves both chat identities and sends the disclosure message,
// attaching avatars when any are available. Identity resolution failures are
// hard failures: the identity cannot be partially revealed. Avatar fetch
// failures degrade to the text-only rendering.
func (s *Service) reveal(ctx context.Context, rc revealContext) error {
	recipient, err := s.transport.GetChat(ctx, rc.recipientID)
	if err != nil {
		return newError(ErrorTransport, "reveal_recipient_lookup_failed", err)
	}
	subject, err := s.transport.GetChat(ctx, rc.authorID)
	if err != nil {
		return newError(ErrorTransport, "reveal_subject_lookup_failed", err)
	}

	targetChatID := recipient.ID
	if rc.toStorage {
		targetChatID = s.cfg.StorageChannelID
	}

	text := renderReveal(subject, recipient, rc.toStorage, rc.storageMessageID)
	avatars := s.fetchAvatars(ctx, subject, recipient, rc.toStorage)

	if len(avatars) != 0 {
		if err := s.transport.SendMediaGroup(ctx, targetChatID, text, telegram.ParseModeMarkdown, avatars); err != nil {
			return newError(ErrorTransport, "reveal_send_failed", err)
		}
		return nil
	}

	if rc.toStorage {
		text += "\n\navatar is hidden"
	}
	if err := s.sendMarkdown(ctx, targetChatID, text); err != nil {
		return newError(ErrorTransport, "reveal_send_failed", err)
	}
	return nil
}

// renderReveal builds the disclosure text. Every profile field is escaped
// before interpolation; absent fields render as "-".
func renderReveal(subject, recipient *telegram.Chat, toStorage bool, storageMessageID int64) string {
	var b strings.Builder

	if toStorage {
		b.WriteString("*Author:*\n\n")
	}
	writeProfileBlock(&b, subject)

	if !toStorage {
		b.WriteString("\n")
		b.WriteString(contactSentence(subject))
	}
	b.WriteString("\n")
	b.WriteString(chatLink(subject))
	fmt.Fprintf(&b, "\n\nID: `%d`", subject.ID)

	if toStorage {
		b.WriteString("\n\n*Recipient:*\n\n")
		writeProfileBlock(&b, recipient)
		b.WriteString("\n")
		b.WriteString(chatLink(recipient))
		fmt.Fprintf(&b, "\n\nID: `%d`", recipient.ID)
		fmt.Fprintf(&b, "\n\nMessage ID: `%d`", storageMessageID)
	}

	return b.String()
}

func writeProfileBlock(b *strings.Builder, chat *telegram.Chat) {
	fmt.Fprintf(b, "username: %s\n", profileField(chat.Username, "@"))
	fmt.Fprintf(b, "first name: %s\n", codeField(chat.FirstName))
	fmt.Fprintf(b, "last name: %s\n", codeField(chat.LastName))
}

func profileField(value, prefix string) string {
	if value == "" {
		return "-"
	}
	return prefix + telegram.EscapeMarkdown(value)
}

func codeField(value string) string {
	if value == "" {
		return "-"
	}
	return "`" + telegram.EscapeMarkdown(value) + "`"
}

// chatLink renders a deep link that opens a chat with the party in the web
// client, by username when present, else by numeric id.
func chatLink(chat *telegram.Chat) string {
	ref := fmt.Sprintf("%d", chat.ID)
	if chat.Username != "" {
		ref = "@" + telegram.EscapeMarkdown(chat.Username)
	}
	return fmt.Sprintf("[Chat (web)](https://web.telegram.org/k/#%s)", ref)
}

// contactSentence invites the recipient to contact the subject directly,
// naming them by username when present, else by first name.
func contactSentence(subject *telegram.Chat) string {
	name := "*" + telegram.EscapeMarkdown(subject.FirstName) + "*"
	if subject.Username != "" {
		name = "@" + telegram.EscapeMarkdown(subject.Username)
	}
	return fmt.Sprintf(
		"If %s has not blocked messages from unknown users, or you have their contact, you can open a chat with them in the browser:",
		name,
	)
}

// fetchAvatars downloads the smallest available profile photo for the
// subject and, on the audit variant, the recipient. Failures are logged and
// skipped: a missing avatar must never abort a reveal.
func (s *Service) fetchAvatars(ctx context.Context, subject, recipient *telegram.Chat, toStorage bool) []telegram.InputPhoto {
	var avatars []telegram.InputPhoto

	if photo := s.downloadChatPhoto(ctx, subject); photo != nil {
		avatars = append(avatars, telegram.InputPhoto{Name: "subject.png", Data: photo})
	}
	if toStorage {
		if photo := s.downloadChatPhoto(ctx, recipient); photo != nil {
			avatars = append(avatars, telegram.InputPhoto{Name: "recipient.png", Data: photo})
		}
	}
	return avatars
}

func (s *Service) downloadChatPhoto(ctx context.Context, chat *telegram.Chat) []byte {
	if chat.Photo == nil || chat.Photo.SmallFileID == "" {
		return nil
	}
	file, err := s.transport.GetFile(ctx, chat.Photo.SmallFileID)
	if err != nil {
		s.log.Warn("avatar file lookup failed", "chat", chat.ID, "err", err)
		return nil
	}
	data, err := s.transport.DownloadFile(ctx, file.FilePath)
	if err != nil {
		s.log.Warn("avatar download failed", "chat", chat.ID, "err", err)
		return nil
	}
	return data
}
