// Package usecase implements the relay core: routing, reveal, and the
// per-message orchestration pipeline with its containment boundary.
package usecase

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"anonword-relay/internal/domain"
	"anonword-relay/internal/integrations/backend"
	"anonword-relay/internal/integrations/telegram"
	"anonword-relay/internal/replies"
)

// sessionTTL bounds how long a pending-link session survives unconsumed.
const sessionTTL = 1800 * time.Second

var (
	linkPattern    = regexp.MustCompile(`^[a-zA-Z0-9_]{6,32}$`)
	welcomePattern = regexp.MustCompile(`^.{6,256}$`)
)

// SessionStore is the ephemeral per-sender routing intent.
type SessionStore interface {
	SetPendingLink(ctx context.Context, senderID int64, link string, ttl time.Duration) error
	ConsumePendingLink(ctx context.Context, senderID int64) (string, bool, error)
}

// Directory is the user-record and message-record service. The relay treats
// it as externally consistent and never caches responses across messages.
type Directory interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
	GetUserByLink(ctx context.Context, link string) (*domain.User, error)
	CreateUser(ctx context.Context, telegramID int64) (*domain.User, error)
	PatchUser(ctx context.Context, telegramID int64, patch backend.UserPatch) (*domain.User, error)
	GetAuthor(ctx context.Context, recipientChatMessageID int64) (*domain.User, error)
	GetAuthorFromStorage(ctx context.Context, storageMessageID int64) (*domain.User, error)
	GetMessage(ctx context.Context, recipientID, recipientChatMessageID int64) (*domain.MessageRecord, error)
	CreateMessage(ctx context.Context, record domain.MessageRecord) error
}

// Transport is the chat API surface the relay consumes.
type Transport interface {
	SendMessage(ctx context.Context, p telegram.SendMessageParams) (*telegram.Message, error)
	CopyMessage(ctx context.Context, p telegram.CopyMessageParams) (int64, error)
	GetChat(ctx context.Context, chatID int64) (*telegram.Chat, error)
	GetFile(ctx context.Context, fileID string) (*telegram.File, error)
	DownloadFile(ctx context.Context, filePath string) ([]byte, error)
	SendMediaGroup(ctx context.Context, chatID int64, caption, parseMode string, photos []telegram.InputPhoto) error
	RestrictChatMember(ctx context.Context, chatID, userID int64) error
}

// Config carries the process-scoped relay settings.
type Config struct {
	BotUsername      string
	StorageChannelID int64
	ErrorChannelID   int64
}

// Service is the relay core, constructed once at startup and shared by all
// concurrent per-update tasks. It holds no mutable state of its own; the
// session store is the only shared mutable state, keyed per sender.
type Service struct {
	sessions  SessionStore
	directory Directory
	transport Transport
	templates replies.Templates
	cfg       Config
	log       *slog.Logger
}

// NewService validates dependencies and builds the relay core.
func NewService(sessions SessionStore, directory Directory, transport Transport, templates replies.Templates, cfg Config, log *slog.Logger) (*Service, error) {
	if sessions == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if directory == nil {
		return nil, errors.New("usecase: directory must not be nil")
	}
	if transport == nil {
		return nil, errors.New("usecase: transport must not be nil")
	}
	if cfg.StorageChannelID == 0 {
		return nil, errors.New("usecase: storage channel id must not be zero")
	}
	if cfg.ErrorChannelID == 0 {
		return nil, errors.New("usecase: error channel id must not be zero")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		sessions:  sessions,
		directory: directory,
		transport: transport,
		templates: templates,
		cfg:       cfg,
		log:       log,
	}, nil
}

// StorageChannelID exposes the audit channel id for the dispatcher's
// forwarded-from-storage check.
func (s *Service) StorageChannelID() int64 {
	return s.cfg.StorageChannelID
}

func (s *Service) sendText(ctx context.Context, chatID int64, text string) error {
	_, err := s.transport.SendMessage(ctx, telegram.SendMessageParams{ChatID: chatID, Text: text})
	return err
}

func (s *Service) sendMarkdown(ctx context.Context, chatID int64, text string) error {
	_, err := s.transport.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: telegram.ParseModeMarkdown,
	})
	return err
}

func (s *Service) linkReply(template string, link string) string {
	return replies.Fill(template, map[string]string{
		"bot_username": telegram.EscapeMarkdown(s.cfg.BotUsername),
		"link":         telegram.EscapeMarkdown(link),
	})
}
