package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"anonword-relay/internal/integrations/telegram"
)

func TestRenderRevealAuditVariant(t *testing.T) {
	subject := &telegram.Chat{ID: 42, Username: "mr_x", FirstName: "Max", LastName: "Power"}
	recipient := &telegram.Chat{ID: 99, FirstName: "Anna"}

	text := renderReveal(subject, recipient, true, 555)

	require.Contains(t, text, "*Author:*")
	require.Contains(t, text, `username: @mr\_x`)
	require.Contains(t, text, "first name: `Max`")
	require.Contains(t, text, "last name: `Power`")
	require.Contains(t, text, `[Chat (web)](https://web.telegram.org/k/#@mr\_x)`)
	require.Contains(t, text, "ID: `42`")

	require.Contains(t, text, "*Recipient:*")
	require.Contains(t, text, "username: -")
	require.Contains(t, text, "first name: `Anna`")
	require.Contains(t, text, "last name: -")
	require.Contains(t, text, "[Chat (web)](https://web.telegram.org/k/#99)")
	require.Contains(t, text, "ID: `99`")
	require.Contains(t, text, "Message ID: `555`")

	// No contact invitation in the audit variant.
	require.NotContains(t, text, "blocked messages")
}

func TestRenderRevealDirectVariant(t *testing.T) {
	subject := &telegram.Chat{ID: 42, FirstName: "Max"}
	recipient := &telegram.Chat{ID: 99, FirstName: "Anna"}

	text := renderReveal(subject, recipient, false, 0)

	require.Contains(t, text, "If *Max* has not blocked messages")
	require.Contains(t, text, "[Chat (web)](https://web.telegram.org/k/#42)")
	require.NotContains(t, text, "*Author:*")
	require.NotContains(t, text, "*Recipient:*")
	require.NotContains(t, text, "Message ID")
}

func TestRevealSendsMediaGroupWithAvatars(t *testing.T) {
	transport := &mockTransport{
		chats: map[int64]*telegram.Chat{
			42: {ID: 42, FirstName: "Max", Photo: &telegram.ChatPhoto{SmallFileID: "small42"}},
			99: {ID: 99, FirstName: "Anna", Photo: &telegram.ChatPhoto{SmallFileID: "small99"}},
		},
		avatars: map[string][]byte{
			"photos/small42.jpg": []byte("max-avatar"),
			"photos/small99.jpg": []byte("anna-avatar"),
		},
	}
	svc := newTestService(t, &mockSessions{}, &mockDirectory{}, transport)

	err := svc.reveal(context.Background(), revealContext{
		recipientID:      99,
		authorID:         42,
		toStorage:        true,
		storageMessageID: 555,
	})
	require.NoError(t, err)

	require.Len(t, transport.mediaGroups, 1)
	group := transport.mediaGroups[0]
	require.Equal(t, testStorageChannel, group.chatID)
	require.Len(t, group.photos, 2)
	require.Equal(t, []byte("max-avatar"), group.photos[0].Data)
	require.Equal(t, []byte("anna-avatar"), group.photos[1].Data)
	require.Contains(t, group.caption, "Message ID: `555`")
	require.NotContains(t, group.caption, "avatar is hidden")
	require.Empty(t, transport.sent)
}

func TestRevealDirectVariantFetchesOnlySubjectAvatar(t *testing.T) {
	transport := &mockTransport{
		chats: map[int64]*telegram.Chat{
			42: {ID: 42, FirstName: "Max", Photo: &telegram.ChatPhoto{SmallFileID: "small42"}},
			99: {ID: 99, FirstName: "Anna", Photo: &telegram.ChatPhoto{SmallFileID: "small99"}},
		},
	}
	svc := newTestService(t, &mockSessions{}, &mockDirectory{}, transport)

	err := svc.reveal(context.Background(), revealContext{recipientID: 99, authorID: 42})
	require.NoError(t, err)

	require.Len(t, transport.mediaGroups, 1)
	group := transport.mediaGroups[0]
	require.Equal(t, int64(99), group.chatID)
	require.Len(t, group.photos, 1)
}

func TestRevealDegradesToTextWhenAvatarFetchFails(t *testing.T) {
	transport := &mockTransport{
		chats: map[int64]*telegram.Chat{
			42: {ID: 42, FirstName: "Max", Photo: &telegram.ChatPhoto{SmallFileID: "small42"}},
		},
		fileErr: errors.New("file expired"),
	}
	svc := newTestService(t, &mockSessions{}, &mockDirectory{}, transport)

	err := svc.reveal(context.Background(), revealContext{
		recipientID:      99,
		authorID:         42,
		toStorage:        true,
		storageMessageID: 555,
	})
	require.NoError(t, err)

	require.Empty(t, transport.mediaGroups)
	texts := sentTo(t, transport, testStorageChannel)
	require.Len(t, texts, 1)
	require.Contains(t, texts[0], "avatar is hidden")
}

func TestRevealIdentityLookupFailureIsFatal(t *testing.T) {
	transport := &mockTransport{chatErr: errors.New("chat not found")}
	svc := newTestService(t, &mockSessions{}, &mockDirectory{}, transport)

	err := svc.reveal(context.Background(), revealContext{recipientID: 99, authorID: 42})
	require.Error(t, err)

	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, ErrorTransport, uerr.Code)
	require.Empty(t, transport.sent)
	require.Empty(t, transport.mediaGroups)
}
