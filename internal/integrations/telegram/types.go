package telegram

// Update is one inbound event from getUpdates or a webhook push. Only the
// message variant is consumed; other update kinds are ignored upstream.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// User is the sender shape embedded in messages and returned by getMe.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// Chat is the chat shape returned by getChat. For private chats the profile
// fields mirror the user's; Photo is present only when an avatar is set and
// visible to the bot.
type Chat struct {
	ID        int64      `json:"id"`
	Type      string     `json:"type"`
	Username  string     `json:"username"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Photo     *ChatPhoto `json:"photo"`
}

// ChatPhoto carries the downloadable file ids for a chat avatar.
type ChatPhoto struct {
	SmallFileID string `json:"small_file_id"`
	BigFileID   string `json:"big_file_id"`
}

// ForwardOrigin describes where a forwarded message originally came from.
// Only channel origins are inspected (for storage-channel forwards).
type ForwardOrigin struct {
	Type      string `json:"type"`
	Chat      *Chat  `json:"chat"`
	MessageID int64  `json:"message_id"`
}

// Message is the inbound/outbound message shape. Fields are limited to what
// the relay reads; everything else rides along untouched through copyMessage.
type Message struct {
	MessageID      int64          `json:"message_id"`
	From           *User          `json:"from"`
	Chat           Chat           `json:"chat"`
	Text           string         `json:"text"`
	ReplyToMessage *Message       `json:"reply_to_message"`
	ForwardOrigin  *ForwardOrigin `json:"forward_origin"`
}

// MessageID is the reduced result shape of copyMessage.
type MessageID struct {
	MessageID int64 `json:"message_id"`
}

// File is the result shape of getFile; FilePath keys the download endpoint.
type File struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
}

// InputPhoto is one already-downloaded photo to attach to a media group.
type InputPhoto struct {
	Name string
	Data []byte
}
