package domain

// LinkDeletedSentinel is the patch value the directory treats as "remove the
// link" rather than a literal link string.
const LinkDeletedSentinel = "del"

// User is a directory record. The relay never mutates it directly; changes go
// through the directory's patch endpoint.
type User struct {
	ID             int64   `json:"id"`
	TelegramID     int64   `json:"telegramId"`
	Link           *string `json:"link"`
	WelcomeMessage *string `json:"welcomeMessage"`
	Roles          RoleSet `json:"roles"`
	RegisteredAt   int64   `json:"registeredAt"`
}

// HasLink reports whether the user currently owns a shareable link.
func (u User) HasLink() bool {
	return u.Link != nil && *u.Link != ""
}
