package domain

// MessageRecord is the persisted cross-reference for one relayed message. It
// is what makes anonymous threaded replies resolvable later: given the
// recipient's copy of a message, the record yields the original author and
// the author-side message id to thread a counter-reply onto.
type MessageRecord struct {
	AuthorChatMessageID    int64  `json:"authorChatMessageId"`
	RecipientChatMessageID int64  `json:"recipientChatMessageId"`
	StorageMessageID       int64  `json:"storageMessageId"`
	AuthorID               int64  `json:"authorId"`
	RecipientID            int64  `json:"recipientId"`
	Body                   string `json:"body"`
}
