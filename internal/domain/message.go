package domain

// StoredMessage is the persisted shape of a chat message, used by the
// reply-chain collector to rebuild conversational context.
type StoredMessage struct {
	ChatID           int64
	MessageID        int
	ReplyToMessageID int
	FromID           int64
	Text             string
	Date             int64
	PhotoPath        string // cached attachment path, empty if none
}

// StoredUser is the persisted shape of a Telegram user.
type StoredUser struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// MessagePart is one element of a collected reply chain, newest first.
type MessagePart struct {
	Bot     bool   // authored by the bot itself
	Name    string // author first name
	Content string
	Images  []string // base64-encoded cached attachments
}

// FullName joins first and last name the way Telegram displays them.
func (u StoredUser) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
