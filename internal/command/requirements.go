package command

// Requirement is a single named precondition a command may demand.
type Requirement uint8

const (
	BotCreator Requirement = 1 << iota
	BotAdmin
	Chat
	ChatAdmin
	BotChatAdmin
	Reply
	SameUser
)

// Requirements is an immutable predicate set gating command execution.
// Built once per command via Require; queried through the accessors.
type Requirements uint8

func Require(reqs ...Requirement) Requirements {
	var r Requirements
	for _, req := range reqs {
		r |= Requirements(req)
	}
	return r
}

func (r Requirements) has(req Requirement) bool { return r&Requirements(req) != 0 }

func (r Requirements) RequiresBotCreator() bool   { return r.has(BotCreator) }
func (r Requirements) RequiresBotAdmin() bool     { return r.has(BotAdmin) }
func (r Requirements) RequiresChat() bool         { return r.has(Chat) }
func (r Requirements) RequiresChatAdmin() bool    { return r.has(ChatAdmin) }
func (r Requirements) RequiresBotChatAdmin() bool { return r.has(BotChatAdmin) }
func (r Requirements) RequiresReply() bool        { return r.has(Reply) }
func (r Requirements) RequiresSameUser() bool     { return r.has(SameUser) }

// IsPublic reports whether the command is usable by anyone but the creator.
func (r Requirements) IsPublic() bool { return !r.RequiresBotCreator() }
