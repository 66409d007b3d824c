package conversation

import "strings"

// Turn is one inbound chat message.
type Turn struct {
	UserID int64
	ChatID int64
	// Command is the lowercased command name without the slash, or empty for
	// free text.
	Command string
	// Args is the command arguments, or the whole trimmed text for free text.
	Args string
}

// ParseTurn splits a chat message into command and arguments. Commands
// addressed to a bot in a group ("/add@somebot") are accepted.
func ParseTurn(userID, chatID int64, text string) Turn {
	text = strings.TrimSpace(text)
	turn := Turn{UserID: userID, ChatID: chatID}
	if !strings.HasPrefix(text, "/") {
		turn.Args = text
		return turn
	}

	head, rest, _ := strings.Cut(text, " ")
	head, _, _ = strings.Cut(strings.TrimPrefix(head, "/"), "@")
	turn.Command = strings.ToLower(head)
	turn.Args = strings.TrimSpace(rest)
	return turn
}
