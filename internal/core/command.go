package core

import "context"

type CmdRouter interface {
	Execute(ctx context.Context, groupID, input string) (string, bool)
	ListCommands() []Command
}

// Command is a chat slash-command scoped to the group it was sent in.
type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, groupID string, args []string) (string, error)
}
