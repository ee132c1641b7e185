package discord

// Command is a registered slash command.
type Command struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Slash command names.
const (
	CommandReflections = "reflections"
	CommandPing        = "ping"
)

// Commands is the registry of slash commands the bot answers.
var Commands = []Command{
	{Name: CommandReflections, Description: "Get today's AA daily reflection"},
	{Name: CommandPing, Description: "Replies with pong!"},
}

// IsRegistered reports whether name is in Commands.
func IsRegistered(name string) bool {
	for _, c := range Commands {
		if c.Name == name {
			return true
		}
	}
	return false
}
