package commands

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"talkbot/internal/command"
)

// All builds the command list in match priority order and compiles every
// pattern. The help command closes over the final list so it always reflects
// what is actually registered.
func All(svc *ChatService) (command.List, error) {
	var list command.List
	defs := []*command.Definition{
		startCmd(),
		helpCmd(func() command.List { return list }),
		testCmd(),
		pingCmd(),
		idCmd(),
		uptimeCmd(),

		chatCmd(svc),
		chatThinkCmd(svc),
		promptCmd(svc),
		systemPromptCmd(),
		modelsCmd(svc),
		getModelCmd(),
		setModelCmd(),

		diceCmd(),
		coinCmd(),
		choiceCmd(),
		randomIntCmd(),
		randomStringCmd(),
		whenCmd(),
		whatBetterCmd(),

		qrCmd(),
		distortCmd(),
		quoteCmd(),

		titleCmd(),
		banCmd(),
		unbanCmd(),
		muteCmd(),
		unmuteCmd(),
		adminsAddCmd(),
		adminsRemoveCmd(),
		leaveCmd(),
		shutdownCmd(),
	}

	resolved, err := command.Resolve(defs)
	if err != nil {
		return nil, err
	}
	list = resolved
	return list, nil
}

// Callbacks lists the inline button handlers.
func Callbacks() []*command.Callback {
	return []*command.Callback{
		cancelCallback(),
	}
}

// BotCommands converts titled definitions into the platform command menu.
func BotCommands(list command.List) []tgbotapi.BotCommand {
	var cmds []tgbotapi.BotCommand
	for _, d := range list {
		if d.Title == "" || d.Description == "" || len(d.Names) == 0 {
			continue
		}
		if !d.Require.IsPublic() {
			continue
		}
		cmds = append(cmds, tgbotapi.BotCommand{Command: d.Names[0], Description: d.Description})
	}
	return cmds
}
