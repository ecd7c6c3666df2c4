package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"talkbot/internal/command"
	"talkbot/internal/store"
	"talkbot/internal/telegram"
)

func startCmd() *command.Definition {
	return &command.Definition{
		Names: []string{"start"},
		Args:  command.ArgsNone,
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			text := fmt.Sprintf("Hi! I'm %s. Talk to me in private, reply to my messages, or start a message with %q in a group. /help lists what else I can do.",
				env.Client.Self().FirstName, env.Cfg.General.BotPrefix)
			_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, text)
			return err
		},
	}
}

func helpCmd(all func() command.List) *command.Definition {
	return &command.Definition{
		Names:       []string{"help"},
		Args:        command.ArgsNone,
		Title:       "/help",
		Description: "list available commands",
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			var b strings.Builder
			b.WriteString("Commands:\n")
			for _, d := range all() {
				line := d.HelpLine()
				if line == "" {
					continue
				}
				b.WriteString(line)
				b.WriteByte('\n')
			}

			// help goes to DM to avoid group noise; fall back to the chat
			// when the user never opened a private conversation
			_, err := env.Client.Send(req.Msg.From.ID, b.String())
			if telegram.IsForbidden(err) {
				_, err = env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, b.String())
				return err
			}
			if err == nil && req.Msg.Chat.ID != req.Msg.From.ID {
				_, err = env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Sent you the list in private.")
			}
			return err
		},
	}
}

func testCmd() *command.Definition {
	return &command.Definition{
		Names: []string{"test"},
		Args:  command.ArgsNone,
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, store.Pick(env.Answers.Test))
			return err
		},
	}
}

func pingCmd() *command.Definition {
	return &command.Definition{
		Names:       []string{"ping"},
		Args:        command.ArgsNone,
		Title:       "/ping",
		Description: "measure round-trip latency",
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			started := time.Now()
			if _, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Pong!"); err != nil {
				return err
			}
			latency := time.Since(started)
			_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, fmt.Sprintf("Ping: %dms", latency.Milliseconds()))
			return err
		},
	}
}

func idCmd() *command.Definition {
	return &command.Definition{
		Names:       []string{"id"},
		Args:        command.ArgsNone,
		Title:       "/id",
		Description: "show your id and this chat's id",
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			text := fmt.Sprintf("Your id: `%d`\nChat id: `%d`", req.Msg.From.ID, req.Msg.Chat.ID)
			if r := req.Msg.ReplyToMessage; r != nil && r.From != nil {
				text += fmt.Sprintf("\nReplied user id: `%d`", r.From.ID)
			}
			_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, text)
			return err
		},
	}
}

// hostUptime reads the system uptime where the OS exposes it.
func hostUptime() (time.Duration, bool) {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return 0, false
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, false
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

func uptimeCmd() *command.Definition {
	return &command.Definition{
		Names: []string{"uptime"},
		Args:  command.ArgsNone,
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			up := time.Since(env.StartedAt).Round(time.Second)
			text := fmt.Sprintf("Up for %s.", up)
			if host, ok := hostUptime(); ok {
				text += fmt.Sprintf(" Host up for %s.", host.Round(time.Second))
			}
			_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, text)
			return err
		},
	}
}
