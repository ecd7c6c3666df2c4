package commands

import (
	"context"
	"fmt"
	"strconv"

	"talkbot/internal/command"
	"talkbot/internal/store"
)

func titleCmd() *command.Definition {
	return &command.Definition{
		Names:       []string{"title"},
		Args:        command.ArgsRequired,
		Title:       "/title new title",
		Description: "rename the chat",
		Require:     command.Require(command.Chat, command.ChatAdmin, command.BotChatAdmin),
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			if err := env.Client.SetChatTitle(req.Msg.Chat.ID, req.Args()); err != nil {
				_, rerr := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Could not change the title.")
				if rerr != nil {
					return rerr
				}
				return err
			}
			return nil
		},
	}
}

func banCmd() *command.Definition {
	return &command.Definition{
		Names:   []string{"ban"},
		Args:    command.ArgsNone,
		Require: command.Require(command.Chat, command.Reply, command.ChatAdmin, command.BotChatAdmin),
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			target := req.Msg.ReplyToMessage.From
			if target == nil {
				return nil
			}

			switch {
			case env.IsCreator(target.ID):
				_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "I will not ban my creator.")
				return err
			case target.ID == env.Client.Self().ID:
				// banning the bot itself just means it leaves
				_, _ = env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, store.Pick(env.Answers.Kick))
				return env.Client.LeaveChat(req.Msg.Chat.ID)
			case env.IsBotAdmin(target.ID):
				_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "That user is a bot administrator, not banning them.")
				return err
			}

			if err := env.Client.BanMember(req.Msg.Chat.ID, target.ID); err != nil {
				_, rerr := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Could not ban that user.")
				if rerr != nil {
					return rerr
				}
				return err
			}
			_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, store.Pick(env.Answers.Kick))
			return err
		},
	}
}

func unbanCmd() *command.Definition {
	return &command.Definition{
		Names:   []string{"unban"},
		Args:    command.ArgsNone,
		Require: command.Require(command.Chat, command.Reply, command.ChatAdmin, command.BotChatAdmin),
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			target := req.Msg.ReplyToMessage.From
			if target == nil {
				return nil
			}
			if err := env.Client.UnbanMember(req.Msg.Chat.ID, target.ID); err != nil {
				_, rerr := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Could not unban that user.")
				if rerr != nil {
					return rerr
				}
				return err
			}
			_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Unbanned.")
			return err
		},
	}
}

// targetID resolves the user a moderation command applies to: a numeric
// argument wins, otherwise the author of the replied-to message.
func targetID(req *command.Request) (int64, bool) {
	if args := req.Args(); args != "" {
		id, err := strconv.ParseInt(args, 10, 64)
		if err == nil && id != 0 {
			return id, true
		}
		return 0, false
	}
	if r := req.Msg.ReplyToMessage; r != nil && r.From != nil {
		return r.From.ID, true
	}
	return 0, false
}

func muteCmd() *command.Definition {
	return &command.Definition{
		Names:   []string{"mute"},
		Args:    command.ArgsOptional,
		Require: command.Require(command.BotAdmin),
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			id, ok := targetID(req)
			if !ok {
				_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Reply to a user or pass their id.")
				return err
			}
			if env.IsCreator(id) || env.IsBotAdmin(id) {
				_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Not muting a bot administrator.")
				return err
			}
			changed, err := env.Mod.Mute(ctx, id)
			if err != nil {
				return fmt.Errorf("mute %d: %w", id, err)
			}
			text := "Already muted."
			if changed {
				text = "Muted. I will ignore that user now."
			}
			_, err = env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, text)
			return err
		},
	}
}

func unmuteCmd() *command.Definition {
	return &command.Definition{
		Names:   []string{"unmute"},
		Args:    command.ArgsOptional,
		Require: command.Require(command.BotAdmin),
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			id, ok := targetID(req)
			if !ok {
				_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Reply to a user or pass their id.")
				return err
			}
			changed, err := env.Mod.Unmute(ctx, id)
			if err != nil {
				return fmt.Errorf("unmute %d: %w", id, err)
			}
			text := "They were not muted."
			if changed {
				text = "Unmuted."
			}
			_, err = env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, text)
			return err
		},
	}
}

func adminsAddCmd() *command.Definition {
	return &command.Definition{
		Names:   []string{"adminsadd"},
		Args:    command.ArgsOptional,
		Require: command.Require(command.BotCreator),
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			id, ok := targetID(req)
			if !ok {
				_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Reply to a user or pass their id.")
				return err
			}
			changed, err := env.Mod.AddAdmin(ctx, id)
			if err != nil {
				return fmt.Errorf("add admin %d: %w", id, err)
			}
			text := "Already a bot administrator."
			if changed {
				text = fmt.Sprintf("Added `%d` as a bot administrator.", id)
			}
			_, err = env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, text)
			return err
		},
	}
}

func adminsRemoveCmd() *command.Definition {
	return &command.Definition{
		Names:   []string{"adminsremove"},
		Args:    command.ArgsOptional,
		Require: command.Require(command.BotCreator),
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			id, ok := targetID(req)
			if !ok {
				_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Reply to a user or pass their id.")
				return err
			}
			changed, err := env.Mod.RemoveAdmin(ctx, id)
			if err != nil {
				return fmt.Errorf("remove admin %d: %w", id, err)
			}
			text := "They were not a bot administrator."
			if changed {
				text = fmt.Sprintf("Removed `%d` from bot administrators.", id)
			}
			_, err = env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, text)
			return err
		},
	}
}

func leaveCmd() *command.Definition {
	return &command.Definition{
		Names:   []string{"leave"},
		Args:    command.ArgsNone,
		Require: command.Require(command.Chat, command.BotAdmin),
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			_, _ = env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, store.Pick(env.Answers.Kick))
			return env.Client.LeaveChat(req.Msg.Chat.ID)
		},
	}
}

func shutdownCmd() *command.Definition {
	return &command.Definition{
		Names:   []string{"shutdown"},
		Args:    command.ArgsNone,
		Require: command.Require(command.BotCreator),
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			_, _ = env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Shutting down. Bye!")
			if env.Shutdown != nil {
				env.Shutdown()
			}
			return nil
		},
	}
}
