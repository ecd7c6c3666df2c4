package commands

import (
	"context"
	"fmt"
	"strings"

	"talkbot/internal/command"
	"talkbot/internal/config"
	"talkbot/internal/domain"
	"talkbot/internal/stream"
)

func modelsCmd(svc *ChatService) *command.Definition {
	return &command.Definition{
		Names:   []string{"models"},
		Args:    command.ArgsNone,
		Require: command.Require(command.BotAdmin),
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			backend, _, err := svc.backend(env)
			if err != nil {
				_, rerr := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "No backend configured.")
				if rerr != nil {
					return rerr
				}
				return err
			}
			mb, ok := backend.(domain.ModelBackend)
			if !ok {
				_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "This backend does not list models.")
				return err
			}
			names, err := mb.Models(ctx)
			if err != nil {
				_, rerr := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Could not list models.")
				if rerr != nil {
					return rerr
				}
				return err
			}
			if len(names) == 0 {
				_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "No models installed.")
				return err
			}
			_, err = env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Available models:\n"+strings.Join(names, "\n"))
			return err
		},
	}
}

func getModelCmd() *command.Definition {
	return &command.Definition{
		Names:   []string{"getmodel"},
		Args:    command.ArgsNone,
		Require: command.Require(command.BotAdmin),
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			name := env.Cfg.Chat.DefaultBackend
			bcfg, ok := env.Cfg.Backends[name]
			if !ok {
				_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "No backend configured.")
				return err
			}
			text := fmt.Sprintf("Backend: %s\nModel: %s", name, bcfg.Model)
			if bcfg.ThinkModel != "" {
				text += "\nThinking model: " + bcfg.ThinkModel
			}
			if bcfg.VisionModel != "" {
				text += "\nVision model: " + bcfg.VisionModel
			}
			_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, text)
			return err
		},
	}
}

func setModelCmd() *command.Definition {
	return &command.Definition{
		Names:   []string{"setmodel"},
		Args:    command.ArgsRequired,
		Require: command.Require(command.BotCreator),
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			name := env.Cfg.Chat.DefaultBackend
			bcfg, ok := env.Cfg.Backends[name]
			if !ok {
				_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "No backend configured.")
				return err
			}
			bcfg.Model = req.Args()
			env.Cfg.Backends[name] = bcfg
			if err := config.Save(env.CfgPath, env.Cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Model set to "+bcfg.Model+".")
			return err
		},
	}
}

// promptCmd is a one-shot completion: no reply chain, no system prompt, no
// streaming edits.
func promptCmd(svc *ChatService) *command.Definition {
	return &command.Definition{
		Names:       []string{"prompt"},
		Args:        command.ArgsRequired,
		Title:       "/prompt question",
		Description: "one-shot answer without conversation history",
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			backend, name, err := svc.backend(env)
			if err != nil {
				_, rerr := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "No AI backend is available right now.")
				if rerr != nil {
					return rerr
				}
				return err
			}
			bcfg := env.Cfg.Backends[name]

			answer, err := backend.Complete(ctx, domain.ChatRequest{
				Model:    bcfg.Model,
				Messages: []domain.ChatMessage{{Role: "user", Content: req.Args()}},
			})
			if err != nil {
				_, rerr := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "❌ Something went wrong, try again later.")
				if rerr != nil {
					return rerr
				}
				return err
			}
			if answer == "" {
				answer = "(empty response)"
			}
			_, err = env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, stream.Truncate(answer))
			return err
		},
	}
}

func systemPromptCmd() *command.Definition {
	return &command.Definition{
		Names:   []string{"systemprompt"},
		Args:    command.ArgsOptional,
		Require: command.Require(command.BotAdmin),
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			if args := req.Args(); args != "" {
				if !env.IsCreator(req.Msg.From.ID) {
					_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Only the bot owner can change the prompt.")
					return err
				}
				env.Cfg.Chat.SystemPrompt = args
				if err := config.Save(env.CfgPath, env.Cfg); err != nil {
					return fmt.Errorf("save config: %w", err)
				}
				_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "System prompt updated.")
				return err
			}

			prompt := env.Cfg.Chat.SystemPrompt
			if prompt == "" {
				prompt = "(no system prompt set)"
			}
			_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, prompt)
			return err
		},
	}
}
