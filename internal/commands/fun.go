package commands

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"talkbot/internal/command"
	"talkbot/internal/store"
)

func diceCmd() *command.Definition {
	return &command.Definition{
		Names:       []string{"dice"},
		Args:        command.ArgsNone,
		Title:       "/dice",
		Description: "roll a die",
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			_, err := env.Client.SendDice(req.Msg.Chat.ID)
			return err
		},
	}
}

func coinCmd() *command.Definition {
	return &command.Definition{
		Names:       []string{"coin", "flip"},
		Args:        command.ArgsNone,
		Title:       "/coin",
		Description: "flip a coin",
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			side := "Heads!"
			if rand.Intn(2) == 1 {
				side = "Tails!"
			}
			_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, side)
			return err
		},
	}
}

func choiceCmd() *command.Definition {
	return &command.Definition{
		Names:       []string{"choice", "choose"},
		Args:        command.ArgsRequired,
		Title:       "/choice a, b, c",
		Description: "pick one of the options",
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			var options []string
			for _, part := range strings.Split(req.Args(), ",") {
				if p := strings.TrimSpace(part); p != "" {
					options = append(options, p)
				}
			}
			if len(options) < 2 {
				_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Give me at least two options, separated by commas.")
				return err
			}
			_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "I choose: "+options[rand.Intn(len(options))])
			return err
		},
	}
}

func randomIntCmd() *command.Definition {
	return &command.Definition{
		Names:       []string{"randomint", "rand"},
		Args:        command.ArgsOptional,
		Title:       "/randomint [min max]",
		Description: "random number, defaults to 1..100",
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			lo, hi := int64(1), int64(100)
			if args := req.Args(); args != "" {
				fields := strings.Fields(args)
				var err error
				switch len(fields) {
				case 1:
					hi, err = strconv.ParseInt(fields[0], 10, 64)
				case 2:
					lo, err = strconv.ParseInt(fields[0], 10, 64)
					if err == nil {
						hi, err = strconv.ParseInt(fields[1], 10, 64)
					}
				default:
					err = fmt.Errorf("too many arguments")
				}
				if err != nil || lo > hi {
					_, rerr := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Usage: /randomint [min] max")
					return rerr
				}
			}
			n := lo + rand.Int63n(hi-lo+1)
			_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, strconv.FormatInt(n, 10))
			return err
		},
	}
}

const randomStringAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomStringCmd() *command.Definition {
	return &command.Definition{
		Names: []string{"randomstring"},
		Args:  command.ArgsOptional,
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			length := 16
			if args := req.Args(); args != "" {
				n, err := strconv.Atoi(args)
				if err != nil || n < 1 || n > 1024 {
					_, rerr := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Usage: /randomstring [length], up to 1024.")
					return rerr
				}
				length = n
			}
			out := make([]byte, length)
			for i := range out {
				out[i] = randomStringAlphabet[rand.Intn(len(randomStringAlphabet))]
			}
			_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "`"+string(out)+"`")
			return err
		},
	}
}

func whenCmd() *command.Definition {
	return &command.Definition{
		Names:       []string{"when"},
		Args:        command.ArgsRequired,
		Title:       "/when something happens",
		Description: "predict when it happens",
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			// deterministic per question so repeat asks get the same answer
			seed := int64(0)
			for _, r := range strings.ToLower(req.Args()) {
				seed = seed*31 + int64(r)
			}
			rng := rand.New(rand.NewSource(seed))
			days := rng.Intn(3650)
			var answer string
			switch {
			case days == 0:
				answer = "Today!"
			case days == 1:
				answer = "Tomorrow."
			case days < 30:
				answer = fmt.Sprintf("In %d days.", days)
			case days < 365:
				answer = fmt.Sprintf("In about %d months.", days/30)
			default:
				answer = fmt.Sprintf("In about %d years.", days/365)
			}
			_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, answer)
			return err
		},
	}
}

func whatBetterCmd() *command.Definition {
	return &command.Definition{
		Names:       []string{"whatbetter", "better"},
		Args:        command.ArgsRequired,
		Title:       "/whatbetter a or b",
		Description: "settle a dispute",
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "I'd say "+store.Pick(env.Answers.Better)+".")
			return err
		},
	}
}
