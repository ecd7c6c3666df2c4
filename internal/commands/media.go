package commands

import (
	"bytes"
	"context"
	"image"
	"os"

	"talkbot/internal/command"
	"talkbot/internal/render"
	"talkbot/internal/store"
)

func qrCmd() *command.Definition {
	return &command.Definition{
		Names:       []string{"qr"},
		Args:        command.ArgsRequired,
		Title:       "/qr text",
		Description: "render text as a QR code",
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			png, err := render.QR(req.Args())
			if err != nil {
				_, rerr := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Could not encode that as a QR code.")
				if rerr != nil {
					return rerr
				}
				return err
			}
			_, err = env.Client.SendPhoto(req.Msg.Chat.ID, req.Msg.MessageID, "qr.png", png, "")
			return err
		},
	}
}

func distortCmd() *command.Definition {
	return &command.Definition{
		Names:       []string{"distort"},
		Args:        command.ArgsNone,
		Title:       "/distort",
		Description: "reply to a photo to warp it",
		Require:     command.Require(command.Reply),
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			reply := req.Msg.ReplyToMessage
			size := store.BestPhotoSize(reply.Photo, 4096)
			if size == nil {
				_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Reply to a photo.")
				return err
			}

			var data []byte
			if path := env.Photos.PathFor(size.FileUniqueID); path != "" {
				if cached, err := os.ReadFile(path); err == nil {
					data = cached
				}
			}
			if data == nil {
				var err error
				data, err = env.Client.Download(size.FileID)
				if err != nil {
					return err
				}
			}

			warped, err := render.Distort(data)
			if err != nil {
				_, rerr := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Could not process that photo.")
				if rerr != nil {
					return rerr
				}
				return err
			}
			_, err = env.Client.SendPhoto(req.Msg.Chat.ID, reply.MessageID, "distort.jpg", warped, "")
			return err
		},
	}
}

func quoteCmd() *command.Definition {
	return &command.Definition{
		Names:       []string{"quote"},
		Args:        command.ArgsNone,
		Title:       "/quote",
		Description: "reply to a message to frame it",
		Require:     command.Require(command.Reply),
		Handler: func(ctx context.Context, env *command.Env, req *command.Request) error {
			reply := req.Msg.ReplyToMessage
			text := reply.Text
			if text == "" {
				text = reply.Caption
			}
			if text == "" || reply.From == nil {
				_, err := env.Client.Reply(req.Msg.Chat.ID, req.Msg.MessageID, "Reply to a text message.")
				return err
			}

			author := reply.From.FirstName
			if reply.From.LastName != "" {
				author += " " + reply.From.LastName
			}

			png, err := render.Quote(text, author, userAvatar(env, reply.From.ID))
			if err != nil {
				return err
			}
			_, err = env.Client.SendPhoto(req.Msg.Chat.ID, reply.MessageID, "quote.png", png, "")
			return err
		},
	}
}

// userAvatar fetches and decodes the user's profile photo; a card without an
// avatar is fine, so failures just yield nil.
func userAvatar(env *command.Env, userID int64) image.Image {
	fileID, err := env.Client.UserPhotoFileID(userID)
	if err != nil || fileID == "" {
		return nil
	}
	data, err := env.Client.Download(fileID)
	if err != nil {
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	return img
}
