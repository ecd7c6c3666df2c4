package command

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ArgsMode controls whether trailing text after the command name is allowed
// or mandatory.
type ArgsMode int

const (
	ArgsNone ArgsMode = iota
	ArgsOptional
	ArgsRequired
)

// Request carries a matched text command into its handler.
type Request struct {
	Msg   *tgbotapi.Message
	Match []string // submatches of the definition's pattern
}

// Args returns the trailing argument text captured by the pattern, trimmed.
func (r *Request) Args() string {
	if len(r.Match) < 4 {
		return ""
	}
	return strings.TrimSpace(r.Match[3])
}

// HandlerFunc executes a matched, authorized command.
type HandlerFunc func(ctx context.Context, env *Env, req *Request) error

// Definition is a declarative command descriptor: name(s), argument arity,
// optional explicit pattern, requirements and handler. Patterns are resolved
// once at registration; definitions are immutable afterwards.
type Definition struct {
	Names       []string       // literal command names, e.g. {"chat", "chatthink"}
	Pattern     *regexp.Regexp // explicit pattern overriding Names
	Args        ArgsMode
	Title       string // shown in help and registered with the platform; empty = unlisted
	Description string
	Require     Requirements
	Handler     HandlerFunc

	re *regexp.Regexp
}

// compile derives the matcher from the explicit pattern or the literal names.
// The generated pattern captures (1) the matched name, (2) an optional
// @handle mention and (3) trailing arguments.
func (d *Definition) compile() error {
	if d.Pattern != nil {
		d.re = d.Pattern
		return nil
	}
	if len(d.Names) == 0 {
		return fmt.Errorf("command %q: no names and no pattern", d.Title)
	}

	quoted := make([]string, len(d.Names))
	for i, n := range d.Names {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(n))
	}

	var tail string
	switch d.Args {
	case ArgsNone:
		tail = `\s*$`
	case ArgsRequired:
		tail = `\s+(\S[\s\S]*?)\s*$`
	default:
		tail = `(?:\s+([\s\S]+?))?\s*$`
	}

	re, err := regexp.Compile(`(?i)^/(` + strings.Join(quoted, "|") + `)(?:@(\w+))?` + tail)
	if err != nil {
		return fmt.Errorf("command %q: %w", d.Title, err)
	}
	d.re = re
	return nil
}

// List is an ordered command list; registration order is match priority.
type List []*Definition

// Resolve compiles every definition's pattern. Call once at startup.
func Resolve(defs []*Definition) (List, error) {
	for _, d := range defs {
		if err := d.compile(); err != nil {
			return nil, err
		}
	}
	return List(defs), nil
}

// Match finds the first definition whose pattern matches text. A captured
// @handle mention that does not equal botHandle (case-insensitive) rejects
// the candidate and scanning continues: the command was directed at another
// bot sharing the chat.
func (l List) Match(text, botHandle string) (*Definition, []string) {
	for _, d := range l {
		m := d.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if len(m) > 2 && m[2] != "" && botHandle != "" && !strings.EqualFold(m[2], botHandle) {
			continue
		}
		return d, m
	}
	return nil, nil
}

// HelpLine renders the definition for help listings; commands without a
// title and description are omitted.
func (d *Definition) HelpLine() string {
	switch {
	case d.Title == "" && d.Description == "":
		return ""
	case d.Title != "" && d.Description != "":
		return d.Title + ": " + d.Description
	case d.Title != "":
		return d.Title + ":"
	default:
		return d.Description
	}
}

// Callback is a button command resolved by literal prefix match against the
// callback payload.
type Callback struct {
	Data    string // payload tag, e.g. "/cancel_chat"
	Text    string // button label
	Require Requirements
	Handler func(ctx context.Context, env *Env, query *tgbotapi.CallbackQuery) error
	// After runs after Handler regardless of its outcome.
	After func(ctx context.Context, env *Env, query *tgbotapi.CallbackQuery)
}

// Button renders the callback as an inline keyboard button carrying payload.
func (c *Callback) Button(payload string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(c.Text, payload)
}

// MatchCallback returns the first callback command whose data tag prefixes
// the payload.
func MatchCallback(cmds []*Callback, data string) *Callback {
	for _, c := range cmds {
		if c.Data == "" {
			continue
		}
		if strings.HasPrefix(data, c.Data) {
			return c
		}
	}
	return nil
}
