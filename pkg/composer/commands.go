package composer

import (
	"context"
	"strconv"
	"strings"
)

type Command struct {
	Name string
	Args string
}

// ParseCommand recognizes "/name args" text, tolerating the "@botname"
// suffix Telegram appends in group chats.
func ParseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{}, false
	}

	name, args := text[1:], ""
	if i := strings.IndexByte(name, ' '); i >= 0 {
		name, args = name[:i], strings.TrimSpace(name[i+1:])
	}
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(name), Args: args}, true
}

type commandEntry struct {
	handler func(c *Composer, ctx context.Context, env *turnEnv, args string) error
	// needsDraft gates commands that only make sense with a message under
	// construction; the check happens once here, not in each handler.
	needsDraft bool
	usage      string
}

// Populated in init: the handlers read their usage strings back out of the
// table, so a composite-literal initializer would form a reference cycle.
var commandTable map[string]commandEntry

func init() {
	commandTable = map[string]commandEntry{
		"start":     {handler: (*Composer).cmdStart},
		"help":      {handler: (*Composer).cmdHelp},
		"create":    {handler: (*Composer).cmdCreate},
		"cancel":    {handler: (*Composer).cmdCancel},
		"done":      {handler: (*Composer).cmdDone, needsDraft: true},
		"addbutton": {handler: (*Composer).cmdAddButton, needsDraft: true, usage: "/addbutton Label | https://example.com"},
		"export":    {handler: (*Composer).cmdExport, usage: "/export <message id>"},
		"import":    {handler: (*Composer).cmdImport, usage: "/import <export JSON>"},
		"recreate":  {handler: (*Composer).cmdRecreate, usage: "/recreate <message id>"},
		"summary":   {handler: (*Composer).cmdSummary, usage: "/summary <message id>"},
	}
}

func parseIDArg(args, usage string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || id <= 0 {
		return 0, validationErrorf("expected a message id, usage: %s", usage)
	}
	return id, nil
}
