package core

import "strings"

type inputKind int

const (
	inputMessage inputKind = iota
	inputAction
	inputNotice
	inputQuery
	inputJoin
	inputPart
	inputNick
	inputTopic
	inputList
	inputRaw
	inputQuit
)

// parsedInput is the result of local slash-command parsing.
type parsedInput struct {
	Kind   inputKind
	Target string
	Text   string
}

// parseInput classifies one line of user input. Anything that is not a
// recognized slash command is a plain message; malformed arguments to a
// recognized command fail with a command_error carrying the offending
// input.
func parseInput(text string) (parsedInput, error) {
	if !strings.HasPrefix(text, "/") {
		return parsedInput{Kind: inputMessage, Text: text}, nil
	}

	cmd, rest := text, ""
	if i := strings.IndexByte(text, ' '); i >= 0 {
		cmd, rest = text[:i], strings.TrimLeft(text[i+1:], " ")
	}

	switch strings.ToLower(cmd) {
	case "/me":
		if rest == "" {
			return parsedInput{}, sessionError(ErrCodeCommandError, "usage: /me <action>: "+text)
		}
		return parsedInput{Kind: inputAction, Text: rest}, nil
	case "/notice":
		target, body, ok := strings.Cut(rest, " ")
		if !ok || target == "" || body == "" {
			return parsedInput{}, sessionError(ErrCodeCommandError, "usage: /notice <target> <text>: "+text)
		}
		return parsedInput{Kind: inputNotice, Target: target, Text: body}, nil
	case "/query":
		if rest == "" || strings.Contains(rest, " ") {
			return parsedInput{}, sessionError(ErrCodeCommandError, "usage: /query <nick>: "+text)
		}
		return parsedInput{Kind: inputQuery, Target: rest}, nil
	case "/join":
		if rest == "" || strings.Contains(rest, " ") {
			return parsedInput{}, sessionError(ErrCodeCommandError, "usage: /join <channel>: "+text)
		}
		return parsedInput{Kind: inputJoin, Target: rest}, nil
	case "/part", "/leave":
		target, reason := "", rest
		if strings.HasPrefix(rest, "#") || strings.HasPrefix(rest, "&") {
			target, reason, _ = strings.Cut(rest, " ")
		}
		return parsedInput{Kind: inputPart, Target: target, Text: reason}, nil
	case "/nick":
		if rest == "" || strings.Contains(rest, " ") {
			return parsedInput{}, sessionError(ErrCodeCommandError, "usage: /nick <nickname>: "+text)
		}
		return parsedInput{Kind: inputNick, Target: rest}, nil
	case "/topic":
		if rest == "" {
			return parsedInput{}, sessionError(ErrCodeCommandError, "usage: /topic <text>: "+text)
		}
		return parsedInput{Kind: inputTopic, Text: rest}, nil
	case "/list":
		return parsedInput{Kind: inputList}, nil
	case "/raw", "/quote":
		if rest == "" {
			return parsedInput{}, sessionError(ErrCodeCommandError, "usage: /raw <command>: "+text)
		}
		return parsedInput{Kind: inputRaw, Text: rest}, nil
	case "/quit":
		return parsedInput{Kind: inputQuit, Text: rest}, nil
	default:
		return parsedInput{}, sessionError(ErrCodeCommandError, "unknown command: "+text)
	}
}
