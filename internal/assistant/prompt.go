package assistant

import (
	"fmt"
	"regexp"
	"strings"
)

// RedirectPhrase is the fixed reply for inputs without the activation phrase.
const RedirectPhrase = "Mera name Mia bhai! ha to Mia bhai bhi use kro...."

var activationRe = regexp.MustCompile(`(?i)\bmiy?a\s+bhai\b`)

// HasActivation reports whether text contains "mia bhai" or "miya bhai",
// ignoring case and the amount of whitespace between the words.
func HasActivation(text string) bool {
	return activationRe.MatchString(text)
}

type PromptInput struct {
	Text            string
	OS              string
	History         []Turn
	RequireActivate bool
}

const instructions = `
The user has asked you to do something and you have to answer the query.
If the user asks to open something or to act on the system, provide only the command to run in the terminal of %[1]s, written so that it executes directly on exactly that operating system.
Never include any markdown, code fences or explanation around your answer.

You must answer with exactly one JSON object and nothing else, in one of these two shapes:
{"type":"command","command":"<terminal command>","fail_message":"<message to show if the command fails>"}
{"type":"response","content":"<your answer>"}
`

const gateInstructions = `
One more condition: if the user's message does not contain the phrase 'mia bhai' (also accept 'miya bhai'), ignore the request, even if it asks for a command, and answer exactly:
{"type":"response","content":"%s"}
Otherwise work normally.
`

// BuildPrompt renders the single prompt string sent to the backend.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "user asked: %s\n", in.Text)
	fmt.Fprintf(&b, instructions, in.OS)

	if in.RequireActivate {
		fmt.Fprintf(&b, gateInstructions, RedirectPhrase)
	}

	if len(in.History) > 0 {
		b.WriteString("\nYou are also given the previous conversation history, take it into account when answering:\n")
		for _, t := range in.History {
			b.WriteString(renderTurn(t))
			b.WriteByte('\n')
		}
	}

	return b.String()
}

func renderTurn(t Turn) string {
	switch {
	case t.Role == RoleUser:
		return "user: " + t.Text
	case t.Err != "":
		return "system: error: " + t.Err
	case t.Result != nil:
		return "system: " + t.Result.String()
	default:
		return string(t.Role) + ": " + t.Text
	}
}
