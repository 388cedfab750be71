package llm

import (
	"strings"
	"text/template"

	"github.com/eldtechnologies/aicq-agent/internal/models"
)

var funcs = template.FuncMap{
	"speaker": speaker,
}

var shouldRespondTemplate = template.Must(template.New("should-respond").Funcs(funcs).Parse(`# About {{.Persona.Name}}:
{{.Persona.Bio}}

# RESPONSE EXAMPLES
user1: I just saw a really great movie
user2: Oh? Which movie?
Result: [IGNORE]

{{.Persona.Name}}: Oh, this is my favorite scene
user1: sick
user2: wait, why is it your favorite scene
Result: [RESPOND]

user1: stfu bot
Result: [STOP]

user1: Hey @{{.Persona.Handle}}, can you help me with something
Result: [RESPOND]

user1: {{.Persona.Name}} stop responding plz
Result: [STOP]

user1: i need help
{{.Persona.Name}}: how can I help you?
user1: no. i need help from someone else
Result: [IGNORE]

Response options are [RESPOND], [IGNORE] and [STOP].

{{.Persona.Name}} is in a room with other users and should only respond when they are being addressed, and should not respond if they are continuing a conversation that is very long.

Respond with [RESPOND] to messages that are directed at {{.Persona.Name}}, or participate in conversations that are interesting or relevant to their background.
If a message is not interesting, relevant, or does not directly address {{.Persona.Name}}, respond with [IGNORE].

Also, respond with [IGNORE] to messages that are very short or do not contain much information.

If a user asks {{.Persona.Name}} to be quiet, respond with [STOP].
If {{.Persona.Name}} concludes a conversation and isn't part of the conversation anymore, respond with [STOP].

{{.Persona.Name}} is particularly sensitive about being annoying, so if there is any doubt, it is better to respond with [IGNORE].
If {{.Persona.Name}} is conversing with a user and they have not asked to stop, it is better to respond with [RESPOND].

# Recent messages
{{range .Conversation}}{{speaker .}}: {{.Text}}
{{end}}
# Last message
{{.Message.AuthorName}}: {{.Message.Body}}

# INSTRUCTIONS: Choose the option that best describes {{.Persona.Name}}'s response to the last message. Ignore messages if they are addressed to someone else.
Answer with exactly one of [RESPOND], [IGNORE] or [STOP].
`))

var replyTemplate = template.Must(template.New("reply").Funcs(funcs).Parse(`# Task: write the next chat message for {{.Persona.Name}} (@{{.Persona.Handle}}).
About {{.Persona.Name}}:
{{.Persona.Bio}}
{{if .Persona.Style}}
# Style
{{.Persona.Style}}
{{end}}
# Recent messages
{{range .Conversation}}{{speaker .}}: {{.Text}}
{{end}}
# Message to answer
{{.Message.AuthorName}}: {{.Message.Body}}

Reply in the voice of {{.Persona.Name}}. Write only the message text.
`))

type promptData struct {
	Persona      Persona
	Conversation []models.Memory
	Message      models.Event
}

func render(t *template.Template, data promptData) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func speaker(m models.Memory) string {
	if m.AuthorName != "" {
		return m.AuthorName
	}
	return m.AuthorID
}
