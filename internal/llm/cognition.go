// Trainer cognition: decision prompts and strict parsing of the reply.
package llm

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/talgya/automon-world/internal/agents"
)

//go:embed prompts/decision_system.txt
var decisionSystemPrompt string

//go:embed prompts/decision_user.txt
var decisionUserPrompt string

//go:embed decision.schema.json
var decisionSchemaJSON string

// ErrMalformed wraps every reply that does not satisfy the decision contract.
var ErrMalformed = errors.New("llm: malformed decision")

var (
	systemTmpl = template.Must(template.New("decision_system").Parse(decisionSystemPrompt))
	userTmpl   = template.Must(template.New("decision_user").Funcs(template.FuncMap{
		"join": strings.Join,
		"json": toJSON,
	}).Parse(decisionUserPrompt))
	decisionSchema = jsonschema.MustCompileString("decision.schema.json", decisionSchemaJSON)
)

// BuildDecisionPrompt renders the system and user prompts for one trainer.
func BuildDecisionPrompt(c *agents.Context) (system, user string, err error) {
	var sb, ub bytes.Buffer
	if err := systemTmpl.Execute(&sb, struct{ Name string }{Name: c.Trainer.Name}); err != nil {
		return "", "", fmt.Errorf("render system prompt: %w", err)
	}
	if err := userTmpl.Execute(&ub, c); err != nil {
		return "", "", fmt.Errorf("render user prompt: %w", err)
	}
	return sb.String(), ub.String(), nil
}

// ParseDecision validates the decision object in a reply. The reply must be
// a bare JSON object, optionally wrapped in one ``` or ```json fence; any
// other text around it is rejected. The object must carry a non-empty
// "action" and a "reasoning" string; "target" may be a string, null or absent.
func ParseDecision(response string) (agents.Decision, error) {
	text := strings.TrimSpace(response)
	if rest, ok := strings.CutPrefix(text, "```"); ok {
		rest = strings.TrimPrefix(rest, "json")
		body, ok := strings.CutSuffix(rest, "```")
		if !ok {
			return agents.Decision{}, fmt.Errorf("%w: unterminated code fence", ErrMalformed)
		}
		text = strings.TrimSpace(body)
	}
	if !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
		return agents.Decision{}, fmt.Errorf("%w: reply is not a single JSON object", ErrMalformed)
	}
	raw := []byte(text)

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return agents.Decision{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := decisionSchema.Validate(doc); err != nil {
		return agents.Decision{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var reply struct {
		Action    string  `json:"action"`
		Target    *string `json:"target"`
		Reasoning string  `json:"reasoning"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return agents.Decision{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	action := strings.ToLower(strings.TrimSpace(reply.Action))
	if action == "" {
		return agents.Decision{}, fmt.Errorf("%w: empty action", ErrMalformed)
	}

	d := agents.Decision{Action: action, Reasoning: strings.TrimSpace(reply.Reasoning)}
	if reply.Target != nil {
		d.Target = strings.TrimSpace(*reply.Target)
	}
	return d, nil
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
