package responder

import (
	"encoding/json"
	"strings"
)

const (
	actionTime   = "get_time"
	actionSearch = "web_search"
	toolCompose  = "compose_reply"
)

// tools are offered on every chat round. The same actions may also arrive
// as a JSON object in the message body from models that ignore them.
var tools = []Tool{
	{
		Name:        actionSearch,
		Description: "Perform a web search using a query string",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query to look up",
				},
			},
			"required": []string{"query"},
		},
	},
	{
		Name:        actionTime,
		Description: "Get the current UTC time",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		},
	},
	{
		Name:        toolCompose,
		Description: "Finish by providing two text fields for the user",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text_display": map[string]any{
					"type":        "string",
					"description": "Human-readable output limited to 960 characters",
				},
				"text_sam": map[string]any{
					"type":        "string",
					"description": "Phonetic version of the text_display string for SAM",
				},
			},
			"required": []string{"text_display", "text_sam"},
		},
	},
}

type answer struct {
	Action  string `json:"action"`
	Query   string `json:"query"`
	Display string `json:"text_display"`
	Speech  string `json:"text_sam"`
}

// record is the assistant turn kept in the transcript for a tool call, so
// later rounds see which tools were already used.
func (a answer) record() string {
	if a.Action == "" {
		return ""
	}
	b, _ := json.Marshal(struct {
		Action string `json:"action"`
		Query  string `json:"query,omitempty"`
	}{a.Action, a.Query})
	return string(b)
}

// parse decodes a model answer that is a JSON object: either a tool call or
// the final reply. Tool calls must fit on one line; unknown ones, or ones
// missing their query, decode to an empty answer.
func parse(content string) (answer, bool) {
	if !strings.HasPrefix(content, "{") || !strings.HasSuffix(content, "}") {
		return answer{}, false
	}

	var a answer
	if err := json.Unmarshal([]byte(content), &a); err != nil {
		return answer{}, false
	}

	oneLine := !strings.Contains(content, "\n")
	switch {
	case a.Action == "":
		return a, true
	case a.Action == actionTime && oneLine:
		return a, true
	case a.Action == actionSearch && oneLine && a.Query != "":
		return a, true
	default:
		return answer{}, true
	}
}

// fromCall maps a get_time or web_search function call to an action. A
// search without a query maps to an empty answer. Other names are not
// known.
func fromCall(c Call) (answer, bool) {
	switch c.Name {
	case actionTime:
		return answer{Action: actionTime}, true
	case actionSearch:
		var args struct {
			Query string `json:"query"`
		}
		_ = json.Unmarshal([]byte(c.Arguments), &args)
		if q := strings.TrimSpace(args.Query); q != "" {
			return answer{Action: actionSearch, Query: q}, true
		}
		return answer{}, true
	default:
		return answer{}, false
	}
}

// composed turns compose_reply arguments into the reply. Arguments that do
// not decode, or that leave either text empty, fall back to the message
// content for both texts.
func composed(arguments, content string) Reply {
	var a answer
	if err := json.Unmarshal([]byte(arguments), &a); err == nil {
		if a.Display != "" && a.Speech != "" {
			return Reply{Display: a.Display, Speech: a.Speech}
		}
	}
	if content == "" {
		content = "Done."
	}
	return Reply{Display: content, Speech: content}
}
