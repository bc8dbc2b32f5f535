package responder

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI completes chats through the OpenAI API.
type OpenAI struct {
	client openai.Client
}

func NewOpenAI(apiKey string, httpClient *http.Client, opts ...option.RequestOption) *OpenAI {
	base := []option.RequestOption{option.WithAPIKey(apiKey)}
	if httpClient != nil {
		base = append(base, option.WithHTTPClient(httpClient))
	}
	return &OpenAI{client: openai.NewClient(append(base, opts...)...)}
}

func (o *OpenAI) Complete(ctx context.Context, model string, turns []Turn, tools []Tool) (Completion, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case System:
			msgs = append(msgs, openai.SystemMessage(t.Content))
		case Assistant:
			msgs = append(msgs, openai.AssistantMessage(t.Content))
		default:
			msgs = append(msgs, openai.UserMessage(t.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    model,
	}
	for _, t := range tools {
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  openai.FunctionParameters(t.Parameters),
		}))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Completion{}, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Completion{}, errors.New("no choices in response")
	}

	// an empty answer is left to the caller, which nudges the model
	msg := resp.Choices[0].Message
	out := Completion{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		if tc.Type == "function" && tc.Function.Name != "" {
			out.Call = &Call{Name: tc.Function.Name, Arguments: tc.Function.Arguments}
			break
		}
	}
	if out.Call == nil && msg.FunctionCall.Name != "" {
		out.Call = &Call{Name: msg.FunctionCall.Name, Arguments: msg.FunctionCall.Arguments}
	}
	return out, nil
}
