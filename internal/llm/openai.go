// Package llm adapts the OpenAI chat-completions API to the agent loop's
// ChatClient interface. All provider-specific types stay behind this
// package; the loop and its tests only ever see neutral turns.
package llm

import (
	"context"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/vendobot/go-sales-backend/internal/agent"
	"github.com/vendobot/go-sales-backend/internal/tools"
)

// OpenAIClient implements agent.ChatClient over the OpenAI API.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient builds a client for the given API key and model name.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Complete sends the conversation and tool catalog to the model and maps
// the response back to neutral types. A response without choices yields
// (nil, nil), which the loop treats as a transport anomaly.
func (c *OpenAIClient) Complete(ctx context.Context, turns []agent.Turn, catalog []tools.Spec, temperature float64) (*agent.ModelReply, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case agent.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(t.Content))
		case agent.RoleUser:
			msgs = append(msgs, openai.UserMessage(t.Content))
		case agent.RoleTool:
			msgs = append(msgs, openai.ToolMessage(t.Content, t.ToolCallID))
		case agent.RoleAssistant:
			if len(t.ToolCalls) == 0 {
				msgs = append(msgs, openai.AssistantMessage(t.Content))
				continue
			}
			msgs = append(msgs, assistantWithToolCalls(t))
		}
	}

	specs := make([]openai.ChatCompletionToolUnionParam, 0, len(catalog))
	for _, s := range catalog {
		specs = append(specs, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        s.Name,
			Description: openai.String(s.Description),
			Parameters:  shared.FunctionParameters(s.Parameters),
		}))
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    msgs,
		Tools:       specs,
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, nil
	}

	msg := resp.Choices[0].Message
	reply := &agent.ModelReply{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, agent.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: tc.Function.Arguments,
		})
	}
	return reply, nil
}

// assistantWithToolCalls rebuilds an assistant turn that requested tools;
// the API requires the original calls to precede their correlated results.
func assistantWithToolCalls(t agent.Turn) openai.ChatCompletionMessageParamUnion {
	calls := make([]openai.ChatCompletionMessageToolCallUnionParam, 0, len(t.ToolCalls))
	for _, call := range t.ToolCalls {
		calls = append(calls, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: call.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      call.Name,
					Arguments: call.Args,
				},
			},
		})
	}

	assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
	if t.Content != "" {
		assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(t.Content),
		}
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}
