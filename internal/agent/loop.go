// Package agent drives the bounded model-call ⇄ tool-execution loop. The
// model receives the conversation plus the tool catalog; when it requests
// tool calls the loop executes them through the registry, appends the
// correlated results, and asks again, up to MaxToolHops times. The model
// provider is abstracted behind ChatClient so the loop is testable without
// network access; the OpenAI adapter lives in internal/llm.
package agent

import (
	"context"
	"encoding/json"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vendobot/go-sales-backend/internal/domain"
	"github.com/vendobot/go-sales-backend/internal/observability"
	"github.com/vendobot/go-sales-backend/internal/tools"
)

// Turn roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Fixed fallback replies. The loop never exposes internal errors to the
// customer; these stand in when the model cannot be brought to an answer.
const (
	fallbackHopsExhausted = "Lo siento, no pude completar tu solicitud en este momento. ¿Puedes intentarlo de nuevo?"
	fallbackNoResponse    = "No pude obtener una respuesta en este momento. Inténtalo de nuevo más tarde."
)

// DefaultSystemPrompt encodes the fixed business rules handed to the model
// on every request.
const DefaultSystemPrompt = "Eres el asistente de ventas de la tienda. Responde siempre en español, " +
	"de forma breve y amable. Nunca inventes productos, precios, existencias ni métodos de pago: " +
	"antes de responder cualquier pregunta sobre el catálogo o la configuración, consulta las " +
	"herramientas disponibles. Si una herramienta responde ok=false, explica el problema al cliente " +
	"y sugiere cómo continuar. Solo llama checkout_submit cuando el cliente haya confirmado su compra."

// ToolCall is one tool invocation requested by the model. Args is the raw
// JSON argument string exactly as the model produced it.
type ToolCall struct {
	ID   string
	Name string
	Args string
}

// Turn is one entry of the conversation transcript. Assistant turns may
// carry tool calls; tool turns carry the result correlated by ToolCallID.
type Turn struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ModelReply is what one model call produced: either final text, or one or
// more requested tool calls.
type ModelReply struct {
	Content   string
	ToolCalls []ToolCall
}

// ChatClient is the minimal language-model interface the loop needs.
// A nil reply with a nil error signals a transport anomaly (no message
// object at all) and terminates the loop with a fixed fallback.
type ChatClient interface {
	Complete(ctx context.Context, turns []Turn, catalog []tools.Spec, temperature float64) (*ModelReply, error)
}

// Loop runs bounded tool-calling conversations.
type Loop struct {
	Client   ChatClient
	Registry *tools.Registry

	// MaxToolHops bounds the model-call round trips. Zero means the
	// default of 4.
	MaxToolHops int

	// Temperature is the sampling temperature, kept low for determinism.
	// Zero means the default of 0.2.
	Temperature float64

	// SystemPrompt overrides DefaultSystemPrompt when non-empty.
	SystemPrompt string
}

// Result is the outcome of one loop run: the final customer-facing text
// and the full transcript including tool round trips, for persistence or
// debugging by the caller.
type Result struct {
	Text       string
	Transcript []Turn
}

func (l *Loop) hops() int {
	if l.MaxToolHops > 0 {
		return l.MaxToolHops
	}
	return 4
}

func (l *Loop) temperature() float64 {
	if l.Temperature > 0 {
		return l.Temperature
	}
	return 0.2
}

func (l *Loop) systemPrompt() string {
	if l.SystemPrompt != "" {
		return l.SystemPrompt
	}
	return DefaultSystemPrompt
}

// Run executes the loop for one inbound message. history carries prior
// surfaced turns (user/assistant only); prompt is the new user message.
func (l *Loop) Run(ctx context.Context, scope tools.Scope, history []Turn, prompt string) (*Result, error) {
	tr := otel.Tracer("agent/Loop")
	ctx, span := tr.Start(ctx, "Run",
		trace.WithAttributes(
			attribute.String("bot.id", scope.BotID),
			attribute.String("chat.id", scope.ChatID),
		),
	)
	defer span.End()

	turns := make([]Turn, 0, len(history)+2)
	turns = append(turns, Turn{Role: RoleSystem, Content: l.systemPrompt()})
	turns = append(turns, history...)
	turns = append(turns, Turn{Role: RoleUser, Content: prompt})

	catalog := l.Registry.Catalog()

	for hop := 0; hop < l.hops(); hop++ {
		reply, err := l.Client.Complete(ctx, turns, catalog, l.temperature())
		if err != nil {
			return nil, err
		}
		if reply == nil {
			span.SetAttributes(attribute.String("agent.outcome", "no_response"))
			return &Result{Text: fallbackNoResponse, Transcript: turns}, nil
		}

		if len(reply.ToolCalls) == 0 {
			span.SetAttributes(attribute.Int("agent.hops", hop+1))
			observability.AgentHops.Observe(float64(hop + 1))
			turns = append(turns, Turn{Role: RoleAssistant, Content: reply.Content})
			return &Result{Text: reply.Content, Transcript: turns}, nil
		}

		// Echo the assistant's tool requests back into the transcript; the
		// model needs them to correlate the results that follow.
		turns = append(turns, Turn{
			Role:      RoleAssistant,
			Content:   reply.Content,
			ToolCalls: reply.ToolCalls,
		})
		for _, call := range reply.ToolCalls {
			payload, err := l.execute(ctx, scope, call)
			if err != nil {
				return nil, err
			}
			turns = append(turns, Turn{
				Role:       RoleTool,
				Content:    payload,
				ToolCallID: call.ID,
			})
		}
	}

	span.SetAttributes(attribute.String("agent.outcome", "hops_exhausted"))
	observability.AgentHops.Observe(float64(l.hops()))
	return &Result{Text: fallbackHopsExhausted, Transcript: turns}, nil
}

// execute dispatches one tool call and serializes its result. Malformed
// argument JSON becomes an empty-argument call; validation failures and
// unknown names are reported back to the model as ok:false payloads, not
// surfaced as request errors. Infrastructure errors do abort the request.
func (l *Loop) execute(ctx context.Context, scope tools.Scope, call ToolCall) (string, error) {
	args := map[string]any{}
	if call.Args != "" {
		if uerr := json.Unmarshal([]byte(call.Args), &args); uerr != nil {
			args = map[string]any{}
		}
	}

	res, err := l.Registry.Dispatch(ctx, call.Name, args, scope)
	if err != nil {
		var ve *tools.ValidationError
		if errors.As(err, &ve) || errors.Is(err, tools.ErrNotRegistered) {
			res = map[string]any{"ok": false, "error": "invalid_tool_call", "detail": err.Error()}
		} else {
			return "", err
		}
	}

	buf, merr := json.Marshal(res)
	if merr != nil {
		return "", merr
	}
	return string(buf), nil
}

// Respond adapts the loop to the message orchestrator: prior persisted
// messages become plain turns and the transcript's tool round trips are
// discarded by the caller.
func (l *Loop) Respond(ctx context.Context, botID, chatID string, history []domain.Message, prompt string) (string, error) {
	turns := make([]Turn, 0, len(history))
	for _, m := range history {
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}
	res, err := l.Run(ctx, tools.Scope{BotID: botID, ChatID: chatID}, turns, prompt)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}
