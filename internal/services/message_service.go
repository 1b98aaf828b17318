// Package services – MessageService
//
// This file implements MessageService, the orchestrator behind the inbound
// message endpoint. It validates the prompt, ensures the chat exists, routes
// the message through the express rules first and the tool-calling agent
// second, and persists the user/assistant turn pair atomically. Tool round
// trips inside the agent loop are not persisted; only the surfaced turns are.
//
// Observability: Answer is OpenTelemetry-instrumented; spans record which
// path (rules or agent) produced the reply.
package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vendobot/go-sales-backend/internal/domain"
	"github.com/vendobot/go-sales-backend/internal/repo"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"
)

// Responder produces a reply when the rule-based path declines a message.
// Implemented by the agent loop; fakes stand in for it in tests.
type Responder interface {
	Respond(ctx context.Context, botID, chatID string, history []domain.Message, prompt string) (string, error)
}

// MessageService coordinates message persistence and reply generation.
type MessageService struct {
	DB      *gorm.DB
	Express *ExpressService
	Agent   Responder

	// MaxPromptRunes rejects oversized prompts; zero disables the check.
	MaxPromptRunes int

	// HistoryLimit caps how many prior turns are handed to the agent.
	// Zero means the default of 20.
	HistoryLimit int
}

// Answer handles one inbound customer message end to end and returns the
// persisted assistant reply.
func (s *MessageService) Answer(ctx context.Context, botID, chatID, prompt string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Answer",
		trace.WithAttributes(
			attribute.String("bot.id", botID),
			attribute.String("chat.id", chatID),
		),
	)
	defer span.End()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(prompt) > s.MaxPromptRunes {
		return nil, ErrTooLong
	}

	if _, err := repo.EnsureChat(ctx, s.DB, botID, chatID); err != nil {
		return nil, err
	}

	reply, handled, err := s.Express.HandleMessage(ctx, botID, chatID, prompt)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Bool("route.rules", handled))

	if !handled {
		limit := s.HistoryLimit
		if limit <= 0 {
			limit = 20
		}
		history, herr := repo.ListMessages(s.DB.WithContext(ctx), chatID, limit)
		if herr != nil {
			return nil, herr
		}
		reply, err = s.Agent.Respond(ctx, botID, chatID, history, prompt)
		if err != nil {
			return nil, err
		}
	}

	// Persist user + assistant turns in one transaction so the transcript
	// never holds a question without its answer.
	var assistantMsg *domain.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, cerr := repo.CreateMessage(tx, chatID, roleUser, prompt); cerr != nil {
			return cerr
		}
		m, cerr := repo.CreateMessage(tx, chatID, roleAssistant, reply)
		if cerr != nil {
			return cerr
		}
		assistantMsg = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assistantMsg, nil
}

// ListPage returns paginated messages for a chat, oldest first, plus the
// total count.
func (s *MessageService) ListPage(ctx context.Context, botID, chatID string, page, pageSize int) ([]domain.Message, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	if _, err := repo.GetChat(ctx, s.DB, botID, chatID); err != nil {
		return nil, 0, ErrChatNotFound
	}
	total, err := repo.CountMessages(s.DB.WithContext(ctx), chatID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}
	items, err := repo.ListMessagesPage(s.DB.WithContext(ctx), chatID, (page-1)*pageSize, pageSize)
	return items, total, err
}
