// Package chat runs one chat turn: persist, load context, ask the model,
// optionally run get_weather once, persist the answer.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"

	"skychat/internal/history"
	"skychat/internal/models"
	"skychat/internal/service/ai"
)

// ErrInvalidRequest marks a request missing userId or message.
var ErrInvalidRequest = errors.New("userId and message cannot be empty")

const (
	DefaultContextLimit     = 5
	DefaultFullHistoryLimit = 100
)

type Options struct {
	ContextLimit     int
	FullHistoryLimit int
}

// Service orchestrates chat turns. It holds no per-request state.
type Service struct {
	ai       *ai.Service
	history  *history.Recorder
	ctxLimit int
	allLimit int
}

func NewService(aiService *ai.Service, recorder *history.Recorder, opts Options) *Service {
	if opts.ContextLimit <= 0 {
		opts.ContextLimit = DefaultContextLimit
	}
	if opts.FullHistoryLimit <= 0 {
		opts.FullHistoryLimit = DefaultFullHistoryLimit
	}
	if recorder == nil {
		recorder = history.NewRecorder(nil)
	}
	return &Service{
		ai:       aiService,
		history:  recorder,
		ctxLimit: opts.ContextLimit,
		allLimit: opts.FullHistoryLimit,
	}
}

// Result is the outcome of a completed turn.
type Result struct {
	Response  string
	ToolCalls int
	ReplyKind ai.ReplyKind
}

// Turn answers req. Validation failures return ErrInvalidRequest before
// anything is written; model failures propagate and leave no BOT entry.
func (s *Service) Turn(ctx context.Context, req models.ChatRequest) (*Result, error) {
	if !req.Valid() {
		return nil, ErrInvalidRequest
	}

	userMsg, err := s.history.Append(ctx, req.UserID, models.SenderUser, req.Message)
	if err != nil {
		return nil, err
	}
	// one extra row: the message just written comes back at the tail
	window, err := s.history.Recent(ctx, req.UserID, s.ctxLimit+1)
	if err != nil {
		return nil, err
	}
	window = withoutCurrent(window, userMsg)
	if len(window) > s.ctxLimit {
		window = window[len(window)-s.ctxLimit:]
	}

	conv := s.ai.StartChat(window)
	reply, err := conv.Send(ctx, req.Message)
	if err != nil {
		return nil, fmt.Errorf("ask model: %w", err)
	}

	res := &Result{}
	if reply.Kind == ai.ReplyToolCall {
		output := s.ai.RunTool(ctx, reply.ToolCall)
		res.ToolCalls++
		// single round trip: whatever comes back now is the answer
		reply, err = conv.SendToolResult(ctx, reply.ToolCall, output)
		if err != nil {
			return nil, fmt.Errorf("ask model with tool result: %w", err)
		}
	}
	res.Response = reply.Answer()
	res.ReplyKind = reply.Kind

	if _, err := s.history.Append(ctx, req.UserID, models.SenderBot, res.Response); err != nil {
		log.Printf("persist bot reply for %s failed: %v", req.UserID, err)
	}
	return res, nil
}

// History returns the user's most recent messages, oldest first.
func (s *Service) History(ctx context.Context, userID string) ([]models.Message, error) {
	return s.history.Recent(ctx, userID, s.allLimit)
}

// withoutCurrent drops the just-written user message from the window; it
// is sent to the model as the new message instead.
func withoutCurrent(window []models.Message, current models.Message) []models.Message {
	n := len(window)
	if n == 0 {
		return window
	}
	last := window[n-1]
	if last.Timestamp == current.Timestamp && last.Sender == current.Sender && last.Text == current.Text {
		return window[:n-1]
	}
	return window
}
