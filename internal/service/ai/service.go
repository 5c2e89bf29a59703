package ai

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"skychat/internal/config"
	"skychat/internal/models"
)

// ErrModelUnavailable is returned on every call when the chat model could
// not be constructed at startup.
var ErrModelUnavailable = errors.New("chat model unavailable")

// ErrEmptyReply is returned when the model answers with no message at all.
var ErrEmptyReply = errors.New("model returned no message")

// Service talks to the configured chat model with get_weather bound.
type Service struct {
	chatModel   model.ToolCallingChatModel
	weatherTool tool.InvokableTool
}

// NewService builds the chat model for cfg.Model.Provider. Construction
// failures are logged and leave the service answering ErrModelUnavailable.
func NewService(ctx context.Context, cfg *config.Config, lookup WeatherLookup) (*Service, error) {
	chatModel, err := newChatModel(ctx, cfg)
	if err != nil {
		log.Printf("chat model disabled: %v", err)
		chatModel = unavailableModel{cause: err}
	}
	return NewServiceWithModel(ctx, chatModel, NewWeatherTool(lookup))
}

// NewServiceWithModel binds weatherTool to an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.ToolCallingChatModel, weatherTool tool.InvokableTool) (*Service, error) {
	info, err := weatherTool.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("weather tool info: %w", err)
	}
	bound, err := chatModel.WithTools([]*schema.ToolInfo{info})
	if err != nil {
		return nil, fmt.Errorf("bind tools: %w", err)
	}
	return &Service{chatModel: bound, weatherTool: weatherTool}, nil
}

func newChatModel(ctx context.Context, cfg *config.Config) (model.ToolCallingChatModel, error) {
	provider := cfg.Model.Provider
	provCfg := cfg.Provider()
	modelName := cfg.Model.Name
	if modelName == "" {
		modelName = provCfg.Model
	}
	if provCfg.APIKey == "" {
		return nil, fmt.Errorf("api key for provider %s not configured", provider)
	}

	switch provider {
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  provCfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("new gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
	case "openai":
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   modelName,
			APIKey:  provCfg.APIKey,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
}

// StartChat opens a conversation seeded with prior messages, oldest first.
func (s *Service) StartChat(history []models.Message) *Chat {
	messages := make([]*schema.Message, 0, len(history)+3)
	for _, msg := range history {
		role, ok := RoleForSender(msg.Sender)
		if !ok {
			continue
		}
		messages = append(messages, &schema.Message{Role: role, Content: msg.Text})
	}
	return &Chat{svc: s, messages: messages}
}

// RunTool executes call locally. Failures become an {"error": ...} payload
// for the model instead of an error.
func (s *Service) RunTool(ctx context.Context, call *ToolCall) string {
	if call == nil || call.Name != WeatherToolName {
		return toolErrorPayload(errors.New("unknown tool"))
	}
	out, err := s.weatherTool.InvokableRun(ctx, call.Arguments)
	if err != nil {
		return toolErrorPayload(err)
	}
	return out
}

// Chat is one turn's conversation with the model.
type Chat struct {
	svc      *Service
	messages []*schema.Message
}

// Send adds a user message and asks the model for a reply.
func (c *Chat) Send(ctx context.Context, text string) (Reply, error) {
	c.messages = append(c.messages, schema.UserMessage(text))
	return c.generate(ctx)
}

// SendToolResult hands the tool output for call back to the model.
func (c *Chat) SendToolResult(ctx context.Context, call *ToolCall, result string) (Reply, error) {
	c.messages = append(c.messages, &schema.Message{
		Role:       schema.Tool,
		Content:    result,
		ToolCallID: call.ID,
		ToolName:   call.Name,
	})
	return c.generate(ctx)
}

func (c *Chat) generate(ctx context.Context) (Reply, error) {
	resp, err := c.svc.chatModel.Generate(ctx, c.messages)
	if err != nil {
		return Reply{}, fmt.Errorf("generate reply: %w", err)
	}
	if resp == nil {
		return Reply{}, ErrEmptyReply
	}
	c.messages = append(c.messages, resp)
	return classify(resp), nil
}

type unavailableModel struct {
	cause error
}

func (m unavailableModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, m.cause)
}

func (m unavailableModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, m.cause)
}

func (m unavailableModel) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}
