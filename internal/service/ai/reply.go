package ai

import (
	"encoding/json"
	"strings"

	"github.com/cloudwego/eino/schema"
)

type ReplyKind int

const (
	ReplyText ReplyKind = iota
	ReplyToolCall
	ReplyUnparseable
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyText:
		return "text"
	case ReplyToolCall:
		return "tool_call"
	default:
		return "unparseable"
	}
}

// ToolCall is a decoded request to run get_weather.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
	Weather   WeatherArgs
}

// Reply is the model response reduced to one of three shapes.
type Reply struct {
	Kind     ReplyKind
	Text     string
	ToolCall *ToolCall
	Raw      string
}

// Answer is the text shown to the user for this reply.
func (r Reply) Answer() string {
	if r.Kind == ReplyText {
		return r.Text
	}
	return r.Raw
}

func classify(msg *schema.Message) Reply {
	if msg == nil {
		return Reply{Kind: ReplyUnparseable}
	}
	raw := rawText(msg)
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		if tc.Function.Name != WeatherToolName {
			return Reply{Kind: ReplyUnparseable, Raw: raw}
		}
		arguments := tc.Function.Arguments
		if strings.TrimSpace(arguments) == "" {
			arguments = "{}"
		}
		args, ok := decodeWeatherArgs(arguments)
		if !ok {
			return Reply{Kind: ReplyUnparseable, Raw: raw}
		}
		return Reply{
			Kind: ReplyToolCall,
			ToolCall: &ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: arguments,
				Weather:   args,
			},
			Raw: raw,
		}
	}
	if msg.Content != "" {
		return Reply{Kind: ReplyText, Text: msg.Content, Raw: raw}
	}
	return Reply{Kind: ReplyUnparseable, Raw: raw}
}

func rawText(msg *schema.Message) string {
	if msg.Content != "" {
		return msg.Content
	}
	return msg.String()
}

func decodeWeatherArgs(arguments string) (WeatherArgs, bool) {
	var args WeatherArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return WeatherArgs{}, false
	}
	return args, true
}
