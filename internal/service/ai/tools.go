package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"skychat/internal/weather"
)

const WeatherToolName = "get_weather"

// WeatherLookup is satisfied by *weather.Client.
type WeatherLookup interface {
	Lookup(ctx context.Context, location string, unit weather.Unit) weather.Result
}

type WeatherArgs struct {
	Location string `json:"location"`
	Unit     string `json:"unit,omitempty"`
}

// NewWeatherTool exposes lookup to the model as get_weather.
func NewWeatherTool(lookup WeatherLookup) tool.InvokableTool {
	info := &schema.ToolInfo{
		Name: WeatherToolName,
		Desc: "Gets the current weather for a specified location.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"location": {
				Desc:     "City name, optionally with country, e.g. Paris or Austin, US",
				Type:     schema.String,
				Required: true,
			},
			"unit": {
				Desc:     "Temperature unit, celsius when omitted",
				Type:     schema.String,
				Enum:     []string{string(weather.Celsius), string(weather.Fahrenheit)},
				Required: false,
			},
		}),
	}
	w := &weatherTool{lookup: lookup}
	return utils.NewTool(info, w.run)
}

type weatherTool struct {
	lookup WeatherLookup
}

func (w *weatherTool) run(ctx context.Context, params *WeatherArgs) (string, error) {
	if params == nil {
		params = &WeatherArgs{}
	}
	res := w.lookup.Lookup(ctx, params.Location, weather.ParseUnit(params.Unit))
	data, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("marshal weather result: %w", err)
	}
	return string(data), nil
}

// toolErrorPayload renders a failed tool run the way the weather adapter
// renders its own failures.
func toolErrorPayload(err error) string {
	data, _ := json.Marshal(map[string]string{"error": fmt.Sprintf("Failed to get weather data: %v", err)})
	return string(data)
}
