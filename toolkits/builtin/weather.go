package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/skosovsky/glmtools"
)

var weatherKeys = []string{"temp_C", "FeelsLikeC", "humidity", "weatherDesc", "observation_time"}

// Weather returns get_weather, which reports current conditions from wttr.in. Fetch failures
// are returned as text for the model rather than as errors.
func Weather(opts Options) (glmtools.Tool, error) {
	opts = opts.withDefaults()
	return glmtools.Describe("get_weather", "Get the current weather for `city_name`",
		func(ctx context.Context, p glmtools.Params) (any, error) {
			city, err := p.String("city_name")
			if err != nil {
				return nil, err
			}
			report, err := fetchWeather(ctx, opts, city)
			if err != nil {
				return "Error encountered while fetching weather data!\n" + err.Error(), nil
			}
			return report, nil
		},
		[]glmtools.ParamSpec{
			glmtools.Param[string]("city_name", "The name of the city to be queried", true),
		},
		glmtools.WithTags("web"),
	)
}

func fetchWeather(ctx context.Context, opts Options, city string) (map[string]map[string]any, error) {
	u := strings.TrimRight(opts.WeatherURL, "/") + "/" + url.PathEscape(city) + "?format=j1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wttr.in returned %s", resp.Status)
	}
	var body struct {
		CurrentCondition []map[string]any `json:"current_condition"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode weather: %w", err)
	}
	if len(body.CurrentCondition) == 0 {
		return nil, fmt.Errorf("no current conditions for %q", city)
	}
	current := make(map[string]any, len(weatherKeys))
	for _, k := range weatherKeys {
		v, ok := body.CurrentCondition[0][k]
		if !ok {
			return nil, fmt.Errorf("current_condition has no %s", k)
		}
		current[k] = v
	}
	return map[string]map[string]any{"current_condition": current}, nil
}
