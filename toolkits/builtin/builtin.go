// Package builtin provides the tools shipped with glmtools: a seeded random number generator,
// current weather from wttr.in, the local date and time, and an opt-in shell.
package builtin

import (
	"net/http"
	"time"

	"github.com/skosovsky/glmtools"
)

// DefaultWeatherURL is the wttr.in endpoint used by get_weather.
const DefaultWeatherURL = "https://wttr.in"

// Options select and configure the built-in tools.
type Options struct {
	// WeatherURL overrides DefaultWeatherURL.
	WeatherURL string
	HTTPClient *http.Client
	// EnableShell registers get_shell, which runs arbitrary commands.
	EnableShell  bool
	ShellTimeout time.Duration
	// Now overrides time.Now for get_time.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.WeatherURL == "" {
		o.WeatherURL = DefaultWeatherURL
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if o.ShellTimeout <= 0 {
		o.ShellTimeout = 30 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Tools builds the built-in tools in their registration order.
func Tools(opts Options) ([]glmtools.Tool, error) {
	opts = opts.withDefaults()
	builders := []func(Options) (glmtools.Tool, error){
		RandomNumberGenerator,
		Weather,
		Time,
	}
	if opts.EnableShell {
		builders = append(builders, Shell)
	}
	tools := make([]glmtools.Tool, 0, len(builders))
	for _, build := range builders {
		t, err := build(opts)
		if err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return tools, nil
}
