package builtin

import (
	"context"

	"github.com/skosovsky/glmtools"
)

// Time returns get_time, which reports the local date, time and weekday.
func Time(opts Options) (glmtools.Tool, error) {
	opts = opts.withDefaults()
	return glmtools.Describe("get_time", "Useful for when you need to answer questions about Date or Time.",
		func(context.Context, glmtools.Params) (any, error) {
			now := opts.Now()
			return "Today's date is " + now.Format("2006-01-02") +
				", the current time is " + now.Format("15:04:05") +
				", today is " + now.Weekday().String(), nil
		},
		[]glmtools.ParamSpec{
			glmtools.Param[string]("no_use", "The question of the time to be queried", true),
		},
	)
}
