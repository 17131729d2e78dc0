package builtin

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/skosovsky/glmtools"
)

type randomArgs struct {
	Seed  int    `json:"seed" jsonschema:"required" jsonschema_description:"The random seed used by the generator"`
	Range [2]int `json:"range" jsonschema:"required" jsonschema_description:"The range of the generated numbers"`
}

func (a randomArgs) Validate() error {
	if a.Range[0] >= a.Range[1] {
		return errors.New("range[0] must be less than range[1]")
	}
	return nil
}

// RandomNumberGenerator returns random_number_generator. The same seed and range always give
// the same number.
func RandomNumberGenerator(Options) (glmtools.Tool, error) {
	return glmtools.NewTool("random_number_generator", "Generates a random number x, s.t. range[0] <= x < range[1]",
		func(_ context.Context, a randomArgs) (int, error) {
			r := rand.New(rand.NewPCG(uint64(a.Seed), uint64(a.Seed)))
			return a.Range[0] + r.IntN(a.Range[1]-a.Range[0]), nil
		},
		glmtools.WithTags("math"),
	)
}
