package bot

import (
	"errors"

	"github.com/vigarepo2/elixir/pkg/composer"
	"github.com/vigarepo2/elixir/pkg/extract"
	"github.com/vigarepo2/elixir/pkg/grid"
)

// userVisible maps the recoverable error types to the reply the user gets;
// everything else stays internal.
func userVisible(err error) (string, bool) {
	var (
		schema    *extract.SchemaError
		imported  *grid.ImportError
		malformed *composer.MalformedCallbackError
	)

	switch {
	case errors.As(err, &schema):
		return "⚠ Import rejected: " + schema.Error(), true
	case errors.As(err, &imported):
		return "⚠ " + imported.Error(), true
	case errors.As(err, &malformed):
		return "⚠ " + malformed.Error(), true
	}
	return "", false
}
