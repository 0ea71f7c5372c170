// Package llmclient provides thin HTTP clients for the LLM providers the
// classifier can route field recognition through.
package llmclient

import (
	"context"

	"github.com/formscout/formscout/api/schemas"
)

// Client is the provider-agnostic generation contract consumed by the
// classifier.
type Client interface {
	Generate(ctx context.Context, req schemas.GenerationRequest) (string, error)
}
