package ai

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// Generator turns a single prompt into generated text through one provider.
type Generator struct {
	provider Provider
	name     string
}

func NewGenerator(name string, p Provider) *Generator {
	return &Generator{provider: p, name: name}
}

// Generate sends prompt as one user message and returns the trimmed reply.
// A blank reply is an error of KindEmptyResult.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := g.provider.Chat(ctx, []Message{{Role: "user", Content: prompt}})
	if err != nil {
		if KindOf(err) == "" {
			err = newError(g.name, KindFatal, err)
		}
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", newError(g.name, KindEmptyResult, errors.New("backend returned empty output"))
	}
	return out, nil
}

// HealthPrompt is the trivial request Health sends.
const HealthPrompt = "Reply with the single word OK."

// Health runs one real generation, so a listed but broken model reports
// unhealthy.
func (g *Generator) Health(ctx context.Context) error {
	_, err := g.Generate(ctx, HealthPrompt)
	return err
}

// Name is the provider name the generator was built with.
func (g *Generator) Name() string { return g.name }
