package config

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ParseError reports an environment variable whose value could not be parsed.
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string { return "parse " + e.Key + ": " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError lists every rule a loaded configuration breaks.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() []error { return e.Problems }

// loadOutcome labels a Load call for the config.validation.events counter.
func loadOutcome(err error) (outcome, class string) {
	var (
		pe *ParseError
		ve *ValidationError
	)
	switch {
	case err == nil:
		return "success", "none"
	case errors.As(err, &ve):
		return "error", "validation"
	case errors.As(err, &pe):
		return "error", "parse"
	default:
		return "error", "load"
	}
}

func recordLoad(ctx context.Context, profile string, err error) {
	counter, cErr := otel.Meter("ctm-credential-service").Int64Counter("config.validation.events")
	if cErr != nil {
		return
	}
	outcome, class := loadOutcome(err)
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", profileLabel(profile)),
		attribute.String("outcome", outcome),
		attribute.String("error_class", class),
	))
}

func profileLabel(profile string) string {
	if v := strings.ToLower(strings.TrimSpace(profile)); v != "" {
		return v
	}
	return "unknown"
}
