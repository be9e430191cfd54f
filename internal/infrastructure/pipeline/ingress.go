// Package pipeline drives command processing: decode at ingress, dedup,
// per-entity lane dispatch, bounded retries and dead-lettering.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/library/backend/internal/domain/shared"
)

// Invocation is a decoded command bound to its handler and lane.
type Invocation struct {
	// LaneKey picks the serializer lane; commands with the same key
	// execute in FIFO order.
	LaneKey string
	// Invoke runs the command's application handler.
	Invoke func(ctx context.Context) error
}

// DecodeFunc turns a raw command into an invocation. Decoders see the
// whole command, not just the payload, so they can hand the dedup key to
// handlers that record it transactionally.
type DecodeFunc func(cmd shared.Command) (*Invocation, error)

// Ingress decodes and validates commands by routing key. Any failure here
// is a schema violation: the command dead-letters immediately, it is never
// retried.
type Ingress struct {
	validate *validator.Validate
	routes   map[string]DecodeFunc
}

// NewIngress creates an ingress with no routes registered
func NewIngress() *Ingress {
	return &Ingress{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		routes:   make(map[string]DecodeFunc),
	}
}

// Register binds a routing key to its decoder
func (i *Ingress) Register(routingKey string, fn DecodeFunc) {
	i.routes[routingKey] = fn
}

// Resolve decodes a command into its invocation
func (i *Ingress) Resolve(cmd shared.Command) (*Invocation, error) {
	fn, ok := i.routes[cmd.RoutingKey]
	if !ok {
		return nil, shared.NewDomainError(shared.KindValidation, "UNKNOWN_ROUTING_KEY",
			fmt.Sprintf("no handler for routing key %q", cmd.RoutingKey))
	}
	return fn(cmd)
}

// decode unmarshals and validates one payload struct
func (i *Ingress) decode(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return shared.NewDomainError(shared.KindValidation, "MALFORMED_PAYLOAD",
			fmt.Sprintf("payload is not valid JSON: %v", err))
	}
	if err := i.validate.Struct(v); err != nil {
		return shared.NewDomainError(shared.KindValidation, "SCHEMA_VIOLATION",
			fmt.Sprintf("payload failed validation: %v", err))
	}
	return nil
}
