package foreman

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// Resolver converts symbolic attribute values into controller IDs.
type Resolver struct {
	client Requester
	spec   AttributeSpec
	logger *zap.Logger
}

// NewResolver creates a resolver for the attributes in spec.
func NewResolver(client Requester, spec AttributeSpec, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{client: client, spec: spec, logger: logger}
}

// Resolve returns the ID of the first item in the field's collection whose
// lookup key equals value exactly.
func (r *Resolver) Resolve(ctx context.Context, field, value string) (int, error) {
	attr, ok := r.spec.Lookup(field)
	if !ok {
		return 0, &ConfigError{Key: field, Message: "unknown attribute"}
	}

	// Non-searchable collections are listed in full and filtered here.
	search := ""
	if attr.Searchable {
		search = value
	}

	body, err := r.client.Request(ctx, http.MethodGet, attr.Resource(), url.Values{"search": {search}})
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", attr.Resource(), err)
	}

	items, err := decodeItems(attr.Resource(), attr.Name, attr.LookupKey, body)
	if err != nil {
		return 0, err
	}
	for _, item := range items {
		if item.Key == value {
			r.logger.Debug("attribute resolved",
				zap.String("field", field),
				zap.String("value", value),
				zap.Int("id", item.ID),
			)
			return item.ID, nil
		}
	}

	return 0, &AttributeNotFoundError{Field: field, Value: value}
}
