package foreman

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// DuplicateGuard makes sure a new host record does not collide with an
// existing one. A stale record with the same name is deleted; a different
// host holding the same IP or MAC is a hard error.
type DuplicateGuard struct {
	client Requester
	logger *zap.Logger
}

// NewDuplicateGuard creates a guard that talks to the controller via client.
func NewDuplicateGuard(client Requester, logger *zap.Logger) *DuplicateGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DuplicateGuard{client: client, logger: logger}
}

// HostExists reports whether a host named hostname is registered. A 404 means
// absent; any other failure is returned.
func (g *DuplicateGuard) HostExists(ctx context.Context, hostname string) (bool, error) {
	_, err := g.client.Request(ctx, http.MethodGet, hostResource(hostname), nil)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("look up host %s: %w", hostname, err)
	}
	g.logger.Warn("host already exists", zap.String("host", hostname))
	return true, nil
}

// Check deletes any host with the record's name, then fails if another host
// still holds the record's IP or MAC.
func (g *DuplicateGuard) Check(ctx context.Context, rec HostRecord) error {
	if strings.TrimSpace(rec.Name) == "" {
		return fmt.Errorf("check duplicates: %w", ErrInvalidHostname)
	}

	exists, err := g.HostExists(ctx, rec.Name)
	if err != nil {
		return err
	}
	if exists {
		g.logger.Warn("deleting stale host from foreman", zap.String("host", rec.Name))
		if _, err := g.client.Request(ctx, http.MethodDelete, hostResource(rec.Name), nil); err != nil {
			return fmt.Errorf("delete host %s: %w", rec.Name, err)
		}
	}

	for _, f := range []struct{ field, value string }{
		{"ip", rec.IP},
		{"mac", rec.MAC},
	} {
		query := url.Values{"search": {f.field + "=" + f.value}}
		body, err := g.client.Request(ctx, http.MethodGet, "hosts", query)
		if err != nil {
			return fmt.Errorf("search hosts by %s: %w", f.field, err)
		}
		matches, err := decodeItems("hosts", "host", LookupName, body)
		if err != nil {
			return err
		}
		if len(matches) > 0 {
			conflicts := make([]string, len(matches))
			for i, m := range matches {
				conflicts[i] = m.Key
			}
			return &DuplicateResourceError{Field: f.field, Value: f.value, Conflicts: conflicts}
		}
	}
	return nil
}

func hostResource(hostname string) string {
	return "hosts/" + url.PathEscape(hostname)
}
