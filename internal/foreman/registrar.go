package foreman

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/HerbHall/hostenroll/internal/facts"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Facts that identify the host record itself.
const (
	factFQDN = "fqdn"
	factIP   = "ipaddress"
	factMAC  = "macaddress"
)

// Registrar builds a host record from local facts and user settings and
// creates it in Foreman.
type Registrar struct {
	spec    AttributeSpec
	facts   facts.Source
	cfg     ClientConfig
	metrics *Metrics
	logger  *zap.Logger
}

// NewRegistrar creates a registrar. metrics may be nil.
func NewRegistrar(spec AttributeSpec, src facts.Source, cfg ClientConfig, metrics *Metrics, logger *zap.Logger) *Registrar {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registrar{
		spec:    spec,
		facts:   src,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

// Register validates raw settings, resolves every attribute, clears
// duplicates and creates the host. It returns the new host's ID.
func (r *Registrar) Register(ctx context.Context, raw map[string]any) (hostID int, err error) {
	defer func() {
		if err != nil {
			r.metrics.observeRegistration(resultFailed)
			return
		}
		r.metrics.observeRegistration(resultRegistered)
	}()

	creds, overrides, err := ParseSettings(raw, r.spec)
	if err != nil {
		return 0, err
	}

	client, err := NewClient(creds, r.cfg, r.metrics, r.logger.Named("client"))
	if err != nil {
		return 0, fmt.Errorf("create foreman client: %w", err)
	}
	return r.register(ctx, client, overrides)
}

func (r *Registrar) register(ctx context.Context, client Requester, overrides Overrides) (int, error) {
	values, err := r.attributeValues(ctx, overrides)
	if err != nil {
		return 0, err
	}

	ids, err := r.resolveAll(ctx, NewResolver(client, r.spec, r.logger.Named("resolver")), values)
	if err != nil {
		return 0, err
	}

	rec, err := r.hostRecord(ctx, ids)
	if err != nil {
		return 0, err
	}

	guard := NewDuplicateGuard(client, r.logger.Named("guard"))
	if err := guard.Check(ctx, rec); err != nil {
		return 0, err
	}

	body, err := client.Request(ctx, http.MethodPost, "hosts", hostEnvelope{Host: rec})
	if err != nil {
		return 0, fmt.Errorf("create host %s: %w", rec.Name, err)
	}
	id, err := decodeCreatedHostID(body)
	if err != nil {
		return 0, err
	}

	r.logger.Info("host registered",
		zap.String("host", rec.Name),
		zap.Int("host_id", id),
		zap.String("ip", rec.IP),
		zap.String("mac", rec.MAC),
	)
	return id, nil
}

// attributeValues picks the override for each attribute, falling back to its
// default. Defaults are only computed for attributes without an override.
func (r *Registrar) attributeValues(ctx context.Context, overrides Overrides) (map[string]string, error) {
	values := make(map[string]string, len(r.spec.attrs))
	for _, a := range r.spec.Attributes() {
		if v, ok := overrides[a.Name]; ok {
			values[a.Name] = v
			continue
		}
		if a.Default == nil {
			return nil, &ConfigError{Key: a.Name, Message: "must be supplied in the foreman section"}
		}
		v, err := a.Default(ctx, r.facts)
		if err != nil {
			return nil, fmt.Errorf("default for %s: %w", a.Name, err)
		}
		values[a.Name] = v
	}
	return values, nil
}

// resolveAll resolves every attribute value. Lookups are read-only, so up to
// ResolveConcurrency of them run at once; the first failure cancels the rest.
func (r *Registrar) resolveAll(ctx context.Context, resolver *Resolver, values map[string]string) (map[string]int, error) {
	attrs := r.spec.Attributes()
	resolved := make([]int, len(attrs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.cfg.ResolveConcurrency))
	for i, a := range attrs {
		g.Go(func() error {
			id, err := resolver.Resolve(gctx, a.Name, values[a.Name])
			if err != nil {
				return err
			}
			resolved[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := make(map[string]int, len(attrs))
	for i, a := range attrs {
		ids[a.Name] = resolved[i]
	}
	return ids, nil
}

func (r *Registrar) hostRecord(ctx context.Context, ids map[string]int) (HostRecord, error) {
	rec := HostRecord{AttributeIDs: ids}
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{factFQDN, &rec.Name},
		{factIP, &rec.IP},
		{factMAC, &rec.MAC},
	} {
		v, err := r.facts.Fact(ctx, f.name)
		if err != nil {
			return HostRecord{}, fmt.Errorf("host identity: %w", err)
		}
		*f.dst = v
	}
	rec.MAC = strings.ToLower(rec.MAC)
	return rec, nil
}
