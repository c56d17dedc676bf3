package foreman

import (
	"context"
	"fmt"
	"strings"

	"github.com/HerbHall/hostenroll/internal/facts"
)

// Lookup keys used to match list items against a symbolic value.
const (
	LookupName  = "name"
	LookupLabel = "label"
)

// DefaultFunc computes an attribute's default value, usually from local facts.
type DefaultFunc func(ctx context.Context, src facts.Source) (string, error)

// Attribute describes one host attribute the registrar knows how to default
// and resolve into a controller ID.
type Attribute struct {
	Name       string      // field name, e.g. "domain"; the resource is Name+"s"
	LookupKey  string      // item key compared against the value: "name" or "label"
	Searchable bool        // controller supports server-side filtering via ?search=
	Default    DefaultFunc // nil means the value must be supplied in settings
}

// Resource returns the controller collection for the attribute.
func (a Attribute) Resource() string {
	return a.Name + "s"
}

// AttributeSpec is the fixed, ordered set of attributes used for one
// registrar. It is immutable once built.
type AttributeSpec struct {
	attrs []Attribute
	index map[string]int
}

// NewAttributeSpec validates attrs and builds a spec. Names must be unique and
// every attribute needs a lookup key.
func NewAttributeSpec(attrs ...Attribute) (AttributeSpec, error) {
	spec := AttributeSpec{
		attrs: make([]Attribute, 0, len(attrs)),
		index: make(map[string]int, len(attrs)),
	}
	for _, a := range attrs {
		if strings.TrimSpace(a.Name) == "" {
			return AttributeSpec{}, fmt.Errorf("attribute with empty name")
		}
		if a.LookupKey == "" {
			return AttributeSpec{}, fmt.Errorf("attribute %q: empty lookup key", a.Name)
		}
		if _, dup := spec.index[a.Name]; dup {
			return AttributeSpec{}, fmt.Errorf("attribute %q declared twice", a.Name)
		}
		spec.index[a.Name] = len(spec.attrs)
		spec.attrs = append(spec.attrs, a)
	}
	return spec, nil
}

// DefaultAttributeSpec returns the attribute set used for virtual machines
// provisioned into Foreman.
//
// Hostgroups are matched by label and, like operating systems, cannot be
// filtered by the controller, so both are listed in full and scanned locally.
func DefaultAttributeSpec() AttributeSpec {
	spec, err := NewAttributeSpec(
		Attribute{Name: "hostgroup", LookupKey: LookupLabel},
		Attribute{Name: "architecture", LookupKey: LookupName, Searchable: true, Default: FactDefault("architecture")},
		Attribute{Name: "model", LookupKey: LookupName, Searchable: true, Default: StaticDefault("Virtual Machine")},
		Attribute{Name: "operatingsystem", LookupKey: LookupName, Default: FactDefault("operatingsystem", "operatingsystemrelease")},
		Attribute{Name: "environment", LookupKey: LookupName, Searchable: true, Default: StaticDefault("production")},
		Attribute{Name: "domain", LookupKey: LookupName, Searchable: true, Default: FactDefault("domain")},
		Attribute{Name: "ptable", LookupKey: LookupName, Searchable: true, Default: StaticDefault("RedHat default")},
	)
	if err != nil {
		panic(err)
	}
	return spec
}

// Attributes returns the attributes in declaration order.
func (s AttributeSpec) Attributes() []Attribute {
	out := make([]Attribute, len(s.attrs))
	copy(out, s.attrs)
	return out
}

// Lookup returns the attribute with the given name.
func (s AttributeSpec) Lookup(name string) (Attribute, bool) {
	i, ok := s.index[name]
	if !ok {
		return Attribute{}, false
	}
	return s.attrs[i], true
}

// Names returns the attribute names in declaration order.
func (s AttributeSpec) Names() []string {
	names := make([]string, len(s.attrs))
	for i, a := range s.attrs {
		names[i] = a.Name
	}
	return names
}

// StaticDefault returns a DefaultFunc that always yields v.
func StaticDefault(v string) DefaultFunc {
	return func(context.Context, facts.Source) (string, error) {
		return v, nil
	}
}

// FactDefault returns a DefaultFunc that joins the named facts with a space,
// e.g. "RedHat" and "9.3" become "RedHat 9.3".
func FactDefault(names ...string) DefaultFunc {
	return func(ctx context.Context, src facts.Source) (string, error) {
		parts := make([]string, 0, len(names))
		for _, n := range names {
			v, err := src.Fact(ctx, n)
			if err != nil {
				return "", err
			}
			parts = append(parts, v)
		}
		return strings.Join(parts, " "), nil
	}
}
