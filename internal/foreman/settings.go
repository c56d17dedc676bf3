package foreman

import (
	"strings"

	"github.com/spf13/cast"
)

// Setting keys in the foreman section that are not attributes.
const (
	KeyServer    = "server"
	KeyLogin     = "login"
	KeyPassword  = "password" //nolint:gosec // G101: setting name, not a credential
	KeyHostgroup = "hostgroup"
)

// mandatoryKeys must all be present before anything touches the network.
var mandatoryKeys = []string{KeyServer, KeyHostgroup, KeyLogin, KeyPassword}

// Credentials identify the controller and the account used to talk to it.
type Credentials struct {
	Server   string
	Login    string
	Password string
}

// String redacts the password so credentials can be logged safely.
func (c Credentials) String() string {
	return "server=" + c.Server + " login=" + c.Login + " password=***"
}

// Overrides maps attribute names to user-supplied symbolic values.
type Overrides map[string]string

// SettingKeys lists every key ParseSettings understands for spec.
func SettingKeys(spec AttributeSpec) []string {
	keys := []string{KeyServer, KeyLogin, KeyPassword}
	return append(keys, spec.Names()...)
}

// ParseSettings splits raw settings into Credentials and attribute Overrides.
// raw is never modified. Keys that are neither credentials nor attributes in
// spec are ignored.
func ParseSettings(raw map[string]any, spec AttributeSpec) (Credentials, Overrides, error) {
	values := make(map[string]string, len(raw))
	for _, key := range mandatoryKeys {
		v, ok := raw[key]
		if !ok || v == nil {
			return Credentials{}, nil, &ConfigError{Key: key, Message: "must be supplied in the foreman section"}
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return Credentials{}, nil, &ConfigError{Key: key, Message: err.Error()}
		}
		if strings.TrimSpace(s) == "" {
			return Credentials{}, nil, &ConfigError{Key: key, Message: "must not be empty"}
		}
		values[key] = s
	}

	creds := Credentials{
		Server:   strings.TrimSpace(values[KeyServer]),
		Login:    values[KeyLogin],
		Password: values[KeyPassword],
	}

	overrides := make(Overrides)
	for _, name := range spec.Names() {
		v, ok := raw[name]
		if !ok || v == nil {
			continue
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return Credentials{}, nil, &ConfigError{Key: name, Message: err.Error()}
		}
		overrides[name] = s
	}

	return creds, overrides, nil
}
