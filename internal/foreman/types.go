package foreman

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Foreman API request/response shapes used by the registrar.
// API v1 list endpoints return a bare array of single-key objects,
// e.g. [{"domain": {"id": 5, "name": "example.com"}}]. API v2 wraps the
// list as {"results": [...]} with unwrapped items. Both are accepted.

// HostRecord is the host to be created. AttributeIDs is keyed by attribute
// name and serialized as "<name>_id".
type HostRecord struct {
	Name         string
	IP           string
	MAC          string
	AttributeIDs map[string]int
}

// MarshalJSON flattens the record into the controller's host shape.
func (r HostRecord) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.AttributeIDs)+3)
	for name, id := range r.AttributeIDs {
		m[name+"_id"] = id
	}
	m["name"] = r.Name
	m["ip"] = r.IP
	m["mac"] = r.MAC
	return json.Marshal(m)
}

// hostEnvelope is the body of POST hosts.
type hostEnvelope struct {
	Host HostRecord `json:"host"`
}

// listItem is one decoded entry of a list response.
type listItem struct {
	ID  int
	Key string
}

// listEnvelope is the API v2 paginated list shape.
type listEnvelope struct {
	Results []json.RawMessage `json:"results"`
}

// decodeList splits a list response into raw items.
func decodeList(resource string, body json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &ProtocolError{Resource: resource, Message: "empty body, expected a list"}
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, &ProtocolError{Resource: resource, Message: "decode list", Err: err}
		}
		return items, nil
	case '{':
		var env listEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, &ProtocolError{Resource: resource, Message: "decode results envelope", Err: err}
		}
		if env.Results == nil {
			return nil, &ProtocolError{Resource: resource, Message: "object without results"}
		}
		return env.Results, nil
	default:
		return nil, &ProtocolError{Resource: resource, Message: "expected a JSON list"}
	}
}

// decodeItems decodes a list response whose items are keyed by field and
// carry an "id" plus the lookup key.
func decodeItems(resource, field, lookupKey string, body json.RawMessage) ([]listItem, error) {
	raw, err := decodeList(resource, body)
	if err != nil {
		return nil, err
	}

	items := make([]listItem, 0, len(raw))
	for i, r := range raw {
		item, err := decodeItem(field, lookupKey, r)
		if err != nil {
			return nil, &ProtocolError{Resource: resource, Message: fmt.Sprintf("item %d", i), Err: err}
		}
		items = append(items, item)
	}
	return items, nil
}

func decodeItem(field, lookupKey string, raw json.RawMessage) (listItem, error) {
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(raw, &outer); err != nil {
		return listItem{}, fmt.Errorf("not an object: %w", err)
	}

	fields := outer
	if inner, ok := outer[field]; ok {
		var unwrapped map[string]json.RawMessage
		if err := json.Unmarshal(inner, &unwrapped); err != nil {
			return listItem{}, fmt.Errorf("%q is not an object: %w", field, err)
		}
		fields = unwrapped
	}

	var item listItem
	idRaw, ok := fields["id"]
	if !ok {
		return listItem{}, fmt.Errorf("missing %q", "id")
	}
	if err := json.Unmarshal(idRaw, &item.ID); err != nil {
		return listItem{}, fmt.Errorf("id is not an integer: %w", err)
	}

	keyRaw, ok := fields[lookupKey]
	if !ok {
		return listItem{}, fmt.Errorf("missing %q", lookupKey)
	}
	if err := json.Unmarshal(keyRaw, &item.Key); err != nil {
		return listItem{}, fmt.Errorf("%s is not a string: %w", lookupKey, err)
	}
	return item, nil
}

// createdHost is the response to POST hosts. v1 wraps the host, v2 does not.
type createdHost struct {
	Host *struct {
		ID *int `json:"id"`
	} `json:"host"`
	ID *int `json:"id"`
}

func decodeCreatedHostID(body json.RawMessage) (int, error) {
	var resp createdHost
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, &ProtocolError{Resource: "hosts", Message: "decode created host", Err: err}
	}
	switch {
	case resp.Host != nil && resp.Host.ID != nil:
		return *resp.Host.ID, nil
	case resp.ID != nil:
		return *resp.ID, nil
	default:
		return 0, &ProtocolError{Resource: "hosts", Message: "created host has no id"}
	}
}
