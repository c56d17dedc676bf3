package foreman

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/HerbHall/hostenroll/internal/facts"
)

const (
	testLogin    = "admin"
	testPassword = "changeme"
)

// recordedRequest is one request seen by the fake controller.
type recordedRequest struct {
	Method string
	Path   string
	Search string
	Query  string
	Body   []byte
}

func (r recordedRequest) String() string {
	if r.Query == "" {
		return r.Method + " " + r.Path
	}
	return r.Method + " " + r.Path + "?" + r.Query
}

type fakeHost struct {
	ID   int
	Name string
	IP   string
	MAC  string
}

// fakeForeman mimics the Foreman v1 API: list endpoints return bare arrays of
// {"<field>": {...}} objects and hosts are addressable by name.
type fakeForeman struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
	lists    map[string][]map[string]any // resource -> items
	hosts    map[string]fakeHost
	nextID   int
	statuses map[string]int // "METHOD /path" -> forced status
}

type fakeOption func(*fakeForeman)

// withItems replaces the collection for resource. pairs maps the lookup key
// value to the item id.
func withItems(field, lookupKey string, pairs map[string]int) fakeOption {
	return func(f *fakeForeman) {
		names := make([]string, 0, len(pairs))
		for n := range pairs {
			names = append(names, n)
		}
		sort.Strings(names)
		items := make([]map[string]any, 0, len(pairs))
		for _, n := range names {
			items = append(items, map[string]any{field: map[string]any{lookupKey: n, "id": pairs[n]}})
		}
		f.lists[field+"s"] = items
	}
}

func withRawItems(resource string, items ...map[string]any) fakeOption {
	return func(f *fakeForeman) { f.lists[resource] = items }
}

func withHost(h fakeHost) fakeOption {
	return func(f *fakeForeman) { f.hosts[h.Name] = h }
}

func withStatus(methodPath string, status int) fakeOption {
	return func(f *fakeForeman) { f.statuses[methodPath] = status }
}

// newFakeForeman starts a fake controller preloaded with the collections a
// default registration needs.
func newFakeForeman(t *testing.T, opts ...fakeOption) *fakeForeman {
	t.Helper()
	f := &fakeForeman{
		t:        t,
		lists:    make(map[string][]map[string]any),
		hosts:    make(map[string]fakeHost),
		nextID:   100,
		statuses: make(map[string]int),
	}

	for _, opt := range []fakeOption{
		withItems("hostgroup", LookupLabel, map[string]int{"web": 3, "base/db": 4}),
		withItems("architecture", LookupName, map[string]int{"x86_64": 1, "i386": 2}),
		withItems("model", LookupName, map[string]int{"Virtual Machine": 11}),
		withItems("operatingsystem", LookupName, map[string]int{"RedHat 9.3": 21, "RedHat 8.9": 22}),
		withItems("environment", LookupName, map[string]int{"production": 31, "staging": 32}),
		withItems("domain", LookupName, map[string]int{"example.com": 41}),
		withItems("ptable", LookupName, map[string]int{"RedHat default": 51}),
	} {
		opt(f)
	}
	for _, opt := range opts {
		opt(f)
	}

	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeForeman) URL() string { return f.srv.URL }

func (f *fakeForeman) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Search: r.URL.Query().Get("search"),
		Query:  r.URL.RawQuery,
		Body:   body,
	})

	if user, pass, ok := r.BasicAuth(); !ok || user != testLogin || pass != testPassword {
		w.WriteHeader(http.StatusUnauthorized)
		writeTestJSON(w, map[string]string{"error": "unauthorized"})
		return
	}

	if status, ok := f.statuses[r.Method+" "+r.URL.Path]; ok {
		w.WriteHeader(status)
		writeTestJSON(w, map[string]string{"error": http.StatusText(status)})
		return
	}

	resource := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case resource == "hosts" && r.Method == http.MethodGet:
		f.searchHosts(w, r.URL.Query().Get("search"))
	case resource == "hosts" && r.Method == http.MethodPost:
		f.createHost(w, body)
	case strings.HasPrefix(resource, "hosts/"):
		f.hostByName(w, r.Method, strings.TrimPrefix(resource, "hosts/"))
	case r.Method == http.MethodGet:
		f.list(w, resource, r.URL.Query().Get("search"))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// list mimics Foreman's fuzzy search: a non-empty term keeps items whose
// name contains it.
func (f *fakeForeman) list(w http.ResponseWriter, resource, search string) {
	items, ok := f.lists[resource]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		writeTestJSON(w, map[string]string{"error": "no such resource"})
		return
	}
	field := strings.TrimSuffix(resource, "s")
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if search != "" {
			inner, _ := item[field].(map[string]any)
			name, _ := inner["name"].(string)
			if !strings.Contains(name, search) {
				continue
			}
		}
		out = append(out, item)
	}
	writeTestJSON(w, out)
}

func (f *fakeForeman) searchHosts(w http.ResponseWriter, search string) {
	field, value, _ := strings.Cut(search, "=")
	out := make([]map[string]any, 0)
	for _, h := range f.sortedHosts() {
		if (field == "ip" && h.IP == value) || (field == "mac" && h.MAC == value) {
			out = append(out, map[string]any{"host": map[string]any{"id": h.ID, "name": h.Name}})
		}
	}
	writeTestJSON(w, out)
}

func (f *fakeForeman) createHost(w http.ResponseWriter, body []byte) {
	var req struct {
		Host map[string]any `json:"host"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Host == nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}
	f.nextID++
	h := fakeHost{
		ID:   f.nextID,
		Name: fmt.Sprint(req.Host["name"]),
		IP:   fmt.Sprint(req.Host["ip"]),
		MAC:  fmt.Sprint(req.Host["mac"]),
	}
	f.hosts[h.Name] = h
	w.WriteHeader(http.StatusCreated)
	writeTestJSON(w, map[string]any{"host": map[string]any{"id": h.ID, "name": h.Name}})
}

func (f *fakeForeman) hostByName(w http.ResponseWriter, method, name string) {
	h, ok := f.hosts[name]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		writeTestJSON(w, map[string]string{"message": "Resource host not found by id '" + name + "'"})
		return
	}
	switch method {
	case http.MethodGet:
		writeTestJSON(w, map[string]any{"host": map[string]any{"id": h.ID, "name": h.Name}})
	case http.MethodDelete:
		delete(f.hosts, name)
		writeTestJSON(w, map[string]any{"host": map[string]any{"id": h.ID, "name": h.Name}})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeForeman) sortedHosts() []fakeHost {
	out := make([]fakeHost, 0, len(f.hosts))
	for _, h := range f.hosts {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Requests returns a copy of everything the fake has seen.
func (f *fakeForeman) Requests() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

// Count returns how many requests matched method and path.
func (f *fakeForeman) Count(method, path string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Index returns the position of the first request matching method and path,
// or -1.
func (f *fakeForeman) Index(method, path string) int {
	for i, r := range f.Requests() {
		if r.Method == method && r.Path == path {
			return i
		}
	}
	return -1
}

func (f *fakeForeman) client(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(f.credentials(), DefaultClientConfig(), nil, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func (f *fakeForeman) credentials() Credentials {
	return Credentials{Server: f.URL(), Login: testLogin, Password: testPassword}
}

func writeTestJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// fakeFacts is an in-memory facts.Source that counts lookups.
type fakeFacts struct {
	mu     sync.Mutex
	values map[string]string
	calls  int
}

func newFakeFacts() *fakeFacts {
	return &fakeFacts{values: map[string]string{
		"architecture":           "x86_64",
		"operatingsystem":        "RedHat",
		"operatingsystemrelease": "9.3",
		"domain":                 "example.com",
		"fqdn":                   "web01.example.com",
		"ipaddress":              "10.0.0.5",
		"macaddress":             "AA:BB:CC:DD:EE:FF",
	}}
}

func (f *fakeFacts) Fact(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	v, ok := f.values[name]
	if !ok || v == "" {
		return "", &facts.UnavailableError{Name: name}
	}
	return v, nil
}

func (f *fakeFacts) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
