package foreman

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testRecord() HostRecord {
	return HostRecord{
		Name:         "web01.example.com",
		IP:           "10.0.0.5",
		MAC:          "aa:bb:cc:dd:ee:ff",
		AttributeIDs: map[string]int{"hostgroup": 3},
	}
}

func TestHostExists(t *testing.T) {
	f := newFakeForeman(t, withHost(fakeHost{ID: 1, Name: "X", IP: "10.0.0.1", MAC: "00:00:00:00:00:01"}))
	g := NewDuplicateGuard(f.client(t), zaptest.NewLogger(t))

	exists, err := g.HostExists(context.Background(), "Y")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = g.HostExists(context.Background(), "X")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestHostExists_OtherErrorsPropagate(t *testing.T) {
	f := newFakeForeman(t, withStatus("GET /hosts/X", http.StatusForbidden))
	g := NewDuplicateGuard(f.client(t), nil)

	_, err := g.HostExists(context.Background(), "X")
	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusForbidden, he.StatusCode)
}

func TestCheck_NoConflicts(t *testing.T) {
	f := newFakeForeman(t)
	g := NewDuplicateGuard(f.client(t), nil)

	require.NoError(t, g.Check(context.Background(), testRecord()))
	assert.Equal(t, 0, f.Count(http.MethodDelete, "/hosts/web01.example.com"))

	var searches []string
	for _, r := range f.Requests() {
		if r.Path == "/hosts" {
			searches = append(searches, r.Search)
		}
	}
	assert.Equal(t, []string{"ip=10.0.0.5", "mac=aa:bb:cc:dd:ee:ff"}, searches)
}

func TestCheck_DeletesSameNameHost(t *testing.T) {
	f := newFakeForeman(t, withHost(fakeHost{ID: 9, Name: "web01.example.com", IP: "10.0.0.5", MAC: "aa:bb:cc:dd:ee:ff"}))
	g := NewDuplicateGuard(f.client(t), zaptest.NewLogger(t))

	// The stale record holds the same IP and MAC; deleting it first means it
	// never counts as a conflict.
	require.NoError(t, g.Check(context.Background(), testRecord()))

	del := f.Index(http.MethodDelete, "/hosts/web01.example.com")
	search := f.Index(http.MethodGet, "/hosts")
	require.GreaterOrEqual(t, del, 0, "expected DELETE of the stale host")
	assert.Less(t, del, search, "delete must happen before the ip/mac search")
}

func TestCheck_IPConflict(t *testing.T) {
	f := newFakeForeman(t, withHost(fakeHost{ID: 9, Name: "other.example.com", IP: "10.0.0.5", MAC: "00:11:22:33:44:55"}))
	g := NewDuplicateGuard(f.client(t), nil)

	err := g.Check(context.Background(), testRecord())
	var de *DuplicateResourceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "ip", de.Field)
	assert.Equal(t, "10.0.0.5", de.Value)
	assert.Equal(t, []string{"other.example.com"}, de.Conflicts)
	assert.True(t, IsDuplicate(err))
}

func TestCheck_MACConflict(t *testing.T) {
	f := newFakeForeman(t, withHost(fakeHost{ID: 9, Name: "other.example.com", IP: "10.0.0.99", MAC: "aa:bb:cc:dd:ee:ff"}))
	g := NewDuplicateGuard(f.client(t), nil)

	err := g.Check(context.Background(), testRecord())
	var de *DuplicateResourceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "mac", de.Field)
}

func TestCheck_InvalidHostname(t *testing.T) {
	for _, name := range []string{"", "   ", "\t\n"} {
		f := newFakeForeman(t)
		g := NewDuplicateGuard(f.client(t), nil)

		rec := testRecord()
		rec.Name = name
		err := g.Check(context.Background(), rec)
		assert.True(t, errors.Is(err, ErrInvalidHostname), "name %q", name)
		assert.Empty(t, f.Requests())
	}
}

func TestCheck_DeleteFailureAborts(t *testing.T) {
	f := newFakeForeman(t,
		withHost(fakeHost{ID: 9, Name: "web01.example.com"}),
		withStatus("DELETE /hosts/web01.example.com", http.StatusForbidden),
	)
	g := NewDuplicateGuard(f.client(t), nil)

	err := g.Check(context.Background(), testRecord())
	require.Error(t, err)
	assert.Equal(t, 0, f.Count(http.MethodGet, "/hosts"))
}
