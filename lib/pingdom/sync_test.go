package pingdom

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"tap-pingdom/lib/emit"
	"tap-pingdom/lib/pagination"
	"tap-pingdom/lib/statestore"
	"tap-pingdom/lib/telemetry"

	"github.com/stretchr/testify/require"
)

type requestLog struct {
	mu   sync.Mutex
	seen []seenRequest
}

type seenRequest struct {
	path  string
	query url.Values
	auth  string
	agent string
}

func (l *requestLog) record(r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = append(l.seen, seenRequest{
		path:  r.URL.Path,
		query: r.URL.Query(),
		auth:  r.Header.Get("Authorization"),
		agent: r.Header.Get("User-Agent"),
	})
}

func (l *requestLog) forPath(path string) []seenRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []seenRequest
	for _, r := range l.seen {
		if r.path == path {
			out = append(out, r)
		}
	}
	return out
}

func newFakePingdom(t *testing.T) (*httptest.Server, *requestLog) {
	log := &requestLog{}
	mux := http.NewServeMux()

	handle := func(path, body string) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			log.record(r)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, body)
		})
	}

	handle("/checks", `{"checks": [
		{"id": 1, "name": "homepage", "status": "up"},
		{"id": 2, "name": "api", "status": "down"}
	]}`)
	handle("/results/1", `{"results": [
		{"time": 100, "status": "up", "probeid": 33, "responsetime": 120},
		{"time": 200, "status": "up", "probeid": 34, "responsetime": 95}
	]}`)
	handle("/results/2", `{"results": []}`)
	handle("/actions", `{"actions": {"alerts": [
		{"checkid": 1, "time": 1000, "userid": 7, "via": "email"},
		{"checkid": 2, "time": 1100, "userid": 7, "via": "sms"}
	]}}`)
	handle("/alerting/contacts", `{"contacts": [
		{"id": 9, "name": "ops", "notification_targets": {"email": [{"address": "ops@example.com"}]}}
	]}`)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, log
}

func TestSyncEndToEnd(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:pingdom")
	defer cleanup()

	server, log := newFakePingdom(t)

	cfg := Config{
		Token:     "test-token",
		BaseURL:   server.URL,
		StartDate: "1970-01-01T00:10:00Z", // unix 600
	}
	store, err := statestore.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	collector := emit.NewCollector()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	err = Sync(ctx, SyncOptions{
		Client:  NewClient(cfg),
		Config:  cfg,
		Emitter: collector,
		State:   store,
	})
	require.NoError(t, err)

	// every stream in the default set produced a schema and records
	require.Len(t, collector.Records["checks"], 2)
	require.Len(t, collector.Records["actions"], 2)
	require.Len(t, collector.Records["contacts"], 1)
	require.Contains(t, collector.Schemas, "results")

	// results were fetched per parent check, with checkid injected
	// from the parent context
	require.Len(t, collector.Records["results"], 2)
	for _, r := range collector.Records["results"] {
		require.Equal(t, float64(1), r["checkid"])
	}
	require.Len(t, log.forPath("/results/1"), 1)
	require.Len(t, log.forPath("/results/2"), 1)

	// transport contract: bearer token, identifying user agent
	first := log.forPath("/checks")[0]
	require.Equal(t, "Bearer test-token", first.auth)
	require.Equal(t, fmt.Sprintf("tap-pingdom/%s", Version), first.agent)
	require.Equal(t, "25000", first.query.Get("limit"))
	require.Equal(t, "true", first.query.Get("include_tags"))

	// incremental streams carry the start_date-derived from filter
	actions := log.forPath("/actions")[0]
	require.Equal(t, "600", actions.query.Get("from"))
	require.Equal(t, "100", actions.query.Get("limit"))

	// bookmarks advanced to the max replication-key value seen; the
	// results bookmark belongs to check 1's partition, and check 2,
	// which returned nothing, has none
	value, ok, err := store.Bookmark(ctx, "actions", "")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1100, value)

	value, _, err = store.Bookmark(ctx, "results", "checkid=1")
	require.NoError(t, err)
	require.EqualValues(t, 200, value)

	_, ok, err = store.Bookmark(ctx, "results", "checkid=2")
	require.NoError(t, err)
	require.False(t, ok)

	require.NotEmpty(t, collector.States)
	last := collector.States[len(collector.States)-1]
	bookmarks := last["bookmarks"].(map[string]any)
	require.Contains(t, bookmarks, "actions")

	// a second run resumes from the stored bookmark instead of
	// start_date
	err = Sync(ctx, SyncOptions{
		Client:  NewClient(cfg),
		Config:  cfg,
		Emitter: emit.NewCollector(),
		State:   store,
	})
	require.NoError(t, err)

	actionsAgain := log.forPath("/actions")[1]
	require.Equal(t, "1100", actionsAgain.query.Get("from"))
}

func TestResumeKeepsResultPartitionsIndependent(t *testing.T) {
	server, log := newFakePingdom(t)

	cfg := Config{
		Token:     "test-token",
		BaseURL:   server.URL,
		StartDate: "1970-01-01T00:00:10Z", // unix 10
	}
	store, err := statestore.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	run := func() {
		err := Sync(ctx, SyncOptions{
			Client:  NewClient(cfg),
			Config:  cfg,
			Emitter: emit.NewCollector(),
			State:   store,
			Streams: []*Stream{Checks},
		})
		require.NoError(t, err)
	}
	run()
	run()

	// check 1's partition resumes from its own bookmark, while check
	// 2, which has produced no results yet, still asks from start_date
	// so its late-arriving history is not skipped
	one := log.forPath("/results/1")
	require.Len(t, one, 2)
	require.Equal(t, "10", one[0].query.Get("from"))
	require.Equal(t, "200", one[1].query.Get("from"))

	two := log.forPath("/results/2")
	require.Len(t, two, 2)
	require.Equal(t, "10", two[0].query.Get("from"))
	require.Equal(t, "10", two[1].query.Get("from"))
}

func TestSyncPaginatesWithOffsets(t *testing.T) {
	log := &requestLog{}
	pages := map[string]string{
		"":  `{"events": [{"id": 1}, {"id": 2}]}`,
		"2": `{"events": [{"id": 3}, {"id": 4}]}`,
		"4": `{"events": [{"id": 5}]}`,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		log.record(r)
		fmt.Fprint(w, pages[r.URL.Query().Get("offset")])
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	events := &Stream{
		Name:        "events",
		Path:        "/events",
		PrimaryKeys: []string{"id"},
		RecordPath:  "events",
		PageSize:    2,
		Schema: staticSchema(objectSchema(map[string]any{
			"id": property("integer", ""),
		}, "id")),
	}

	cfg := Config{Token: "t", BaseURL: server.URL}
	collector := emit.NewCollector()
	err := Sync(context.Background(), SyncOptions{
		Client:  NewClient(cfg),
		Config:  cfg,
		Emitter: collector,
		Streams: []*Stream{events},
	})
	require.NoError(t, err)

	require.Len(t, collector.Records["events"], 5)

	seen := log.forPath("/events")
	require.Len(t, seen, 3)
	require.Equal(t, "", seen[0].query.Get("offset"))
	require.Equal(t, "2", seen[1].query.Get("offset"))
	require.Equal(t, "4", seen[2].query.Get("offset"))
}

func TestSyncSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	cfg := Config{Token: "bad", BaseURL: server.URL}
	err := Sync(context.Background(), SyncOptions{
		Client:  NewClient(cfg),
		Config:  cfg,
		Emitter: emit.NewCollector(),
		Streams: []*Stream{Contacts},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "contacts")
	require.Contains(t, err.Error(), "401")
}

func TestSyncSurfacesMalformedBodies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>maintenance page</html>")
	}))
	defer server.Close()

	cfg := Config{Token: "t", BaseURL: server.URL}
	err := Sync(context.Background(), SyncOptions{
		Client:  NewClient(cfg),
		Config:  cfg,
		Emitter: emit.NewCollector(),
		Streams: []*Stream{Contacts},
	})
	require.ErrorIs(t, err, pagination.ErrMalformedResponse)
}

func TestSyncRejectsChildStreamAtTopLevel(t *testing.T) {
	cfg := Config{Token: "t"}
	err := Sync(context.Background(), SyncOptions{
		Client:  NewClient(cfg),
		Config:  cfg,
		Emitter: emit.NewCollector(),
		Streams: []*Stream{Results},
	})
	require.Error(t, err)
}
