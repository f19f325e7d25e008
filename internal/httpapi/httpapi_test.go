package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/taljindergill78/FSE570/internal/audit"
	"github.com/taljindergill78/FSE570/internal/pipeline"
	"github.com/taljindergill78/FSE570/internal/resolver"
	"github.com/taljindergill78/FSE570/internal/streaming"
)

// fakeRunner records two audit events around an optional gate.
type fakeRunner struct {
	gate  chan struct{}
	calls atomic.Int32
}

func (f *fakeRunner) RunWithObserver(ctx context.Context, query string, observe audit.Observer) *pipeline.Result {
	f.calls.Add(1)
	trail := audit.NewTrail(nil)
	trail.SetObserver(observe)
	trail.Record(audit.StepQueryReceived, map[string]any{"query": query})
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
		}
	}
	trail.Record(audit.StepPipelineCompleted, map[string]any{"entity_resolved": true})
	return &pipeline.Result{
		Query:         query,
		EntityID:      resolver.TeslaID,
		FindingsCount: 2,
		AuditEvents:   trail.Events(),
	}
}

func newTestServer(t *testing.T, runner Runner) (*httptest.Server, *InvestigationHandler) {
	t.Helper()
	h := NewInvestigationHandler(runner, resolver.DefaultRegistry(), streaming.NewManager(16), zaptest.NewLogger(t))
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	return srv, h
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestCreateInvestigationSync(t *testing.T) {
	runner := &fakeRunner{}
	srv, _ := newTestServer(t, runner)

	resp := postJSON(t, srv.URL+"/api/v1/investigations", `{"query":"Investigate Tesla for money laundering"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	id := resp.Header.Get("X-Investigation-ID")
	require.NotEmpty(t, id)

	res := decode[pipeline.Result](t, resp)
	assert.Equal(t, "Investigate Tesla for money laundering", res.Query)
	assert.Equal(t, 2, res.FindingsCount)
	assert.Len(t, res.AuditEvents, 2)

	got, err := http.Get(srv.URL + "/api/v1/investigations/" + id)
	require.NoError(t, err)
	status := decode[statusResponse](t, got)
	assert.Equal(t, statusCompleted, status.Status)
	require.NotNil(t, status.Result)
	assert.Equal(t, resolver.TeslaID, status.Result.EntityID)
}

func TestCreateInvestigationRejectsBadInput(t *testing.T) {
	runner := &fakeRunner{}
	srv, _ := newTestServer(t, runner)

	for _, body := range []string{`{"query":"   "}`, `{}`, `not json`} {
		resp := postJSON(t, srv.URL+"/api/v1/investigations", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		errBody := decode[map[string]string](t, resp)
		assert.NotEmpty(t, errBody["error"])
	}
	assert.Zero(t, runner.calls.Load())

	resp, err := http.Get(srv.URL + "/api/v1/investigations/does-not-exist")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/v1/investigations/does-not-exist/events")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAsyncInvestigationWithSSE(t *testing.T) {
	runner := &fakeRunner{gate: make(chan struct{})}
	srv, _ := newTestServer(t, runner)

	resp := postJSON(t, srv.URL+"/api/v1/investigations", `{"query":"Tesla","async":true}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	accepted := decode[statusResponse](t, resp)
	require.NotEmpty(t, accepted.InvestigationID)
	assert.Equal(t, statusRunning, accepted.Status)
	base := srv.URL + "/api/v1/investigations/" + accepted.InvestigationID

	running, err := http.Get(base)
	require.NoError(t, err)
	assert.Equal(t, statusRunning, decode[statusResponse](t, running).Status)

	stream, err := http.Get(base + "/events")
	require.NoError(t, err)
	defer stream.Body.Close()
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	close(runner.gate)

	var types []string
	scanner := bufio.NewScanner(stream.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		if typ, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			types = append(types, typ)
		}
	}
	assert.Equal(t, []string{audit.StepQueryReceived, audit.StepPipelineCompleted, streaming.TypeResult}, types)

	done, err := http.Get(base)
	require.NoError(t, err)
	status := decode[statusResponse](t, done)
	assert.Equal(t, statusCompleted, status.Status)
	assert.Equal(t, "Tesla", status.Result.Query)
}

func TestSSEReplayAfterCompletion(t *testing.T) {
	srv, h := newTestServer(t, &fakeRunner{})
	h.Start("inv-1", "Tesla")
	assert.Eventually(t, func() bool { return h.streams.Done("inv-1") }, time.Second, 5*time.Millisecond)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/investigations/inv-1/events?types=pipeline_completed", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var ids, types []string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if v, ok := strings.CutPrefix(line, "id: "); ok {
			ids = append(ids, v)
		}
		if v, ok := strings.CutPrefix(line, "event: "); ok {
			types = append(types, v)
		}
	}
	assert.Equal(t, []string{"2", "3"}, ids)
	assert.Equal(t, []string{audit.StepPipelineCompleted, streaming.TypeResult}, types)
}

func TestSSEForSyncInvestigation(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{})

	resp := postJSON(t, srv.URL+"/api/v1/investigations", `{"query":"Tesla"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := resp.Header.Get("X-Investigation-ID")
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/investigations/"+id+"/events", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()

	var types []string
	scanner := bufio.NewScanner(stream.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		if typ, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			types = append(types, typ)
		}
	}
	require.NoError(t, scanner.Err(), "stream ends on its own after the result")
	assert.Equal(t, []string{audit.StepQueryReceived, audit.StepPipelineCompleted, streaming.TypeResult}, types)
}

func TestFollowRecoversDroppedTerminalEvent(t *testing.T) {
	streams := streaming.NewManager(16)
	h := NewInvestigationHandler(&fakeRunner{}, resolver.DefaultRegistry(), streams, zaptest.NewLogger(t))
	streams.Publish("inv-slow", streaming.Event{Type: audit.StepQueryReceived})

	entered := make(chan struct{})
	release := make(chan struct{})
	tick := make(chan time.Time)
	var got []streaming.Event
	send := func(ev streaming.Event) error {
		if len(got) == 0 {
			close(entered)
			<-release
		}
		got = append(got, ev)
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.follow("inv-slow", streamOptions{}, nil, tick, send, func() error { return nil })
	}()

	<-entered
	// Overflow the subscriber buffer so the result is dropped live.
	for i := 0; i < subscriberBuffer+40; i++ {
		streams.Publish("inv-slow", streaming.Event{Type: audit.StepTasksPlanned})
	}
	final := streams.Publish("inv-slow", streaming.Event{Type: streaming.TypeResult})
	close(release)

	select {
	case tick <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatal("follow never waited for a tick")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("follow did not end after the result")
	}
	require.NotEmpty(t, got)
	assert.Equal(t, streaming.TypeResult, got[len(got)-1].Type)
	assert.Equal(t, final.Seq, got[len(got)-1].Seq)
}

func TestQueryWebsocket(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{})
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/investigations/ws?query=Tesla"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var events []streaming.Event
	for {
		var ev streaming.Event
		if err := conn.ReadJSON(&ev); err != nil {
			break
		}
		events = append(events, ev)
		if ev.Type == streaming.TypeResult {
			break
		}
	}
	require.Len(t, events, 3)
	assert.Equal(t, audit.StepQueryReceived, events[0].Type)
	assert.Equal(t, uint64(1), events[0].Seq)

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(events[2].Data, &res))
	assert.Equal(t, "Tesla", res.Query)

	resp, err := http.Get(srv.URL + "/api/v1/investigations/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInvestigationWebsocketByID(t *testing.T) {
	srv, h := newTestServer(t, &fakeRunner{})
	h.Start("inv-ws", "Tesla")
	assert.Eventually(t, func() bool { return h.streams.Done("inv-ws") }, time.Second, 5*time.Millisecond)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/investigations/inv-ws/ws?types=result"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ev streaming.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, streaming.TypeResult, ev.Type)
	assert.Equal(t, "inv-ws", ev.InvestigationID)
}

func TestListEntities(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{})
	resp, err := http.Get(srv.URL + "/api/v1/entities")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[struct {
		Count    int `json:"count"`
		Entities []struct {
			ID string `json:"entity_id"`
		} `json:"entities"`
	}](t, resp)
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, resolver.TeslaID, body.Entities[0].ID)
}

func TestShutdownCancelsBackgroundRuns(t *testing.T) {
	runner := &fakeRunner{gate: make(chan struct{})}
	h := NewInvestigationHandler(runner, resolver.DefaultRegistry(), nil, zaptest.NewLogger(t))
	h.Start("inv-slow", "Tesla")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(ctx))
	assert.True(t, h.streams.Done("inv-slow"))
}
