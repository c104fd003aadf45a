package cwlog_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/advdv/reqlog"
	"github.com/advdv/reqlog/cwlog"
	"github.com/advdv/reqlog/cwlog/cwlogtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestApp_RequestLogging(t *testing.T) {
	setTestEnv(t, 18181).
		Fields("field_ssn,field_dob,body").
		AccountHeaders("X-User-Id", "X-User-Name")

	sink := &reqlog.MemorySink{}
	var rt *cwlog.Runtime[TestEnv]

	app := cwlogtest.New[TestEnv](t, routing,
		cwlog.WithSink(sink),
		cwlog.WithFx(fx.Provide(NewHandlers), fx.Populate(&rt)),
	)
	app.RequireStart()
	t.Cleanup(app.RequireStop)

	baseURL := "http://127.0.0.1:18181"
	client := &http.Client{Timeout: 5 * time.Second}
	ctx := context.Background()

	t.Run("Main_Request_Logged_Once", func(t *testing.T) {
		resp, err := doGet(ctx, client, baseURL+"/nodes/1?page=2",
			"X-User-Id", "7",
			"X-User-Name", "alice",
			"Cookie", "SESS=abc123",
			"Referer", "https://example.com/",
			"User-Agent", "test-agent")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "example: teaser 1", string(body))

		require.NoError(t, rt.Flush(ctx))

		recs := requestRecords(sink)
		require.Len(t, recs, 1)
		assert.Equal(t,
			"GET /nodes/1?page=2 | User: 7 (alice) | IP: 127.0.0.1 | Referer: https://example.com/ | UA: test-agent",
			recs[0].Format())
		assert.Equal(t, "abc123", recs[0].Extra["session_id"])
		assert.Contains(t, recs[0].Extra, "trace_id")

		var viewed, teasers int
		for _, rec := range sink.Records() {
			switch rec.Message {
			case "viewing node @id":
				viewed++
				assert.Equal(t, "abc123", rec.Extra["session_id"])
			case "rendering teaser @id":
				teasers++
			}
		}
		assert.Equal(t, 1, viewed)
		assert.Equal(t, 1, teasers)

		for _, d := range sink.Deliveries() {
			assert.Equal(t, "/app/test", d.LogGroup)
			assert.Equal(t, "test", d.LogStream)
		}
	})

	t.Run("Anonymous_Without_Session", func(t *testing.T) {
		before := len(requestRecords(sink))

		resp, err := doGet(ctx, client, baseURL+"/nodes/2")
		require.NoError(t, err)
		resp.Body.Close()
		require.NoError(t, rt.Flush(ctx))

		recs := requestRecords(sink)[before:]
		require.Len(t, recs, 1)
		assert.Equal(t, "GET /nodes/2 | User: 0 () | IP: 127.0.0.1 | Referer: none | UA: Go-http-client/1.1",
			recs[0].Format())
		assert.NotContains(t, recs[0].Extra, "session_id")
	})

	t.Run("Health_Not_Logged", func(t *testing.T) {
		before := len(requestRecords(sink))

		resp, err := doGet(ctx, client, baseURL+"/health")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		require.NoError(t, rt.Flush(ctx))
		assert.Len(t, requestRecords(sink), before)
	})

	t.Run("Sensitive_Fields_From_Environment", func(t *testing.T) {
		fields, err := rt.SensitiveFields(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"field_ssn", "field_dob", "body"}, fields)

		resp, err := doGet(ctx, client, baseURL+cwlog.FieldAutocompletePath+"?q=FIELD")
		require.NoError(t, err)
		defer resp.Body.Close()

		var got []map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, []map[string]string{
			{"value": "field_ssn", "label": "field_ssn"},
			{"value": "field_dob", "label": "field_dob"},
		}, got)
	})

	t.Run("Runtime", func(t *testing.T) {
		assert.Equal(t, "example", rt.Env().SiteName)
		assert.Equal(t, "/app/test", rt.LogGroup())
	})
}

func TestApp_FlushesOnStop(t *testing.T) {
	setTestEnv(t, 18182)

	sink := &reqlog.MemorySink{}
	app := cwlogtest.New[TestEnv](t, routing,
		cwlog.WithSink(sink),
		cwlog.WithFx(fx.Provide(NewHandlers)),
	)
	app.RequireStart()

	resp, err := doGet(context.Background(), &http.Client{Timeout: 5 * time.Second}, "http://127.0.0.1:18182/nodes/9")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, sink.Deliveries())
	app.RequireStop()

	recs := requestRecords(sink)
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0].Format(), "GET /nodes/9")
}

func TestApp_LogGroupFromEnvironment(t *testing.T) {
	setTestEnv(t, 18183).LogGroup("").AppEnv("live")

	var rt *cwlog.Runtime[TestEnv]
	app := cwlogtest.New[TestEnv](t, routing,
		cwlog.WithSink(&reqlog.MemorySink{}),
		cwlog.WithFx(fx.Provide(NewHandlers), fx.Populate(&rt)),
	)
	app.RequireStart()
	t.Cleanup(app.RequireStop)

	assert.Equal(t, "/app/live", rt.LogGroup())
}

func TestApp_StartFailsWhenPortTaken(t *testing.T) {
	setTestEnv(t, 18184)

	ln, err := net.Listen("tcp", ":18184")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	app := fx.New(cwlog.FxOptions[TestEnv](routing,
		cwlog.WithSink(&reqlog.MemorySink{}),
		cwlog.WithFx(fx.Provide(NewHandlers)),
	)...)
	require.NoError(t, app.Err())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.ErrorContains(t, app.Start(ctx), "failed to listen on :18184")
}
