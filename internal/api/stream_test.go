package api_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/api"
	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/jobs"
)

func TestJobStreamBroadcast(t *testing.T) {
	hub := api.NewHub()
	hub.Start()

	h := api.NewHandler(&stubSplits{}, &stubStatus{}, &stubDownloads{}, &stubUpdates{}, &stubRecords{}, hub, api.Timeouts{})
	srv := httptest.NewServer(api.NewRouter(h))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/jobs/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// Give the hub a moment to register the client before broadcasting.
	time.Sleep(50 * time.Millisecond)

	hub.BroadcastEvent(jobs.JobEvent{
		Type:     "job_update",
		JobID:    "job-1",
		Status:   jobs.StatusProcessing,
		Progress: 50,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var ev jobs.JobEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if ev.JobID != "job-1" || ev.Progress != 50 {
		t.Errorf("event = %+v", ev)
	}
}
