package network

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func TestHealthReportsSessionsAndDevice(t *testing.T) {
	server, store, _ := startTestServer(t)

	health := getHealth(t, server)
	if health.Status != "ok" || health.Sessions != 0 || health.Device != "" {
		t.Fatalf("unexpected idle health: %+v", health)
	}

	conn := dialServer(t, server)
	sendText(t, conn, `{"type":"device","data":{"name":"Pixel","ipAddress":"10.0.0.2","port":6996}}`)
	waitForCondition(t, 2*time.Second, func() bool { return store.Device() != nil })

	health = getHealth(t, server)
	if health.Sessions != 1 || health.Device != "Pixel" {
		t.Fatalf("unexpected connected health: %+v", health)
	}
}

func TestHealthRejectsOtherMethods(t *testing.T) {
	server, _, _ := startTestServer(t)

	resp, err := http.Post("http://"+server.Addr().String()+"/health", "application/json", nil)
	if err != nil {
		t.Fatalf("post health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatalf("expected POST /health to be rejected")
	}
}

func getHealth(t *testing.T, server *Server) HealthResponse {
	t.Helper()
	resp, err := http.Get("http://" + server.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	return health
}
