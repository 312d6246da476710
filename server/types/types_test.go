package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestConnectRequestJSON(t *testing.T) {
	input := `{
		"account": "myorg-myacct",
		"user": "analyst",
		"password": "secret",
		"warehouse": "COMPUTE_WH",
		"database": "ANALYTICS"
	}`

	var req ConnectRequest
	if err := json.Unmarshal([]byte(input), &req); err != nil {
		t.Fatalf("Failed to unmarshal ConnectRequest: %v", err)
	}

	if req.User != "analyst" {
		t.Errorf("Expected User=analyst, got %s", req.User)
	}
	if req.Warehouse != "COMPUTE_WH" {
		t.Errorf("Expected Warehouse=COMPUTE_WH, got %s", req.Warehouse)
	}
}

func TestExecuteResponseWireNames(t *testing.T) {
	resp := ExecuteResponse{
		QueryID:         "q-1",
		Status:          "SUCCESS",
		ExecutionTimeMS: 42,
		RowCount:        3,
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to marshal ExecuteResponse: %v", err)
	}

	body := string(data)
	for _, field := range []string{`"query_id"`, `"status"`, `"execution_time_ms"`, `"row_count"`} {
		if !strings.Contains(body, field) {
			t.Errorf("Expected field %s in %s", field, body)
		}
	}
}

func TestSessionStatusSchemaFieldName(t *testing.T) {
	data, err := json.Marshal(SessionStatusResponse{Valid: true, Schema: "PUBLIC"})
	if err != nil {
		t.Fatalf("Failed to marshal SessionStatusResponse: %v", err)
	}
	if !strings.Contains(string(data), `"schema_name":"PUBLIC"`) {
		t.Errorf("Expected schema_name field, got %s", data)
	}
}

func TestHealthResponseWireNames(t *testing.T) {
	data, err := json.Marshal(HealthResponse{Status: "ok", ServerInstanceID: "i-1", StartedAt: "2026-01-01T00:00:00Z"})
	if err != nil {
		t.Fatalf("Failed to marshal HealthResponse: %v", err)
	}
	body := string(data)
	if !strings.Contains(body, `"serverInstanceId"`) || !strings.Contains(body, `"startedAt"`) {
		t.Errorf("Expected camelCase health fields, got %s", body)
	}
}
