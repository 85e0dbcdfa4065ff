package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRunWorstStatusWins(t *testing.T) {
	tests := []struct {
		name     string
		storage  error
		cache    error
		want     Status
		wantCode int
	}{
		{"all up", nil, nil, StatusUp, http.StatusOK},
		{"optional dependency down", nil, errors.New("redis gone"), StatusDegraded, http.StatusOK},
		{"critical dependency down", errors.New("db gone"), nil, StatusDown, http.StatusServiceUnavailable},
		{"both down", errors.New("db gone"), errors.New("redis gone"), StatusDown, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			c.RegisterPing("storage", true, func(context.Context) error { return tt.storage })
			c.RegisterPing("frequent_queries", false, func(context.Context) error { return tt.cache })

			report := c.Run(context.Background())
			if report.Status != tt.want {
				t.Errorf("status = %s, want %s", report.Status, tt.want)
			}
			if len(report.Components) != 2 {
				t.Errorf("components = %v", report.Components)
			}

			rec := httptest.NewRecorder()
			c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rec.Code != tt.wantCode {
				t.Errorf("ready code = %d, want %d", rec.Code, tt.wantCode)
			}
			var decoded Report
			if err := json.NewDecoder(rec.Body).Decode(&decoded); err != nil {
				t.Fatal(err)
			}
			if decoded.Status != tt.want {
				t.Errorf("served status = %s", decoded.Status)
			}
		})
	}
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("live code = %d", rec.Code)
	}
}
