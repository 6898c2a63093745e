package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"vaultsphere/internal/dataset"
	"vaultsphere/internal/detection"
)

var t0 = time.Date(2025, 4, 10, 14, 0, 0, 0, time.UTC)

func fullReport() *detection.Report {
	return &detection.Report{
		Source: "vaultsphere_food.csv",
		Events: 1200,
		Bursts: []detection.Burst{{
			UserID: "T01U004", TenantID: 1, Start: t0, End: t0.Add(6 * time.Minute),
			WindowEnd: t0.Add(time.Hour), FailureCount: 10, WindowCount: 14,
			IPs: []string{"185.220.1.7"},
		}},
		UnusualMix: []detection.UnusualMix{{
			UserID: "T01U011", TenantID: 1, EventType: "DELETE",
			Count: 9, TotalEvents: 60, Percentage: 15, Severity: detection.SeverityHigh,
		}},
		IPPatterns: []detection.IPPattern{{
			UserID: "T01U020", TenantID: 1, TotalEvents: 80, UniqueIPs: 9,
			PrimaryIPs: []string{"10.0.0.5"}, Occasional: 3,
			OccasionalIP: []detection.Count{{Key: "203.0.113.9", Count: 2}},
		}},
		OffHours: []detection.OffHoursActivity{{
			UserID: "T01U030", TenantID: 1, Count: 12, TotalEvents: 40, Percentage: 30,
			EventTypes: []detection.Count{{Key: "LOGIN", Count: 8}},
			PeakHours:  []detection.HourCount{{Hour: 2, Count: 5}},
		}},
		Risk:        detection.Risk{TotalAnomalies: 4, TotalEvents: 1200, Level: detection.RiskLow, AnomalyRate: 4.0 / 1200},
		Evaluation:  &detection.Evaluation{InjectedEvents: 50, InjectedUsers: 5, DetectedUsers: 4, Recall: 0.8},
		GeneratedAt: t0,
	}
}

func TestWriteTextContainsEverySection(t *testing.T) {
	doc := New(fullReport(), nil, nil)

	var buf bytes.Buffer
	if err := WriteText(&buf, doc); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"vaultsphere_food.csv",
		"Failed Login Bursts (1)",
		"Unusual Event Types (1)",
		"T01U004",
		"T01U011",
		"T01U020",
		"T01U030",
		"203.0.113.9",
		"02:00 x5",
		"Risk Assessment",
		"LOW",
		"Recommendations",
		"Implement stronger rate limiting for login attempts",
		"Label Evaluation",
		"Tenant-Specific Activity",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if strings.Contains(out, noneDetected) {
		t.Error("report with findings should not say none detected")
	}
}

func TestWriteTextNoneDetected(t *testing.T) {
	r := &detection.Report{Events: 10, Risk: detection.Risk{TotalEvents: 10, Level: detection.RiskLow}}
	doc := New(r, nil, nil)

	var buf bytes.Buffer
	if err := WriteText(&buf, doc); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	out := buf.String()

	if got := strings.Count(out, noneDetected); got != 4 {
		t.Errorf("none detected appears %d times, want 4", got)
	}
	if !strings.Contains(out, "No action needed") {
		t.Error("empty report should say no action is needed")
	}
	if strings.Contains(out, "Label Evaluation") {
		t.Error("unlabelled report should not show an evaluation")
	}
}

func TestSummaryProfile(t *testing.T) {
	profile := &dataset.Profile{
		Events: 3, Users: 2, UniqueIPs: 2,
		First: t0, Last: t0.Add(48 * time.Hour), SuccessRate: 2.0 / 3,
		EventTypes: []dataset.Count{{Key: "LOGIN", Count: 3}},
		RiskyIPs:   []dataset.IPFailure{{IP: "198.51.100.4", Events: 4, Failures: 3, FailureRate: 0.75}},
	}
	rejected := []*dataset.MalformedRecordError{{Line: 5, Field: "status", Value: "FAIL", Err: errors.New("bad status")}}
	doc := New(&detection.Report{Events: 3, Malformed: 1}, profile, rejected)

	out := Summary(doc)
	for _, want := range []string{"2025-04-10 to 2025-04-12", "66.7%", "LOGIN 3", "198.51.100.4", "line 5"} {
		if !strings.Contains(out, want) {
			t.Errorf("Summary() missing %q", want)
		}
	}
}

func watchProfile() *dataset.Profile {
	return &dataset.Profile{
		Events: 40, Users: 4,
		Complaints: []dataset.TenantWatch{{
			TenantID: 1, Tenant: "Food Delivery", EventType: "COMPLAINT",
			Total: 19, Users: 3, Threshold: 8, Flagged: 2,
			Top: []dataset.Count{{Key: "T01U001", Count: 9}, {Key: "T01U002", Count: 8}},
		}},
		AdminActions: []dataset.TenantWatch{{
			TenantID: 2, Tenant: "IT Services", EventType: "ADMIN_ACTION",
			Total: 5, Users: 2, Threshold: 3, Flagged: 1,
			Top: []dataset.Count{{Key: "T02U007", Count: 4}},
		}},
	}
}

func TestTenantActivity(t *testing.T) {
	out := TenantActivity(watchProfile())
	for _, want := range []string{
		"Complaints", "Food Delivery", "19 COMPLAINT from 3 users", "2 with 8+", "T01U001", "9 complaints",
		"Admin actions", "IT Services", "1 with 3+", "T02U007", "4 admin actions",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("TenantActivity() missing %q:\n%s", want, out)
		}
	}

	if out := TenantActivity(nil); !strings.Contains(out, "cached report") {
		t.Errorf("TenantActivity(nil) = %q", out)
	}
	if out := TenantActivity(&dataset.Profile{Events: 3}); !strings.Contains(out, "no complaint or admin-action events") {
		t.Errorf("TenantActivity(empty) = %q", out)
	}
}

func TestWriteJSONTenantWatches(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, New(fullReport(), watchProfile(), nil)); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	var decoded struct {
		Profile struct {
			Complaints []struct {
				Tenant  string `json:"tenant"`
				Flagged int    `json:"flagged"`
			} `json:"complaints"`
			AdminActions []struct {
				Top []struct {
					Key   string `json:"key"`
					Count int    `json:"count"`
				} `json:"top"`
			} `json:"admin_actions"`
		} `json:"profile"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if c := decoded.Profile.Complaints; len(c) != 1 || c[0].Tenant != "Food Delivery" || c[0].Flagged != 2 {
		t.Errorf("complaints = %+v", c)
	}
	if a := decoded.Profile.AdminActions; len(a) != 1 || a[0].Top[0].Key != "T02U007" {
		t.Errorf("admin_actions = %+v", a)
	}
}

func TestNewCapsRejected(t *testing.T) {
	var rejected []*dataset.MalformedRecordError
	for i := 1; i <= 25; i++ {
		rejected = append(rejected, &dataset.MalformedRecordError{Line: i, Err: dataset.ErrFieldCount})
	}
	doc := New(&detection.Report{}, nil, rejected)

	if len(doc.Rejected) != maxRejected+1 {
		t.Fatalf("len(Rejected) = %d, want %d", len(doc.Rejected), maxRejected+1)
	}
	if last := doc.Rejected[maxRejected]; last != "... and 15 more" {
		t.Errorf("last entry = %q, want ... and 15 more", last)
	}
}

func TestWriteJSON(t *testing.T) {
	doc := New(fullReport(), nil, nil)

	var buf bytes.Buffer
	if err := WriteJSON(&buf, doc); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	var decoded struct {
		Report struct {
			Source string `json:"source"`
			Bursts []struct {
				UserID       string `json:"user_id"`
				FailureCount int    `json:"failure_count"`
			} `json:"failed_login_bursts"`
			Risk struct {
				Level string `json:"level"`
			} `json:"risk"`
		} `json:"report"`
		Recommendations []string `json:"recommendations"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Report.Source != "vaultsphere_food.csv" {
		t.Errorf("source = %q", decoded.Report.Source)
	}
	if len(decoded.Report.Bursts) != 1 || decoded.Report.Bursts[0].FailureCount != 10 {
		t.Errorf("bursts = %+v", decoded.Report.Bursts)
	}
	if decoded.Report.Risk.Level != "LOW" {
		t.Errorf("risk level = %q, want LOW", decoded.Report.Risk.Level)
	}
	if len(decoded.Recommendations) != 8 {
		t.Errorf("len(recommendations) = %d, want 8", len(decoded.Recommendations))
	}
}

func TestWriteJSONEmptyRecommendations(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, New(&detection.Report{}, nil, nil)); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"recommendations": []`) {
		t.Errorf("empty recommendations should encode as [], got %s", buf.String())
	}
}
