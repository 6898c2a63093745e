package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"vaultsphere/internal/dataset"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("VS_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	for _, k := range []string{"VS_STORAGE_ENABLED", "VS_ARCHIVE_ENABLED", "VS_SEED", "VS_OUTPUT_DIR", "VS_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestRunWritesTenantFiles(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"-out", dir, "-seed", "7", "-combined", "all.csv"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}

	total := 0
	for _, name := range []string{"vaultsphere_food.csv", "vaultsphere_it.csv"} {
		res, err := dataset.ReadFile(filepath.Join(dir, name), dataset.ReadOptions{})
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", name, err)
		}
		if len(res.Events) == 0 || len(res.Malformed) != 0 {
			t.Errorf("%s: %d events, %d malformed", name, len(res.Events), len(res.Malformed))
		}
		total += len(res.Events)
	}

	res, err := dataset.ReadFile(filepath.Join(dir, "all.csv"), dataset.ReadOptions{})
	if err != nil {
		t.Fatalf("ReadFile(all.csv) error = %v", err)
	}
	if len(res.Events) != total {
		t.Errorf("combined file has %d events, want %d", len(res.Events), total)
	}
	for _, want := range []string{"Food Delivery", "combined:"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("stdout missing %q", want)
		}
	}
}

func TestRunSeedIsReproducible(t *testing.T) {
	isolate(t)
	read := func() []byte {
		dir := t.TempDir()
		var stdout, stderr bytes.Buffer
		if code := run(context.Background(), []string{"-out", dir, "-seed", "42", "-tenants", "it"}, &stdout, &stderr); code != 0 {
			t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
		}
		if _, err := os.Stat(filepath.Join(dir, "vaultsphere_food.csv")); !os.IsNotExist(err) {
			t.Error("food tenant should not be generated")
		}
		res, err := dataset.ReadFile(filepath.Join(dir, "vaultsphere_it.csv"), dataset.ReadOptions{})
		if err != nil {
			t.Fatal(err)
		}
		var buf bytes.Buffer
		if err := dataset.Write(&buf, res.Events); err != nil {
			t.Fatal(err)
		}
		return buf.Bytes()
	}

	first, second := read(), read()
	if len(first) == 0 {
		t.Fatal("empty dataset")
	}
	if len(first) != len(second) {
		t.Errorf("same seed produced datasets of %d and %d bytes", len(first), len(second))
	}
}

func TestRunGzip(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer

	if code := run(context.Background(), []string{"-out", dir, "-seed", "3", "-tenants", "food", "-gzip"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}
	if _, err := dataset.ReadFile(filepath.Join(dir, "vaultsphere_food.csv.gz"), dataset.ReadOptions{}); err != nil {
		t.Errorf("ReadFile() error = %v", err)
	}
}

func TestRunUnknownTenant(t *testing.T) {
	isolate(t)
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-out", t.TempDir(), "-tenants", "retail"}, &stdout, &stderr); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestRunCheck(t *testing.T) {
	isolate(t)

	t.Run("passes", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out")
		var stdout, stderr bytes.Buffer
		if code := run(context.Background(), []string{"-check", "-out", dir}, &stdout, &stderr); code != 0 {
			t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
		}
		if !strings.Contains(stderr.String(), "diagnostics summary") {
			t.Errorf("stderr missing summary: %s", stderr.String())
		}
		if _, err := os.Stat(filepath.Join(dir, "vaultsphere_food.csv")); !os.IsNotExist(err) {
			t.Error("-check should not generate datasets")
		}
	})

	t.Run("unknown tenant fails", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if code := run(context.Background(), []string{"-check", "-out", t.TempDir(), "-tenants", "retail"}, &stdout, &stderr); code != 1 {
			t.Errorf("exit code = %d, want 1", code)
		}
	})
}

func TestRunSummaryLines(t *testing.T) {
	isolate(t)
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-out", t.TempDir(), "-seed", "7", "-tenants", "food"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}
	line := regexp.MustCompile(`(?m)^  failed_login_burst\s+\d+ users\s+\d+ events$`)
	if !line.MatchString(stdout.String()) {
		t.Errorf("stdout missing burst summary line:\n%s", stdout.String())
	}
	if strings.Contains(stdout.String(), "%!") {
		t.Errorf("stdout has a formatting error:\n%s", stdout.String())
	}
}

func TestRunTenantsWithSpaces(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-out", dir, "-seed", "5", "-tenants", "food, it"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}
	for _, name := range []string{"vaultsphere_food.csv", "vaultsphere_it.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
}

func TestSplitKeys(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"food,it", []string{"food", "it"}},
		{" food , it ", []string{"food", "it"}},
		{"food,,", []string{"food"}},
		{"", nil},
	}
	for _, tt := range tests {
		if got := splitKeys(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitKeys(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
