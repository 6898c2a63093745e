package archive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"vaultsphere/internal/dataset"
	"vaultsphere/internal/generator"
	"vaultsphere/internal/tenant"
)

type putCall struct {
	input *s3.PutObjectInput
	body  []byte
}

type fakeS3 struct {
	mu    sync.Mutex
	calls []putCall
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.mu.Lock()
	f.calls = append(f.calls, putCall{input: in, body: body})
	f.mu.Unlock()
	return &s3.PutObjectOutput{ETag: aws.String(`"etag-` + aws.ToString(in.Key) + `"`)}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Enabled {
		t.Error("archive should be disabled by default")
	}
	if cfg.Region != "us-east-1" {
		t.Errorf("Region = %s, want us-east-1", cfg.Region)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"disabled ignores fields", func(c *Config) { c.Enabled = false; c.Bucket = "" }, false},
		{"enabled valid", func(c *Config) {}, false},
		{"missing region", func(c *Config) { c.Region = "" }, true},
		{"missing bucket", func(c *Config) { c.Bucket = "" }, true},
		{"kms", func(c *Config) { c.ServerSideEncryption = "aws:kms" }, false},
		{"unknown sse", func(c *Config) { c.ServerSideEncryption = "rot13" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Enabled = true
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetStorageClass(t *testing.T) {
	tests := []struct {
		in   string
		want types.StorageClass
	}{
		{"STANDARD", types.StorageClassStandard},
		{"glacier_ir", types.StorageClassGlacierIr},
		{"INTELLIGENT_TIERING", types.StorageClassIntelligentTiering},
		{"unknown", types.StorageClassStandard},
	}
	for _, tt := range tests {
		cfg := Config{StorageClass: tt.in}
		if got := cfg.GetStorageClass(); got != tt.want {
			t.Errorf("GetStorageClass(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDatasetKey(t *testing.T) {
	run := uuid.MustParse("6f1c2d3e-0000-4000-8000-000000000001")
	tests := []struct {
		prefix string
		file   string
		want   string
	}{
		{"", "out/vaultsphere_food.csv", "datasets/food/6f1c2d3e-0000-4000-8000-000000000001/vaultsphere_food.csv"},
		{"lab/", "vaultsphere_food.csv.gz", "lab/datasets/food/6f1c2d3e-0000-4000-8000-000000000001/vaultsphere_food.csv.gz"},
	}
	for _, tt := range tests {
		if got := DatasetKey(tt.prefix, "food", run, tt.file); got != tt.want {
			t.Errorf("DatasetKey(%q, %q) = %q, want %q", tt.prefix, tt.file, got, tt.want)
		}
	}
}

func generated(t *testing.T) *generator.Dataset {
	t.Helper()
	tn := tenant.Food()
	g := generator.New(rand.New(rand.NewPCG(3, 4)), generator.DefaultOptions(), testLogger()).
		WithClock(func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) })
	ds, err := g.Generate(&tn, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return ds
}

func TestManifestFor(t *testing.T) {
	ds := generated(t)
	m := ManifestFor(ds)
	if m.RunID != ds.RunID || m.Tenant != "food" || m.TenantID != 1 {
		t.Errorf("manifest identity = %+v", m)
	}
	if m.Users != 40 {
		t.Errorf("Users = %d, want 40", m.Users)
	}
	if m.Events != len(ds.Events) {
		t.Errorf("Events = %d, want %d", m.Events, len(ds.Events))
	}
	total := 0
	for _, n := range m.Injected {
		total += n
	}
	if m.Baseline+total != m.Events {
		t.Errorf("baseline %d + injected %d != events %d", m.Baseline, total, m.Events)
	}
}

func TestArchiveDataset(t *testing.T) {
	ds := generated(t)
	dir := t.TempDir()
	file := filepath.Join(dir, ds.Tenant.Filename)
	if err := dataset.WriteFile(file, ds.Events); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	api := &fakeS3{}
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Prefix = "runs"
	cfg.ServerSideEncryption = "AES256"
	a := newArchiver(api, cfg, testLogger())

	m := ManifestFor(ds)
	if err := a.ArchiveDataset(context.Background(), m, []string{file}); err != nil {
		t.Fatalf("ArchiveDataset() error = %v", err)
	}

	if len(api.calls) != 2 {
		t.Fatalf("PutObject called %d times, want 2", len(api.calls))
	}
	data := api.calls[0]
	wantKey := DatasetKey("runs", "food", ds.RunID, file)
	if aws.ToString(data.input.Key) != wantKey {
		t.Errorf("data key = %s, want %s", aws.ToString(data.input.Key), wantKey)
	}
	if aws.ToString(data.input.ContentType) != "text/csv" {
		t.Errorf("ContentType = %s, want text/csv", aws.ToString(data.input.ContentType))
	}
	if data.input.ServerSideEncryption != types.ServerSideEncryptionAes256 {
		t.Errorf("ServerSideEncryption = %v", data.input.ServerSideEncryption)
	}
	if !strings.HasPrefix(string(data.body), strings.Join(dataset.Header, ",")) {
		t.Error("uploaded body does not start with the dataset header")
	}
	sum, _ := dataset.Fingerprint(file)
	if data.input.Metadata["fingerprint"] != sum {
		t.Errorf("fingerprint metadata = %q, want %q", data.input.Metadata["fingerprint"], sum)
	}

	manifest := api.calls[1]
	if !strings.HasSuffix(aws.ToString(manifest.input.Key), "/manifest.json") {
		t.Errorf("manifest key = %s", aws.ToString(manifest.input.Key))
	}
	var got Manifest
	if err := json.Unmarshal(manifest.body, &got); err != nil {
		t.Fatalf("manifest is not JSON: %v", err)
	}
	if len(got.Objects) != 1 || got.Objects[0].Key != wantKey || got.Objects[0].Fingerprint != sum {
		t.Errorf("manifest objects = %+v", got.Objects)
	}
	info, _ := os.Stat(file)
	if got.Objects[0].Size != info.Size() {
		t.Errorf("object size = %d, want %d", got.Objects[0].Size, info.Size())
	}

	if mt := a.GetMetrics(); mt.ObjectsUploaded != 2 || mt.Errors != 0 {
		t.Errorf("metrics = %+v", mt)
	}
}

func TestArchiveDatasetErrors(t *testing.T) {
	ds := generated(t)
	cfg := DefaultConfig()
	cfg.Enabled = true

	a := newArchiver(&fakeS3{}, cfg, testLogger())
	err := a.ArchiveDataset(context.Background(), ManifestFor(ds), []string{filepath.Join(t.TempDir(), "nope.csv")})
	if !dataset.IsMissingInput(err) {
		t.Errorf("ArchiveDataset(missing file) error = %v, want missing input", err)
	}

	file := filepath.Join(t.TempDir(), "x.csv")
	if err := dataset.WriteFile(file, ds.Events[:5]); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("access denied")
	a = newArchiver(&fakeS3{err: boom}, cfg, testLogger())
	if err := a.ArchiveDataset(context.Background(), ManifestFor(ds), []string{file}); !errors.Is(err, boom) {
		t.Errorf("ArchiveDataset() error = %v, want wrapped %v", err, boom)
	}
	if a.GetMetrics().Errors != 1 {
		t.Errorf("Errors = %d, want 1", a.GetMetrics().Errors)
	}
}
