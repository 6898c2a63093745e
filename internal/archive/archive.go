// Package archive uploads generated datasets and their run manifests to S3
// or an S3-compatible store.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"vaultsphere/internal/dataset"
	"vaultsphere/internal/generator"
)

// Config holds S3 connection and upload settings.
type Config struct {
	Enabled bool `yaml:"enabled"`

	Region string `yaml:"region"`
	Bucket string `yaml:"bucket"`
	// Prefix is prepended to every object key.
	Prefix string `yaml:"prefix"`
	// Endpoint is an optional custom endpoint (MinIO, LocalStack).
	Endpoint string `yaml:"endpoint,omitempty"`

	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	SessionToken    string `yaml:"session_token,omitempty"`

	StorageClass         string `yaml:"storage_class"`
	ServerSideEncryption string `yaml:"server_side_encryption,omitempty"`
	KMSKeyID             string `yaml:"kms_key_id,omitempty"`
	UsePathStyle         bool   `yaml:"use_path_style"`

	RetryMaxAttempts int           `yaml:"retry_max_attempts"`
	Timeout          time.Duration `yaml:"timeout"`
}

// DefaultConfig returns archiving disabled with standard-class uploads.
func DefaultConfig() Config {
	return Config{
		Region:           "us-east-1",
		Bucket:           "vaultsphere-datasets",
		StorageClass:     "STANDARD",
		RetryMaxAttempts: 3,
		Timeout:          5 * time.Minute,
	}
}

// Validate checks if the configuration is valid. A disabled archive is
// always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Region == "" {
		return errors.New("archive: region is required")
	}
	if c.Bucket == "" {
		return errors.New("archive: bucket is required")
	}
	switch c.ServerSideEncryption {
	case "", "AES256", "aws:kms":
	default:
		return fmt.Errorf("archive: unsupported server_side_encryption %q", c.ServerSideEncryption)
	}
	return nil
}

// GetStorageClass returns the S3 storage class type.
func (c *Config) GetStorageClass() types.StorageClass {
	switch strings.ToUpper(c.StorageClass) {
	case "STANDARD_IA":
		return types.StorageClassStandardIa
	case "ONEZONE_IA":
		return types.StorageClassOnezoneIa
	case "INTELLIGENT_TIERING":
		return types.StorageClassIntelligentTiering
	case "GLACIER":
		return types.StorageClassGlacier
	case "GLACIER_IR":
		return types.StorageClassGlacierIr
	case "DEEP_ARCHIVE":
		return types.StorageClassDeepArchive
	default:
		return types.StorageClassStandard
	}
}

// objectAPI is the subset of the S3 client the archiver needs.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver uploads dataset files under a per-run key layout.
type Archiver struct {
	api     objectAPI
	cfg     Config
	logger  *slog.Logger
	metrics archiverMetrics
}

type archiverMetrics struct {
	objectsUploaded atomic.Int64
	bytesUploaded   atomic.Int64
	errors          atomic.Int64
}

// Metrics holds upload counters.
type Metrics struct {
	ObjectsUploaded int64 `json:"objects_uploaded"`
	BytesUploaded   int64 `json:"bytes_uploaded"`
	Errors          int64 `json:"errors"`
}

// New creates an Archiver backed by an S3 client.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Archiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))

	// Static credentials are optional; the default chain applies otherwise.
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			cfg.SessionToken,
		)
		opts = append(opts, config.WithCredentialsProvider(creds))
	}
	if cfg.RetryMaxAttempts > 0 {
		opts = append(opts, config.WithRetryMaxAttempts(cfg.RetryMaxAttempts))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	a := newArchiver(s3.NewFromConfig(awsCfg, s3Opts...), cfg, logger)
	logger.Info("archive client initialized",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"storage_class", cfg.StorageClass,
	)
	return a, nil
}

func newArchiver(api objectAPI, cfg Config, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{api: api, cfg: cfg, logger: logger}
}

// DatasetKey returns prefix/datasets/<tenant>/<run id>/<file base name>.
func DatasetKey(prefix, tenantKey string, runID uuid.UUID, file string) string {
	return path.Join(prefix, "datasets", tenantKey, runID.String(), filepath.Base(file))
}

// Object describes one uploaded object.
type Object struct {
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ETag        string `json:"etag,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Manifest records what a generation run produced.
type Manifest struct {
	RunID       uuid.UUID      `json:"run_id"`
	Tenant      string         `json:"tenant"`
	TenantID    int            `json:"tenant_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Users       int            `json:"users"`
	Events      int            `json:"events"`
	Baseline    int            `json:"baseline_events"`
	Injected    map[string]int `json:"injected_events"`
	Objects     []Object       `json:"objects"`
}

// ManifestFor summarizes a generated dataset.
func ManifestFor(ds *generator.Dataset) *Manifest {
	m := &Manifest{
		RunID:       ds.RunID,
		Tenant:      ds.Tenant.Key,
		TenantID:    ds.Tenant.ID,
		GeneratedAt: ds.GeneratedAt.UTC(),
		Events:      len(ds.Events),
		Baseline:    ds.Baseline,
		Injected:    make(map[string]int, len(ds.Injected)),
	}
	if ds.Population != nil {
		m.Users = len(ds.Population.Users)
	}
	for c, s := range ds.Injected {
		m.Injected[string(c)] = s.Events
	}
	return m
}

// ArchiveDataset uploads each file and then the manifest listing them.
// Objects are keyed with DatasetKey.
func (a *Archiver) ArchiveDataset(ctx context.Context, m *Manifest, files []string) error {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	for _, f := range files {
		obj, err := a.uploadFile(ctx, DatasetKey(a.cfg.Prefix, m.Tenant, m.RunID, f), f)
		if err != nil {
			return err
		}
		m.Objects = append(m.Objects, *obj)
	}
	sort.Slice(m.Objects, func(i, j int) bool { return m.Objects[i].Key < m.Objects[j].Key })

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("archive: encode manifest: %w", err)
	}
	key := DatasetKey(a.cfg.Prefix, m.Tenant, m.RunID, "manifest.json")
	if _, err := a.put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json", map[string]string{
		"run-id": m.RunID.String(),
		"tenant": m.Tenant,
	}); err != nil {
		return err
	}

	a.logger.Info("dataset archived",
		"run_id", m.RunID,
		"tenant", m.Tenant,
		"objects", len(m.Objects),
	)
	return nil
}

func (a *Archiver) uploadFile(ctx context.Context, key, file string) (*Object, error) {
	sum, err := dataset.Fingerprint(file)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", file, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("archive: stat %s: %w", file, err)
	}

	contentType := "text/csv"
	if dataset.IsCompressed(file) {
		contentType = "application/gzip"
	}
	etag, err := a.put(ctx, key, f, info.Size(), contentType, map[string]string{"fingerprint": sum})
	if err != nil {
		return nil, err
	}
	return &Object{Key: key, Size: info.Size(), ETag: etag, Fingerprint: sum}, nil
}

func (a *Archiver) put(ctx context.Context, key string, body io.Reader, size int64, contentType string, meta map[string]string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(a.cfg.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		StorageClass:  a.cfg.GetStorageClass(),
		Metadata:      meta,
	}
	switch a.cfg.ServerSideEncryption {
	case "AES256":
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	case "aws:kms":
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		if a.cfg.KMSKeyID != "" {
			input.SSEKMSKeyId = aws.String(a.cfg.KMSKeyID)
		}
	}

	out, err := a.api.PutObject(ctx, input)
	if err != nil {
		a.metrics.errors.Add(1)
		return "", fmt.Errorf("archive: failed to upload object %s: %w", key, err)
	}
	a.metrics.objectsUploaded.Add(1)
	a.metrics.bytesUploaded.Add(size)

	a.logger.Debug("uploaded object", "key", key, "size", size)
	return aws.ToString(out.ETag), nil
}

// GetMetrics returns upload counters.
func (a *Archiver) GetMetrics() Metrics {
	return Metrics{
		ObjectsUploaded: a.metrics.objectsUploaded.Load(),
		BytesUploaded:   a.metrics.bytesUploaded.Load(),
		Errors:          a.metrics.errors.Load(),
	}
}
