// Package objstore serves an S3 compatible bucket. Folders are key
// prefixes and delete is immediate: buckets have no trash.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/babarot/kura/internal/capability"
	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	defaultPageSize    = 1000
	defaultConcurrency = 8
)

// Config locates the bucket
type Config struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

func (c Config) validate() error {
	switch {
	case c.Bucket == "":
		return errors.New("bucket is required")
	case c.Endpoint == "":
		return errors.New("endpoint is required")
	}
	return nil
}

type Option func(*Provider)

// WithClient uses a preconfigured client instead of building one from
// the config credentials
func WithClient(c *minio.Client) Option {
	return func(p *Provider) { p.client = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.log = l }
}

func WithPageSize(n int) Option {
	return func(p *Provider) { p.pageSize = n }
}

// WithConcurrency bounds the parallel copies of a folder move
func WithConcurrency(n int) Option {
	return func(p *Provider) { p.concurrency = n }
}

// WithoutBucketCheck skips the bucket lookup on Connect
func WithoutBucketCheck() Option {
	return func(p *Provider) { p.skipCheck = true }
}

type Provider struct {
	id          string
	bucket      string
	prefix      string
	client      *minio.Client
	pageSize    int
	concurrency int
	skipCheck   bool
	log         *slog.Logger
	info        capability.ProviderInfo
}

func New(id string, cfg Config, opts ...Option) (*Provider, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("s3 provider %s: %w", id, err)
	}
	p := &Provider{
		id:          id,
		bucket:      cfg.Bucket,
		prefix:      normalizePrefix(cfg.Prefix),
		pageSize:    defaultPageSize,
		concurrency: defaultConcurrency,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		var creds *credentials.Credentials
		if cfg.AccessKey != "" {
			creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
		} else {
			creds = credentials.NewEnvAWS()
		}
		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  creds,
			Secure: cfg.UseSSL,
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 provider %s: %w", id, err)
		}
		p.client = client
	}
	p.log = p.log.With("provider", id)

	p.info = capability.NewProviderInfo(id, "S3 bucket").
		WithCategory("object_storage").
		WithTags("s3", "path-addressed").
		WithMetadata("endpoint", cfg.Endpoint).
		WithMetadata("bucket", cfg.Bucket)
	if p.prefix != "" {
		p.info = p.info.WithMetadata("prefix", p.prefix)
	}
	return p, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(path.Clean("/"+prefix), "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func (p *Provider) ID() string { return p.id }

func (p *Provider) Capabilities() *capability.Set {
	return capability.ReadWrite(capability.CloudObjectStorage).
		With(
			capability.Seek,
			capability.ContentHash,
			capability.PermanentDeletion,
			capability.S3Compatible,
			capability.MultipartUpload,
		).
		WithProviderInfo(p.info).
		Build()
}

// ParseAddress accepts bucket relative paths. A leading "s3://bucket/"
// is stripped when it names this bucket.
func (p *Provider) ParseAddress(raw string) (types.Address, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "id:") {
		return types.Address{}, provider.Errorf(provider.KindInvalidAddress, "parse_address", types.Path(raw), "objects are addressed by path")
	}
	if rest, ok := strings.CutPrefix(raw, "s3://"); ok {
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket != p.bucket {
			return types.Address{}, provider.Errorf(provider.KindInvalidAddress, "parse_address", types.Path(raw), "different bucket")
		}
		raw = key
	}
	return types.Path(path.Clean("/" + raw)), nil
}

// key maps an address to its object key. The root maps to the prefix.
func (p *Provider) key(addr types.Address) string {
	clean := strings.TrimPrefix(path.Clean("/"+addr.Value), "/")
	return p.prefix + clean
}

// dirKey is the listing prefix of a folder address
func (p *Provider) dirKey(addr types.Address) string {
	k := p.key(addr)
	if k == "" || strings.HasSuffix(k, "/") {
		return k
	}
	return k + "/"
}

// address is the inverse of key
func (p *Provider) address(key string) types.Address {
	rel := strings.TrimSuffix(strings.TrimPrefix(key, p.prefix), "/")
	return types.Path("/" + rel)
}

func (p *Provider) Connect(ctx context.Context) (provider.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !p.skipCheck {
		ok, err := p.client.BucketExists(ctx, p.bucket)
		if err != nil {
			return nil, translate("connect", types.Path("/"), err)
		}
		if !ok {
			return nil, provider.Errorf(provider.KindEntryNotFound, "connect", types.Path("/"), fmt.Sprintf("bucket %s does not exist", p.bucket))
		}
	}
	return &session{p: p, caps: p.Capabilities()}, nil
}
