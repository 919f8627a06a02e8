package providers

import (
	"context"
	"testing"
	"time"

	"github.com/babarot/kura/internal/capability"
	"github.com/babarot/kura/internal/config"
	"github.com/babarot/kura/internal/provider"
	"github.com/babarot/kura/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func policyOf(t *testing.T, p provider.Provider) provider.TrashPolicy {
	t.Helper()
	var pol provider.TrashPolicy
	require.NoError(t, provider.With(context.Background(), p, func(c *provider.Conn) error {
		pol = c.Policy()
		return nil
	}))
	return pol
}

func TestNewMemdrive(t *testing.T) {
	tests := []struct {
		name    string
		trash   config.TrashConfig
		check   func(*testing.T, provider.TrashPolicy)
		wantErr string
	}{
		{
			name:  "fixed retention",
			trash: config.TrashConfig{Retention: "30d"},
			check: func(t *testing.T, pol provider.TrashPolicy) {
				assert.True(t, pol.Enabled)
				assert.Equal(t, provider.FixedRetention(30*24*time.Hour), pol.Retention)
			},
		},
		{
			name:  "deprecated retention days",
			trash: config.TrashConfig{RetentionDays: 7},
			check: func(t *testing.T, pol provider.TrashPolicy) {
				assert.Equal(t, provider.FixedRetention(7*24*time.Hour), pol.Retention)
			},
		},
		{
			name:  "tiers",
			trash: config.TrashConfig{Tier: "plus", Tiers: map[string]string{"free": "30d", "plus": "180d"}},
			check: func(t *testing.T, pol provider.TrashPolicy) {
				d, ok, err := pol.Retention.Duration(context.Background())
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, 180*24*time.Hour, d)
			},
		},
		{
			name:    "unknown tier",
			trash:   config.TrashConfig{Tier: "gold", Tiers: map[string]string{"free": "30d"}},
			wantErr: `tier "gold"`,
		},
		{
			name:  "two stage quota purge",
			trash: config.TrashConfig{TwoStage: true, QuotaPurge: true, Quota: "1MB", TrashPercent: 10},
			check: func(t *testing.T, pol provider.TrashPolicy) {
				assert.True(t, pol.TwoStage)
				assert.True(t, pol.QuotaBasedPurge)
			},
		},
		{
			name:    "quota purge without quota",
			trash:   config.TrashConfig{QuotaPurge: true, TrashPercent: 10},
			wantErr: "quota_purge",
		},
		{
			name:  "disabled",
			trash: config.TrashConfig{Disabled: true},
			check: func(t *testing.T, pol provider.TrashPolicy) {
				assert.False(t, pol.Enabled)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(config.Provider{ID: "drive", Type: "memdrive", Trash: tt.trash}, nil)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			tt.check(t, policyOf(t, p))
		})
	}
}

func TestNewLocalAndXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	root := t.TempDir()

	p, err := New(config.Provider{ID: "disk", Type: "local", Root: root}, nil)
	require.NoError(t, err)
	assert.False(t, p.Capabilities().Has(capability.TrashManagement))

	p, err = New(config.Provider{ID: "disk", Type: "local", Root: root, ReadOnly: true}, nil)
	require.NoError(t, err)
	assert.False(t, p.Capabilities().Has(capability.Write))

	p, err = New(config.Provider{ID: "home", Type: "xdg", Root: root, Trash: config.TrashConfig{Retention: "30d"}}, nil)
	require.NoError(t, err)
	assert.True(t, p.Capabilities().Has(capability.TrashManagement))

	p, err = New(config.Provider{ID: "home", Type: "xdg", Root: root, Trash: config.TrashConfig{Disabled: true}}, nil)
	require.NoError(t, err)
	assert.False(t, p.Capabilities().Has(capability.TrashManagement))

	_, err = New(config.Provider{ID: "gone", Type: "local", Root: root + "/missing"}, nil)
	assert.Error(t, err)
}

func TestNewS3(t *testing.T) {
	p, err := New(config.Provider{ID: "bucket", Type: "s3", S3: config.S3Config{
		Endpoint: "localhost:9000", Bucket: "b", AccessKey: "k", SecretKey: "s",
	}}, nil)
	require.NoError(t, err)
	assert.True(t, p.Capabilities().Has(capability.S3Compatible))

	p, err = New(config.Provider{ID: "bucket", Type: "s3"}, nil)
	assert.Error(t, err)
	assert.Nil(t, p)
}

func TestLoad(t *testing.T) {
	cfg := config.Config{Providers: []config.Provider{
		{ID: "a", Type: "memdrive", Patterns: []string{"drive://a/**"}},
		{ID: "b", Type: "memdrive", Patterns: []string{"drive://b/**"}},
	}}
	reg := registry.New()
	require.NoError(t, Load(cfg, reg, nil))
	assert.Equal(t, []string{"a", "b"}, reg.IDs())

	p, _, err := reg.Detect("drive://b/x")
	require.NoError(t, err)
	assert.Equal(t, "b", p.ID())

	assert.True(t, provider.IsAlreadyExists(Load(cfg, reg, nil)))
}
