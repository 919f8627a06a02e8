// Package providers builds concrete providers from configuration
package providers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/babarot/kura/internal/config"
	"github.com/babarot/kura/internal/provider"
	"github.com/babarot/kura/internal/providers/local"
	"github.com/babarot/kura/internal/providers/memdrive"
	"github.com/babarot/kura/internal/providers/objstore"
	"github.com/babarot/kura/internal/providers/xdg"
	"github.com/babarot/kura/internal/registry"
	"github.com/babarot/kura/internal/utils/duration"
	"github.com/docker/go-units"
)

// retention returns the configured retention window, 0 when unset
func retention(tc config.TrashConfig) (time.Duration, error) {
	if tc.Retention != "" {
		return duration.Parse(tc.Retention)
	}
	if tc.RetentionDays > 0 {
		return time.Duration(tc.RetentionDays) * 24 * time.Hour, nil
	}
	return 0, nil
}

func tiers(tc config.TrashConfig) (map[string]time.Duration, error) {
	out := make(map[string]time.Duration, len(tc.Tiers))
	for tier, s := range tc.Tiers {
		d, err := duration.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("tier %s: %w", tier, err)
		}
		out[tier] = d
	}
	return out, nil
}

// build keeps a failed constructor from leaking a typed nil
func build[P provider.Provider](p P, err error) (provider.Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// New builds the provider described by pc
func New(pc config.Provider, log *slog.Logger) (provider.Provider, error) {
	if log == nil {
		log = slog.Default()
	}
	window, err := retention(pc.Trash)
	if err != nil {
		return nil, fmt.Errorf("provider %s: retention: %w", pc.ID, err)
	}

	switch pc.Type {
	case "local":
		return build(local.New(pc.ID, pc.Root, local.WithReadOnly(pc.ReadOnly), local.WithLogger(log)))

	case "xdg":
		if pc.Trash.Disabled {
			return build(local.New(pc.ID, pc.Root, local.WithReadOnly(pc.ReadOnly), local.WithLogger(log)))
		}
		return build(xdg.New(pc.ID, pc.Root, xdg.WithRetention(window), xdg.WithLogger(log)))

	case "memdrive":
		opts, err := memdriveOptions(pc, window)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.ID, err)
		}
		return memdrive.New(pc.ID, append(opts, memdrive.WithLogger(log))...), nil

	case "s3":
		s3 := pc.S3
		return build(objstore.New(pc.ID, objstore.Config{
			Endpoint:  s3.Endpoint,
			Bucket:    s3.Bucket,
			Prefix:    s3.Prefix,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Region:    s3.Region,
			UseSSL:    s3.UseSSL,
		}, objstore.WithLogger(log)))
	}
	return nil, fmt.Errorf("provider %s: unknown type %q", pc.ID, pc.Type)
}

func memdriveOptions(pc config.Provider, window time.Duration) ([]memdrive.Option, error) {
	tc := pc.Trash
	var opts []memdrive.Option

	if tc.Quota != "" {
		capacity, err := units.FromHumanSize(tc.Quota)
		if err != nil {
			return nil, fmt.Errorf("quota: %w", err)
		}
		percent := 0
		if tc.QuotaPurge {
			percent = tc.TrashPercent
		}
		opts = append(opts, memdrive.WithCapacity(capacity, percent))
	}
	if tc.QuotaPurge && (tc.Quota == "" || tc.TrashPercent == 0) {
		return nil, fmt.Errorf("quota_purge needs both quota and trash_percent")
	}

	if tc.Disabled {
		return append(opts, memdrive.WithoutTrash()), nil
	}
	switch {
	case len(tc.Tiers) > 0:
		windows, err := tiers(tc)
		if err != nil {
			return nil, err
		}
		if _, ok := windows[tc.Tier]; !ok {
			return nil, fmt.Errorf("tier %q has no retention window", tc.Tier)
		}
		opts = append(opts, memdrive.WithTiers(tc.Tier, windows))
	case window > 0:
		opts = append(opts, memdrive.WithRetention(window))
	}
	if tc.TwoStage {
		opts = append(opts, memdrive.WithTwoStage())
	}
	if tc.NativeEmpty {
		opts = append(opts, memdrive.WithNativeEmptyTrash())
	}
	return opts, nil
}

// Load builds every configured provider and registers it with reg.
// The configured patterns are used for detection.
func Load(cfg config.Config, reg *registry.Registry, log *slog.Logger) error {
	for _, pc := range cfg.Providers {
		p, err := New(pc, log)
		if err != nil {
			return err
		}
		if err := reg.Register(pc.ID, p, pc.Patterns...); err != nil {
			return err
		}
	}
	return nil
}
