package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierRetention(t *testing.T) {
	tier := "free"
	r := TierRetention{
		Tier: func(context.Context) (string, error) { return tier, nil },
		Durations: map[string]time.Duration{
			"free": 30 * 24 * time.Hour,
			"plus": 180 * 24 * time.Hour,
		},
	}

	d, ok, err := r.Duration(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 30*24*time.Hour, d)

	tier = "plus"
	d, _, _ = r.Duration(context.Background())
	assert.Equal(t, 180*24*time.Hour, d)

	tier = "gold"
	_, _, err = r.Duration(context.Background())
	assert.Error(t, err)

	failing := TierRetention{Tier: func(context.Context) (string, error) { return "", errors.New("offline") }}
	_, _, err = failing.Duration(context.Background())
	assert.ErrorContains(t, err, "offline")
}

func TestPolicyDeadline(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	p := TrashPolicy{Enabled: true, Retention: FixedRetention(30 * 24 * time.Hour)}
	d, err := p.Deadline(ctx, now)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, now.Add(30*24*time.Hour), *d)

	d, err = TrashPolicy{Enabled: true, Retention: NoRetention{}}.Deadline(ctx, now)
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = NoTrash().Deadline(ctx, now)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestTrashRecordValidate(t *testing.T) {
	now := time.Now()
	before := now.Add(-time.Second)
	after := now.Add(time.Hour)

	assert.NoError(t, TrashRecord{DeletedAt: now}.Validate())
	assert.NoError(t, TrashRecord{DeletedAt: now, RetentionDeadline: &now}.Validate())
	assert.NoError(t, TrashRecord{DeletedAt: now, RetentionDeadline: &after}.Validate())
	assert.Error(t, TrashRecord{DeletedAt: now, RetentionDeadline: &before}.Validate())

	assert.True(t, TrashRecord{RetentionDeadline: &now}.Expired(now))
	assert.False(t, TrashRecord{RetentionDeadline: &after}.Expired(now))
	assert.False(t, TrashRecord{}.Expired(now))
}
