package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name     string
		from, to Status
		hasTrash bool
		want     bool
	}{
		{"trash delete", StatusActive, StatusDeleted, true, true},
		{"restore", StatusDeleted, StatusActive, true, true},
		{"purge", StatusDeleted, StatusPermanentlyDeleted, true, true},
		{"two stage purge", StatusDeleted, StatusPendingDeletion, true, true},
		{"pending to gone", StatusPendingDeletion, StatusPermanentlyDeleted, true, true},
		{"single step delete", StatusActive, StatusPermanentlyDeleted, false, true},
		{"single step with trash", StatusActive, StatusPermanentlyDeleted, true, false},
		{"trash without trash", StatusActive, StatusDeleted, false, false},
		{"terminal", StatusPermanentlyDeleted, StatusActive, true, false},
		{"pending restore", StatusPendingDeletion, StatusActive, true, false},
		{"active to pending", StatusActive, StatusPendingDeletion, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to, tt.hasTrash))
		})
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{StatusActive, StatusDeleted, StatusPendingDeletion, StatusPermanentlyDeleted} {
		got, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStatus("gone")
	assert.Error(t, err)
}

func TestMetadataRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   Metadata
	}{
		{"empty", Metadata{}},
		{"mixed", Metadata{
			"mime":      String("text/plain"),
			"shared":    Bool(true),
			"starred":   Bool(false),
			"version":   Number(3),
			"ratio":     Number(0.125),
			"negative":  Number(-42),
			"numeric":   String("12"),
			"truthy":    String("true"),
			"unicode ☂": String("雨"),
		}},
		{"large number", Metadata{"bytes": Number(1 << 52)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.in.Encode()
			require.NoError(t, err)

			got, err := DecodeMetadata(data)
			require.NoError(t, err)
			assert.True(t, tt.in.Equal(got), "got %v want %v", got, tt.in)
		})
	}
}

func TestMetadataKindsSurviveEntryJSON(t *testing.T) {
	e := Entry{
		Address:  ID("abc"),
		Name:     "doc",
		Metadata: Metadata{"n": Number(1), "s": String("1"), "b": Bool(true)},
	}
	data, err := json.Marshal(e)
	require.NoError(t, err)

	var got Entry
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, KindNumber, got.Metadata["n"].Kind())
	assert.Equal(t, KindString, got.Metadata["s"].Kind())
	assert.Equal(t, KindBool, got.Metadata["b"].Kind())
	assert.Nil(t, got.Size)
	assert.Nil(t, got.ContentHash)
}

func TestDecodeMetadataRejectsNested(t *testing.T) {
	_, err := DecodeMetadata([]byte(`{"a": {"b": 1}}`))
	assert.Error(t, err)
}
