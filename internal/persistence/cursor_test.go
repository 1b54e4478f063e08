package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/trackbook/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	cursor := &domain.Cursor{
		StartTime: time.Date(2026, time.February, 2, 6, 30, 15, 123456789, time.UTC),
		ID:        "e7a1f9c2",
	}

	token := EncodeCursor(cursor)
	require.NotEmpty(t, token)

	decoded, err := DecodeCursor(token)
	require.NoError(t, err)
	require.True(t, cursor.StartTime.Equal(decoded.StartTime))
	require.Equal(t, cursor.ID, decoded.ID)
}

func TestNilCursor(t *testing.T) {
	require.Equal(t, "", EncodeCursor(nil))

	decoded, err := DecodeCursor("  ")
	require.NoError(t, err)
	require.Nil(t, decoded)
}

func TestDecodeCursorErrors(t *testing.T) {
	_, err := DecodeCursor("%%%not-base64%%%")
	require.Error(t, err)

	_, err = DecodeCursor("bm8tc2VwYXJhdG9y") // "no-separator"
	require.Error(t, err)

	_, err = DecodeCursor("bm90LWEtdGltZXxpZA==") // "not-a-time|id"
	require.Error(t, err)
}
