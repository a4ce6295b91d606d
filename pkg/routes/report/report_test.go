package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := parseDate("2026-06-01")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), *d)

	d, err = parseDate("")
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = parseDate("01/06/2026")
	assert.Error(t, err)
}

func TestRangeKey(t *testing.T) {
	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "open_open", rangeKey(nil, nil))
	assert.Equal(t, "2026-06-01_open", rangeKey(&from, nil))
	assert.Equal(t, "2026-06-01_2026-06-30", rangeKey(&from, &to))
}
