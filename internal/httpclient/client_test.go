package httpclient

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSetsTimeout(t *testing.T) {
	c := New(7 * time.Second)
	assert.Equal(t, 7*time.Second, c.Timeout)
	require.NotNil(t, c.CheckRedirect)
}

func TestValidateURL(t *testing.T) {
	ok, err := url.Parse("https://data.nasa.gov/resource/gh4g-9sfh.json")
	require.NoError(t, err)
	assert.NoError(t, ValidateURL(ok))

	for _, bad := range []string{"ftp://example.com/x", "file:///etc/passwd", "/relative/path"} {
		u, err := url.Parse(bad)
		require.NoError(t, err)
		assert.Error(t, ValidateURL(u), "should reject %s", bad)
	}
	assert.Error(t, ValidateURL(nil))
}
