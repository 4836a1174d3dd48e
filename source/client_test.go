package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aphelion-labs/meteorid/errors"
)

func newTestClient(t *testing.T, srv *httptest.Server, pageSize int) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:           srv.URL + "/resource/test.json",
		PageSize:          pageSize,
		Timeout:           5 * time.Second,
		RequestsPerSecond: 1000, // no throttling in tests
	}, zap.NewNop().Sugar())
	require.NoError(t, err)
	return c
}

func rowJSON(i int) string {
	return fmt.Sprintf(`{"name":"Rock %03d","recclass":"L6","mass":"%d","reclat":"1.0","reclong":"2.0"}`, i, i+1)
}

func TestFetchPagesUntilShortPage(t *testing.T) {
	const pageSize = 3
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("$offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("$limit"))
		require.Equal(t, pageSize, limit)

		// 7 rows total: pages of 3, 3, 1
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "[")
		wrote := false
		for i := offset; i < offset+limit && i < 7; i++ {
			if wrote {
				fmt.Fprint(w, ",")
			}
			fmt.Fprint(w, rowJSON(i))
			wrote = true
		}
		fmt.Fprint(w, "]")
	}))
	defer srv.Close()

	c := newTestClient(t, srv, pageSize)
	rows, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, "Rock 000", string(rows[0].Name))
	assert.Equal(t, "Rock 006", string(rows[6].Name))
}

func TestFetchNon2xxFailsWithSourceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 10)
	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsSourceUnavailable(err))
}

func TestFetchMidPageFailureReturnsNoPartialData(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, "[%s,%s]", rowJSON(0), rowJSON(1))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 2) // full first page forces a second request
	rows, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.Nil(t, rows)
	assert.True(t, errors.IsSourceUnavailable(err))
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsSourceUnavailable(err))
}

func TestCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "count(name)", r.URL.Query().Get("$select"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"count_name":"45716"}]`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 10)
	n, err := c.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 45716, n)
}

func TestCountMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"count_name":"many"}]`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 10)
	_, err := c.Count(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsSourceUnavailable(err))
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "ftp://example.com/data"}, zap.NewNop().Sugar())
	require.Error(t, err)

	_, err = NewClient(Config{BaseURL: "://not-a-url"}, zap.NewNop().Sugar())
	require.Error(t, err)
}
