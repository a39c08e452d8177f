package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCombinesAAndSOA(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		q, _ := url.ParseQuery(req.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		switch q.Get("type") {
		case "SOA":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"Status": 0,
				"Answer": []map[string]interface{}{
					{"name": "example.com.", "type": 6, "TTL": 3600, "data": "ns1.example.com. admin.example.com. 2024010101 3600 900 1209600 300"},
				},
			})
		default:
			json.NewEncoder(w).Encode(map[string]interface{}{
				"Status": 0,
				"Answer": []map[string]interface{}{
					{"name": "example.com.", "type": 1, "TTL": 300, "data": "1.2.3.4"},
					{"name": "example.com.", "type": 1, "TTL": 300, "data": "5.6.7.8"},
				},
			})
		}
	}))
	defer srv.Close()

	r := New(Config{Endpoint: srv.URL, Timeout: 5 * time.Second})
	res, err := r.Resolve(context.Background(), "example.com")
	require.NoError(t, err)

	assert.Equal(t, []string{"1.2.3.4", "5.6.7.8"}, res.SortedIPs())
	require.NotNil(t, res.SOA)
	assert.Equal(t, "2024010101", res.SOA.Serial)
	assert.False(t, res.NoAuthority)
}

func TestResolveNoAuthority(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"Status":  2,
			"Comment": []string{"SERVFAIL: No Reachable Authority"},
		})
	}))
	defer srv.Close()

	r := New(Config{Endpoint: srv.URL, Timeout: 5 * time.Second})
	res, err := r.Resolve(context.Background(), "ghost.example.com")
	require.NoError(t, err)
	assert.True(t, res.NoAuthority)
	assert.Empty(t, res.ARecords)
}

func TestResolveTransportError(t *testing.T) {
	r := New(Config{Endpoint: "http://127.0.0.1:1", Timeout: 50 * time.Millisecond})
	_, err := r.Resolve(context.Background(), "example.com")
	require.Error(t, err)
}
