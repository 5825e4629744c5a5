package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-import-service/internal/clients"
	"catalog-import-service/internal/models"
)

func testAirtableClient() *clients.HTTPClient {
	policy := clients.DefaultRetryPolicy()
	policy.InitialBackoff = time.Millisecond
	policy.MaxBackoff = time.Millisecond
	return clients.NewHTTPClient(0, policy)
}

func TestAirtableFetch_FollowsOffset(t *testing.T) {
	var offsets []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer pat-123", r.Header.Get("Authorization"))
		assert.Equal(t, "/v0/appBase/Products%20Table", r.URL.EscapedPath())
		assert.Equal(t, "100", r.URL.Query().Get("pageSize"))
		offsets = append(offsets, r.URL.Query().Get("offset"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("offset") == "" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"records": []map[string]interface{}{
					{"id": "rec1", "fields": map[string]interface{}{"SKU": "A1", "Name": "Shirt"}},
				},
				"offset": "itr2",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"records": []map[string]interface{}{
				{"id": "rec2", "fields": map[string]interface{}{"SKU": "B1", "Variations": "[]"}},
			},
		})
	}))
	defer server.Close()

	src := NewAirtableSource(AirtableConfig{BaseURL: server.URL, Token: "pat-123", BaseID: "appBase", Table: "Products Table"}, testAirtableClient())
	batch, err := src.Fetch(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "itr2"}, offsets)
	require.Len(t, batch.Rows, 2)
	assert.True(t, batch.Rows[0].IsKeyed())
	assert.Equal(t, "B1", batch.Rows[1].Fields["SKU"])
	assert.Equal(t, []string{"Name", "SKU", "Variations"}, batch.Headers)
}

func TestAirtableFetch_LimitStopsPaging(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "1", r.URL.Query().Get("pageSize"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"records": []map[string]interface{}{{"id": "rec1", "fields": map[string]interface{}{"SKU": "A1"}}},
			"offset":  "more",
		})
	}))
	defer server.Close()

	src := NewAirtableSource(AirtableConfig{BaseURL: server.URL, Token: "t", BaseID: "b", Table: "p"}, testAirtableClient())
	batch, err := src.Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, batch.Rows, 1)
	assert.Equal(t, 1, calls)
}

func TestAirtableFetch_ErrorBodies(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{"detailed", http.StatusUnauthorized, `{"error":{"type":"AUTHENTICATION_REQUIRED","message":"Authentication required"}}`, "Error fetching data: Airtable API error (401): AUTHENTICATION_REQUIRED: Authentication required"},
		{"plain code", http.StatusNotFound, `{"error":"NOT_FOUND"}`, "Error fetching data: Airtable API error (404): NOT_FOUND"},
		{"no body", http.StatusForbidden, ``, "Error fetching data: Airtable API error (403): Forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			src := NewAirtableSource(AirtableConfig{BaseURL: server.URL, Token: "t", BaseID: "b", Table: "p"}, testAirtableClient())
			_, err := src.Fetch(context.Background(), 0)
			require.Error(t, err)
			assert.Equal(t, tt.expected, err.Error())

			var fe *FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, models.SourceAirtable, fe.Source)
		})
	}
}
