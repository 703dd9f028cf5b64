package vocabulary

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

const searchPayload = `{
	"data": [
		{"id": "6003371567474", "name": "Ferrari", "path": ["Interests", "Vehicles"], "topic": "Vehicles",
		 "audience_size_lower_bound": 100000, "audience_size_upper_bound": 200000},
		{"id": "6003460495445", "name": "Ferrari Club", "audience_size_lower_bound": 5000}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := New(zap.NewNop(), "test-token", 100)
	client.APIURL = server.URL
	return client
}

func TestSearchDecodesSuggestions(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		if got := r.URL.Query().Get("type"); got != "adinterest" {
			t.Errorf("unexpected type param: %s", got)
		}
		if got := r.URL.Query().Get("limit"); got != "10" {
			t.Errorf("unexpected limit param: %s", got)
		}
		if got := r.URL.Query().Get("access_token"); got != "test-token" {
			t.Errorf("unexpected access token: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchPayload))
	})

	suggestions, err := client.Search(context.Background(), "ferrari")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotQuery != "ferrari" {
		t.Fatalf("unexpected query: %s", gotQuery)
	}

	if len(suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(suggestions))
	}

	first := suggestions[0]
	if first.ID != "6003371567474" || first.Name != "Ferrari" {
		t.Fatalf("unexpected first suggestion: %+v", first)
	}
	if first.AudienceSizeLowerBound != 100000 || first.AudienceSizeUpperBound != 200000 {
		t.Fatalf("unexpected audience bounds: %+v", first)
	}
	if len(first.Path) != 2 || first.Topic != "Vehicles" {
		t.Fatalf("unexpected metadata: %+v", first)
	}
}

func TestSearchHandlesGzip(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		gz.Write([]byte(searchPayload))
	})

	suggestions, err := client.Search(context.Background(), "ferrari")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(suggestions))
	}
}

func TestSearchBadStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	if _, err := client.Search(context.Background(), "ferrari"); err == nil {
		t.Fatal("expected error on bad status")
	}
}

func TestSearchEmptyData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data": []}`))
	})

	suggestions, err := client.Search(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(suggestions) != 0 {
		t.Fatalf("expected no suggestions, got %d", len(suggestions))
	}
}
