package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestUpsertSendsVector(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vectors/upsert" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Api-Key") != "key" {
			t.Error("missing Api-Key header")
		}
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(`{"upsertedCount":1}`))
	}))
	defer srv.Close()

	idx := NewIndex("key", srv.URL)
	if err := idx.Upsert(context.Background(), "note-1", []float64{0.5, 0.25}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	vectors, _ := captured["vectors"].([]interface{})
	if len(vectors) != 1 {
		t.Fatalf("vectors = %v", captured)
	}
	vec := vectors[0].(map[string]interface{})
	if vec["id"] != "note-1" {
		t.Errorf("id = %v", vec["id"])
	}
}

func TestQueryReturnsMatchIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["topK"] != float64(3) {
			t.Errorf("topK = %v", body["topK"])
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"matches": []map[string]interface{}{
				{"id": "a", "score": 0.9},
				{"id": "b", "score": 0.7},
				{"score": 0.1},
			},
		})
	}))
	defer srv.Close()

	idx := NewIndex("key", srv.URL)
	ids, err := idx.Query(context.Background(), []float64{0.1}, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestErrorStatusSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	idx := NewIndex("key", srv.URL)
	if err := idx.Upsert(context.Background(), "x", []float64{1}); err == nil {
		t.Fatal("expected an error")
	}
}
