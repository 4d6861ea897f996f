package notion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreatePageSendsIconAndReturnsID(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Notion-Version") == "" {
			t.Error("missing Notion-Version header")
		}
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "page-1"})
	}))
	defer srv.Close()

	client := New("token")
	client.BaseURL = srv.URL

	id, err := client.CreatePage(context.Background(), "db-1",
		map[string]interface{}{"Name": TitleProperty("hello")}, nil, "💡")
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	if id != "page-1" {
		t.Fatalf("got id %q", id)
	}

	icon, _ := captured["icon"].(map[string]interface{})
	if icon == nil || icon["emoji"] != "💡" {
		t.Fatalf("icon not sent: %v", captured["icon"])
	}
	if _, hasChildren := captured["children"]; hasChildren {
		t.Fatal("empty children should be omitted")
	}
}

func TestRequestSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"body failed validation"}`))
	}))
	defer srv.Close()

	client := New("token")
	client.BaseURL = srv.URL

	_, err := client.GetPage(context.Background(), "page-1")
	if err == nil {
		t.Fatal("expected an error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "body failed validation" {
		t.Fatalf("wrong error: %+v", apiErr)
	}
}

func TestQueryDatabaseParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["page_size"] != float64(2) {
			t.Errorf("page_size not sent: %v", body["page_size"])
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{{"id": "a"}, {"id": "b"}},
		})
	}))
	defer srv.Close()

	client := New("token")
	client.BaseURL = srv.URL

	pages, err := client.QueryDatabase(context.Background(), "db", nil, SortNewestFirst(), 2)
	if err != nil {
		t.Fatalf("QueryDatabase: %v", err)
	}
	if len(pages) != 2 || pages[0].ID() != "a" {
		t.Fatalf("unexpected pages: %+v", pages)
	}
}
