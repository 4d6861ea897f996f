package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := stripCodeFence(tc.in); got != tc.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFormatNoteParsesDraft(t *testing.T) {
	srv := completionServer(t, "```json\n"+
		`{"main_title":"Dentist","category":"Event","formatted_body":"Dentist at 10","events":[{"title":"Dentist","datetime_iso":"2026-03-12T10:00:00+02:00"}]}`+
		"\n```")
	llm := NewLLM("key", srv.URL, "model")

	draft, err := llm.FormatNote(context.Background(), "dentist tomorrow at 10",
		[]string{"Event", "Thought"}, time.Now(), "Europe/Kyiv")
	if err != nil {
		t.Fatalf("FormatNote: %v", err)
	}
	if draft.Title != "Dentist" || draft.Category != "Event" {
		t.Fatalf("unexpected draft: %+v", draft)
	}
	if len(draft.Events) != 1 || draft.Events[0].StartISO != "2026-03-12T10:00:00+02:00" {
		t.Fatalf("events not parsed: %+v", draft.Events)
	}
}

func TestFormatNoteFillsEmptyBodyWithInput(t *testing.T) {
	srv := completionServer(t, `{"main_title":"Note","category":"Thought","formatted_body":"","events":[]}`)
	llm := NewLLM("key", srv.URL, "model")

	draft, err := llm.FormatNote(context.Background(), "raw text", []string{"Thought"}, time.Now(), "UTC")
	if err != nil {
		t.Fatalf("FormatNote: %v", err)
	}
	if draft.FormattedBody != "raw text" {
		t.Fatalf("body = %q", draft.FormattedBody)
	}
}

func TestFormatNoteRejectsMissingTitle(t *testing.T) {
	srv := completionServer(t, `{"main_title":"","category":"Thought","formatted_body":"x"}`)
	llm := NewLLM("key", srv.URL, "model")

	if _, err := llm.FormatNote(context.Background(), "x", []string{"Thought"}, time.Now(), "UTC"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestDailyInsightFallsBackOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	llm := NewLLM("key", srv.URL, "model")

	if got := llm.DailyInsight(context.Background()); got != "Small steps add up." {
		t.Fatalf("got %q", got)
	}
}

func TestTranscribePollsUntilCompleted(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/upload":
			json.NewEncoder(w).Encode(map[string]interface{}{"upload_url": "https://cdn.example/audio"})
		case r.URL.Path == "/transcript" && r.Method == http.MethodPost:
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			if body["audio_url"] != "https://cdn.example/audio" {
				t.Errorf("audio_url = %v", body["audio_url"])
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "job-1"})
		case strings.HasPrefix(r.URL.Path, "/transcript/"):
			polls++
			status := "processing"
			if polls >= 3 {
				status = "completed"
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"status": status, "text": "hello world"})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	tr := NewTranscriber("key")
	tr.BaseURL = srv.URL
	tr.PollInterval = time.Millisecond
	tr.MaxPolls = 10

	text, err := tr.Transcribe(context.Background(), []byte("audio-bytes"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("got %q", text)
	}
	if polls != 3 {
		t.Fatalf("polled %d times, want 3", polls)
	}
}

func TestTranscribeSurfacesJobError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/upload":
			json.NewEncoder(w).Encode(map[string]interface{}{"upload_url": "u"})
		case r.URL.Path == "/transcript" && r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "job-1"})
		default:
			json.NewEncoder(w).Encode(map[string]interface{}{"status": "error", "error": "audio too short"})
		}
	}))
	defer srv.Close()

	tr := NewTranscriber("key")
	tr.BaseURL = srv.URL
	tr.PollInterval = time.Millisecond

	_, err := tr.Transcribe(context.Background(), []byte("x"))
	if err == nil || !strings.Contains(err.Error(), "audio too short") {
		t.Fatalf("got %v", err)
	}
}

func TestTranscribeTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/upload":
			json.NewEncoder(w).Encode(map[string]interface{}{"upload_url": "u"})
		case r.URL.Path == "/transcript" && r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "job-1"})
		default:
			json.NewEncoder(w).Encode(map[string]interface{}{"status": "processing"})
		}
	}))
	defer srv.Close()

	tr := NewTranscriber("key")
	tr.BaseURL = srv.URL
	tr.PollInterval = time.Millisecond
	tr.MaxPolls = 2

	_, err := tr.Transcribe(context.Background(), []byte("x"))
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("got %v", err)
	}
}

func TestEmbedReturnsVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float64{0.1, 0.2, 0.3}},
			},
		})
	}))
	defer srv.Close()

	e := NewEmbedder("key")
	e.BaseURL = srv.URL

	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Fatalf("got %v", vec)
	}
}
