package store

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"memobot/internal/notion"
)

// fakeNotion is an in-memory stand-in for the document store API, immediate
// consistency included (the real query path is eventually consistent, which
// tests cannot exercise anyway).
type fakeNotion struct {
	mu      sync.Mutex
	seq     int
	pages   map[string]notion.Page
	blocks  map[string][]notion.Block // page id -> children
	blockOf map[string]string         // block id -> page id

	// failBlockFetches makes the next N block-children reads return 500,
	// for exercising transient-failure paths.
	failBlockFetches int
}

func newFakeNotion() *fakeNotion {
	return &fakeNotion{
		pages:   make(map[string]notion.Page),
		blocks:  make(map[string][]notion.Block),
		blockOf: make(map[string]string),
	}
}

func (f *fakeNotion) server() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(f.handle))
}

func (f *fakeNotion) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	parts := strings.Split(path, "/")

	switch {
	case r.Method == http.MethodPost && parts[0] == "pages":
		f.createPage(w, r)
	case r.Method == http.MethodPost && parts[0] == "databases" && len(parts) == 3 && parts[2] == "query":
		f.query(w, r)
	case r.Method == http.MethodGet && parts[0] == "pages" && len(parts) == 2:
		f.writeJSON(w, f.pages[parts[1]])
	case r.Method == http.MethodPatch && parts[0] == "pages" && len(parts) == 2:
		f.patchPage(w, r, parts[1])
	case r.Method == http.MethodGet && parts[0] == "blocks" && len(parts) == 3 && parts[2] == "children":
		if f.failBlockFetches > 0 {
			f.failBlockFetches--
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"message":"transient"}`)
			return
		}
		f.writeJSON(w, map[string]interface{}{"results": f.blocks[parts[1]]})
	case r.Method == http.MethodPatch && parts[0] == "blocks" && len(parts) == 3 && parts[2] == "children":
		f.appendBlocks(w, r, parts[1])
	case r.Method == http.MethodPatch && parts[0] == "blocks" && len(parts) == 2:
		f.updateBlock(w, r, parts[1])
	case r.Method == http.MethodDelete && parts[0] == "blocks" && len(parts) == 2:
		f.deleteBlock(w, parts[1])
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"message":"no route for %s %s"}`, r.Method, r.URL.Path)
	}
}

func (f *fakeNotion) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (f *fakeNotion) createPage(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	json.NewDecoder(r.Body).Decode(&body)

	f.seq++
	id := fmt.Sprintf("page-%d", f.seq)
	page := notion.Page{
		"id":           id,
		"url":          "https://notion.example/" + id,
		"created_time": time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(f.seq) * time.Second).Format(time.RFC3339),
		"properties":   body["properties"],
	}
	if icon, ok := body["icon"]; ok {
		page["icon"] = icon
	}
	f.pages[id] = page

	if children, ok := body["children"].([]interface{}); ok {
		for _, c := range children {
			f.addBlock(id, c.(map[string]interface{}))
		}
	}
	f.writeJSON(w, page)
}

func (f *fakeNotion) addBlock(pageID string, raw map[string]interface{}) {
	f.seq++
	block := notion.Block(raw)
	block["id"] = fmt.Sprintf("block-%d", f.seq)
	f.blocks[pageID] = append(f.blocks[pageID], block)
	f.blockOf[block.ID()] = pageID
}

func (f *fakeNotion) patchPage(w http.ResponseWriter, r *http.Request, id string) {
	page, ok := f.pages[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"page not found"}`)
		return
	}
	var body map[string]interface{}
	json.NewDecoder(r.Body).Decode(&body)

	if archived, ok := body["archived"].(bool); ok {
		page["archived"] = archived
	}
	if props, ok := body["properties"].(map[string]interface{}); ok {
		existing, _ := page["properties"].(map[string]interface{})
		if existing == nil {
			existing = map[string]interface{}{}
		}
		for k, v := range props {
			existing[k] = v
		}
		page["properties"] = existing
	}
	f.writeJSON(w, page)
}

func (f *fakeNotion) appendBlocks(w http.ResponseWriter, r *http.Request, pageID string) {
	var body map[string]interface{}
	json.NewDecoder(r.Body).Decode(&body)
	if children, ok := body["children"].([]interface{}); ok {
		for _, c := range children {
			f.addBlock(pageID, c.(map[string]interface{}))
		}
	}
	f.writeJSON(w, map[string]interface{}{"results": f.blocks[pageID]})
}

func (f *fakeNotion) updateBlock(w http.ResponseWriter, r *http.Request, blockID string) {
	pageID, ok := f.blockOf[blockID]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"block not found"}`)
		return
	}
	var body map[string]interface{}
	json.NewDecoder(r.Body).Decode(&body)

	for i, b := range f.blocks[pageID] {
		if b.ID() != blockID {
			continue
		}
		for k, v := range body {
			b[k] = v
		}
		f.blocks[pageID][i] = b
	}
	f.writeJSON(w, map[string]interface{}{"id": blockID})
}

func (f *fakeNotion) deleteBlock(w http.ResponseWriter, blockID string) {
	pageID, ok := f.blockOf[blockID]
	if ok {
		kept := f.blocks[pageID][:0]
		for _, b := range f.blocks[pageID] {
			if b.ID() != blockID {
				kept = append(kept, b)
			}
		}
		f.blocks[pageID] = kept
		delete(f.blockOf, blockID)
	}
	f.writeJSON(w, map[string]interface{}{"id": blockID})
}

func (f *fakeNotion) query(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	json.NewDecoder(r.Body).Decode(&body)

	var results []notion.Page
	for _, page := range f.pages {
		if archived, _ := page["archived"].(bool); archived {
			continue
		}
		if filter, ok := body["filter"].(map[string]interface{}); ok && !matches(page, filter) {
			continue
		}
		results = append(results, page)
	}

	// The only sort the client uses is created_time descending.
	descending := false
	if sorts, ok := body["sorts"].([]interface{}); ok && len(sorts) > 0 {
		descending = true
	}
	sort.Slice(results, func(i, j int) bool {
		ti, _ := results[i]["created_time"].(string)
		tj, _ := results[j]["created_time"].(string)
		if descending {
			return ti > tj
		}
		return ti < tj
	})

	if size, ok := body["page_size"].(float64); ok && int(size) > 0 && len(results) > int(size) {
		results = results[:int(size)]
	}
	f.writeJSON(w, map[string]interface{}{"results": results})
}

func matches(page notion.Page, filter map[string]interface{}) bool {
	if subs, ok := filter["and"].([]interface{}); ok {
		for _, s := range subs {
			if !matches(page, s.(map[string]interface{})) {
				return false
			}
		}
		return true
	}
	if subs, ok := filter["or"].([]interface{}); ok {
		for _, s := range subs {
			if matches(page, s.(map[string]interface{})) {
				return true
			}
		}
		return false
	}

	prop, _ := filter["property"].(string)
	var value string
	var cond map[string]interface{}
	switch {
	case filter["rich_text"] != nil:
		cond, _ = filter["rich_text"].(map[string]interface{})
		value = page.RichText(prop)
	case filter["title"] != nil:
		cond, _ = filter["title"].(map[string]interface{})
		value = page.Title(prop)
	case filter["select"] != nil:
		cond, _ = filter["select"].(map[string]interface{})
		value = page.Select(prop)
	default:
		return false
	}

	switch {
	case cond["equals"] != nil:
		return value == cond["equals"].(string)
	case cond["contains"] != nil:
		return strings.Contains(value, cond["contains"].(string))
	case cond["is_empty"] == true:
		return value == ""
	case cond["is_not_empty"] == true:
		return value != ""
	}
	return false
}

// newTestClient returns a notion client pointed at a fresh fake, plus the
// fake itself for direct inspection.
func newTestClient(t interface{ Cleanup(func()) }) (*notion.Client, *fakeNotion) {
	fake := newFakeNotion()
	srv := fake.server()
	t.Cleanup(srv.Close)

	client := notion.New("test-token")
	client.BaseURL = srv.URL
	return client, fake
}
