package zotero

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/aischolar/scholar/internal/config"
	"github.com/aischolar/scholar/internal/testutil"
)

func testItems(n, baseVersion int) []Item {
	items := make([]Item, n)
	for i := range items {
		key := fmt.Sprintf("KEY%04d", i)
		items[i] = Item{
			Key:     key,
			Version: baseVersion + i,
			Data: ItemData{
				Key:          key,
				ItemType:     "journalArticle",
				Title:        fmt.Sprintf("Paper %d", i),
				AbstractNote: "An abstract.",
				Creators:     []Creator{{CreatorType: "author", FirstName: "Ada", LastName: "Lovelace"}},
			},
		}
	}
	return items
}

func zoteroServer(t *testing.T, items []Item, libraryVersion int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Zotero-API-Version"); got != APIVersion {
			t.Errorf("Zotero-API-Version = %q, want %q", got, APIVersion)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 100
		}

		end := start + limit
		if end > len(items) {
			end = len(items)
		}
		page := []Item{}
		if start < len(items) {
			page = items[start:end]
		}

		w.Header().Set("Total-Results", strconv.Itoa(len(items)))
		w.Header().Set("Last-Modified-Version", strconv.Itoa(libraryVersion))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	}))
}

func testClient(t *testing.T, baseURL string, pageSize int) *Client {
	t.Helper()
	c, err := NewClient(config.ZoteroConfig{
		BaseURL:  baseURL,
		APIKey:   "test-key",
		UserID:   "12345",
		PageSize: pageSize,
	}, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	return c
}

func TestClient_ItemsPagination(t *testing.T) {
	items := testItems(7, 100)
	srv := zoteroServer(t, items, 120)
	defer srv.Close()

	c := testClient(t, srv.URL, 3)
	page, err := c.Items(context.Background(), 0)
	if err != nil {
		t.Fatalf("Items() error: %v", err)
	}
	if len(page.Items) != 7 {
		t.Errorf("Items() len = %d, want 7 across pages", len(page.Items))
	}
	if page.TotalResults != 7 {
		t.Errorf("TotalResults = %d, want 7", page.TotalResults)
	}
	if page.LibraryVersion != 120 {
		t.Errorf("LibraryVersion = %d, want 120", page.LibraryVersion)
	}
	if page.Items[6].Key != "KEY0006" {
		t.Errorf("last item = %q, want KEY0006", page.Items[6].Key)
	}
}

func TestClient_ItemsSinceParameter(t *testing.T) {
	var gotSince string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSince = r.URL.Query().Get("since")
		w.Header().Set("Total-Results", "0")
		w.Header().Set("Last-Modified-Version", "200")
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 0)
	if _, err := c.Items(context.Background(), 150); err != nil {
		t.Fatalf("Items() error: %v", err)
	}
	if gotSince != "150" {
		t.Errorf("since = %q, want 150", gotSince)
	}
}

func TestClient_ItemsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 0)
	if _, err := c.Items(context.Background(), 0); err == nil {
		t.Error("expected error for 403 response")
	}
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(config.ZoteroConfig{UserID: "1"}, nil); err == nil {
		t.Error("expected error for missing API key")
	}
	if _, err := NewClient(config.ZoteroConfig{APIKey: "k"}, nil); err == nil {
		t.Error("expected error for missing user ID")
	}
}

func TestItemSyncable(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want bool
	}{
		{"article", Item{Data: ItemData{ItemType: "journalArticle", Title: "T"}}, true},
		{"abstract only", Item{Data: ItemData{ItemType: "preprint", AbstractNote: "A"}}, true},
		{"attachment", Item{Data: ItemData{ItemType: "attachment", Title: "file.pdf"}}, false},
		{"note", Item{Data: ItemData{ItemType: "note"}}, false},
		{"empty", Item{Data: ItemData{ItemType: "book"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.Syncable(); got != tt.want {
				t.Errorf("Syncable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAuthorAndTagLists(t *testing.T) {
	d := ItemData{
		Creators: []Creator{
			{FirstName: "Ada", LastName: "Lovelace"},
			{Name: "MIT CSAIL"},
			{LastName: "Turing"},
		},
		Tags: []Tag{{Tag: "ml"}, {Tag: ""}, {Tag: "theory"}},
	}
	if got := d.AuthorList(); got != "Ada Lovelace, MIT CSAIL, Turing" {
		t.Errorf("AuthorList() = %q", got)
	}
	if got := d.TagList(); got != "ml,theory" {
		t.Errorf("TagList() = %q", got)
	}
}
