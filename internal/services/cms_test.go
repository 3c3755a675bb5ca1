package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/shared"
)

// newCMSServer answers each known query with the given JSON result.
func newCMSServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		result, ok := results[query]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": {"type": "queryParseError", "description": "unknown query"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ms": 1, "query": "", "result": ` + result + `}`))
	}))
}

func newTestCMS(t *testing.T, server *httptest.Server) *CMSService {
	t.Helper()
	svc, err := NewCMSService(shared.CMSConfig{
		ProjectID:  "proj",
		Dataset:    "production",
		APIVersion: "2023-05-03",
		BaseURL:    server.URL,
		CDNURL:     "https://cdn.example.com",
	}, nil)
	if err != nil {
		t.Fatalf("failed to create cms service: %v", err)
	}
	return svc
}

func TestCMSService(t *testing.T) {
	t.Run("NewCMSService", func(t *testing.T) {
		t.Run("Requires Project", func(t *testing.T) {
			_, err := NewCMSService(shared.CMSConfig{}, nil)
			if !errors.Is(err, shared.ErrMissingConfig) {
				t.Errorf("expected ErrMissingConfig, got %v", err)
			}
		})

		t.Run("Derives CDN Host Without Token", func(t *testing.T) {
			svc, err := NewCMSService(shared.CMSConfig{ProjectID: "proj", UseCDN: true}, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if svc.client.baseURL != "https://proj.apicdn.sanity.io" {
				t.Errorf("unexpected base url %s", svc.client.baseURL)
			}
		})

		t.Run("Uses API Host With Token", func(t *testing.T) {
			svc, err := NewCMSService(shared.CMSConfig{ProjectID: "proj", UseCDN: true, Token: "tok"}, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if svc.client.baseURL != "https://proj.api.sanity.io" {
				t.Errorf("unexpected base url %s", svc.client.baseURL)
			}
		})

		t.Run("Sends Bearer Token", func(t *testing.T) {
			var auth string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				auth = r.Header.Get("Authorization")
				w.Write([]byte(`{"result": []}`))
			}))
			defer server.Close()

			svc, err := NewCMSService(shared.CMSConfig{ProjectID: "proj", BaseURL: server.URL, Token: "secret"}, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, err := svc.Tags(context.Background()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if auth != "Bearer secret" {
				t.Errorf("expected bearer token, got %q", auth)
			}
		})
	})

	t.Run("Uses The Given HTTP Client", func(t *testing.T) {
		var auth, host string
		base := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			auth, host = r.Header.Get("Authorization"), r.URL.Host
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": {"application/json"}},
				Body:       io.NopCloser(strings.NewReader(`{"result": [{"title": "Safety", "slug": "safety"}]}`)),
				Request:    r,
			}, nil
		})}

		svc, err := NewCMSService(shared.CMSConfig{ProjectID: "proj", Token: "secret"}, base)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tags, err := svc.Tags(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tags) != 1 || tags[0].Slug != "safety" {
			t.Errorf("unexpected tags %+v", tags)
		}
		if host != "proj.api.sanity.io" || auth != "Bearer secret" {
			t.Errorf("expected authenticated request through the given client, got host %q auth %q", host, auth)
		}
		if base.Timeout != 0 {
			t.Error("the caller's client must not be modified")
		}
	})

	t.Run("Posts", func(t *testing.T) {
		server := newCMSServer(t, map[string]string{
			QueryPosts: `[{"_id": "p1", "title": "Hello", "slug": "hello", "publishedAt": "2024-01-02T15:04:05Z",
				"image": "image-abc-100x50-png", "categories": [{"title": "News", "slug": "news"}]},
				{"_id": "p2", "title": "Draft", "slug": "draft", "publishedAt": null}]`,
		})
		defer server.Close()

		posts, err := newTestCMS(t, server).Posts(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(posts) != 2 {
			t.Fatalf("expected 2 posts, got %d", len(posts))
		}
		if posts[0].PublishedAt.Year() != 2024 || posts[0].Categories[0].Slug != "news" {
			t.Errorf("unexpected post %+v", posts[0])
		}
		if posts[0].ImageURL != "https://cdn.example.com/images/proj/production/abc-100x50.png?fit=crop&w=800" {
			t.Errorf("unexpected image url %s", posts[0].ImageURL)
		}
		if !posts[1].PublishedAt.IsZero() {
			t.Error("null publishedAt should decode to zero time")
		}
	})

	t.Run("Post Not Found", func(t *testing.T) {
		server := newCMSServer(t, map[string]string{QueryPost: `null`})
		defer server.Close()

		_, err := newTestCMS(t, server).Post(context.Background(), "missing")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Resources Normalizes Tags", func(t *testing.T) {
		server := newCMSServer(t, map[string]string{
			QueryResources: `[{"_id": "r1", "title": "Guide", "slug": "guide", "url": "https://example.com",
				"tags": ["Go", "web dev", "go"], "category": null}]`,
		})
		defer server.Close()

		resources, err := newTestCMS(t, server).Resources(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		r := resources[0]
		if r.Source != models.SourceCMS {
			t.Errorf("expected cms source, got %s", r.Source)
		}
		if len(r.Tags) != 2 || r.Tags[0] != "go" || r.Tags[1] != "web-dev" {
			t.Errorf("unexpected tags %v", r.Tags)
		}
		if r.Category != nil {
			t.Error("expected nil category")
		}
	})

	t.Run("Training Orders Steps", func(t *testing.T) {
		server := newCMSServer(t, map[string]string{
			QueryTraining: `{"_id": "t1", "title": "Onboarding", "slug": "onboarding",
				"steps": [{"_key": "k1", "title": "One", "duration": 5}, {"_key": "k2", "title": "Two"}]}`,
		})
		defer server.Close()

		training, err := newTestCMS(t, server).Training(context.Background(), "onboarding")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(training.Steps) != 2 || training.Steps[1].ID != "k2" || training.Steps[1].Position != 1 {
			t.Errorf("unexpected steps %+v", training.Steps)
		}
	})

	t.Run("Empty List Result", func(t *testing.T) {
		server := newCMSServer(t, map[string]string{QueryTrainings: `null`, QueryTags: `[]`, QueryCategories: `[]`})
		defer server.Close()

		svc := newTestCMS(t, server)
		trainings, err := svc.Trainings(context.Background())
		if err != nil || len(trainings) != 0 {
			t.Errorf("expected empty list, got %v %v", trainings, err)
		}
		if _, err := svc.Categories(context.Background()); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("Query Error", func(t *testing.T) {
		server := newCMSServer(t, map[string]string{})
		defer server.Close()

		_, err := newTestCMS(t, server).Resources(context.Background())
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})
}

func TestImageBuilder(t *testing.T) {
	b := NewImageBuilder("https://cdn.example.com/", "proj", "production")

	tc := []struct {
		name string
		ref  string
		w, h int
		want string
	}{
		{
			name: "no resize",
			ref:  "image-Tb9Ew8CXIwaY6R1kjMvI0uRR-2000x3000-jpg",
			want: "https://cdn.example.com/images/proj/production/Tb9Ew8CXIwaY6R1kjMvI0uRR-2000x3000.jpg",
		},
		{
			name: "width and height",
			ref:  "image-abc-10x20-png",
			w:    300,
			h:    200,
			want: "https://cdn.example.com/images/proj/production/abc-10x20.png?fit=crop&h=200&w=300",
		},
		{name: "missing prefix", ref: "file-abc-10x20-png", want: ""},
		{name: "bad dimensions", ref: "image-abc-tenxtwenty-png", want: ""},
		{name: "too short", ref: "image-abc", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.URL(tt.ref, tt.w, tt.h); got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
