package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestHTTPTimeoutFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})

	t.Run("duration format", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "45s")
		if got := httpTimeoutFromEnv(); got != 45*time.Second {
			t.Fatalf("expected 45s timeout, got %v", got)
		}
	})

	t.Run("integer seconds", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "25")
		if got := httpTimeoutFromEnv(); got != 25*time.Second {
			t.Fatalf("expected 25s timeout, got %v", got)
		}
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "invalid")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})
}

func TestCreatePostSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/posts" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if got := r.FormValue("author"); got != "kim" {
			t.Errorf("expected author kim, got %q", got)
		}
		if got := r.MultipartForm.Value["tags"]; !reflect.DeepEqual(got, []string{"go", "cats"}) {
			t.Errorf("expected repeated tags, got %v", got)
		}
		files := r.MultipartForm.File["images"]
		if len(files) != 2 || files[0].Filename != "a.png" || files[1].Filename != `we"ird.jpg` {
			t.Errorf("unexpected files: %+v", files)
			return
		}
		if ct := files[0].Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("expected image/png, got %q", ct)
		}
		if ct := files[1].Header.Get("Content-Type"); ct != "application/octet-stream" {
			t.Errorf("expected default content type, got %q", ct)
		}
		f, _ := files[0].Open()
		data, _ := io.ReadAll(f)
		f.Close()
		if string(data) != "PNGDATA" {
			t.Errorf("unexpected file body %q", data)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(PostResponse{ID: 7, Author: "kim", Title: "hello", Tags: []string{"go", "cats"}, Images: []ImageResponse{}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL + "/")
	resp, err := client.CreatePost(context.Background(), PostWriteRequest{
		Author:   "kim",
		Title:    "hello",
		Password: "pw",
		Tags:     []string{"go", "cats"},
		Images: []UploadFile{
			{Name: "a.png", ContentType: "image/png", Body: strings.NewReader("PNGDATA")},
			{Name: `we"ird.jpg`, Body: strings.NewReader("JPG")},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if resp.ID != 7 || resp.Title != "hello" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestDeletePostSendsPasswordBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/posts/12" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req PostDeleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password != "pw" {
			t.Errorf("expected password body, got %+v err=%v", req, err)
		}
		_ = json.NewEncoder(w).Encode(PostDeleteResponse{ID: 12})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).DeletePost(context.Background(), 12, "pw")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if resp.ID != 12 {
		t.Fatalf("expected id 12, got %d", resp.ID)
	}
}

func TestClientDecodesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "invalid password", Code: "forbidden", ErrorCode: 3002})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetPost(context.Background(), 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.ErrorCode != 3002 || apiErr.Code != "forbidden" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if apiErr.Error() != "forbidden: invalid password" {
		t.Fatalf("unexpected message %q", apiErr.Error())
	}
}

func TestClientNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Ping(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 APIError, got %v", err)
	}
	if !strings.Contains(apiErr.Message, "502") {
		t.Fatalf("expected status in message, got %q", apiErr.Message)
	}
}

func TestSweepSendsAdminToken(t *testing.T) {
	t.Setenv(adminTokenEnvKey, "admintoken")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(AdminTokenHeader) != "admintoken" {
			t.Errorf("expected admin token header")
		}
		if r.URL.Query().Get("apply") != "true" || r.URL.Query().Get("grace") != "2h0m0s" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(SweepResponse{CandidateCount: 3, DeletedCount: 3})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).Sweep(context.Background(), true, 2*time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if resp.DeletedCount != 3 || resp.DryRun {
		t.Fatalf("unexpected sweep response: %+v", resp)
	}
}

func TestPostRequestsOmitAdminToken(t *testing.T) {
	t.Setenv(adminTokenEnvKey, "admintoken")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(AdminTokenHeader) != "" {
			t.Errorf("admin token leaked to %s", r.URL.Path)
		}
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	posts, err := NewClient(srv.URL).ListPosts(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(posts) != 0 {
		t.Fatalf("expected no posts, got %d", len(posts))
	}
}
