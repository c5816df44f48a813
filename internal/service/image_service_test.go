package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	config "github.com/maheshrc27/contentflow/configs"
	"github.com/maheshrc27/contentflow/internal/transfer"
)

func TestGenerateImageWritesFile(t *testing.T) {
	t.Parallel()

	var got transfer.HuggingFaceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer hf" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader)
	}))
	defer srv.Close()

	svc := NewImageService(config.Config{HuggingFace: config.HuggingFace{
		Token: "hf", ModelURL: srv.URL, Width: 512, Height: 512, Steps: 4,
	}})

	out := filepath.Join(t.TempDir(), "images", "generated.png")
	path, err := svc.GenerateImage(context.Background(), "a lighthouse at dawn", out)
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if path != out {
		t.Fatalf("path = %q, want %q", path, out)
	}
	data, err := os.ReadFile(out)
	if err != nil || !bytes.Equal(data, pngHeader) {
		t.Fatalf("written image = %v, %v", data, err)
	}
	if got.Inputs != "a lighthouse at dawn" || got.Parameters.Width != 512 || got.Parameters.NumInferenceSteps != 4 {
		t.Fatalf("request = %+v", got)
	}
}

func TestGenerateImageErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/text" {
			_, _ = w.Write([]byte("not an image"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Model is currently loading","estimated_time":20}`))
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "x.png")

	noToken := NewImageService(config.Config{HuggingFace: config.HuggingFace{ModelURL: srv.URL}})
	if _, err := noToken.GenerateImage(context.Background(), "p", out); !errors.Is(err, ErrNoImageToken) {
		t.Fatalf("GenerateImage() without token = %v", err)
	}

	loading := NewImageService(config.Config{HuggingFace: config.HuggingFace{Token: "hf", ModelURL: srv.URL}})
	if _, err := loading.GenerateImage(context.Background(), "p", out); err == nil || !strings.Contains(err.Error(), "loading") {
		t.Fatalf("GenerateImage() loading = %v", err)
	}

	text := NewImageService(config.Config{HuggingFace: config.HuggingFace{Token: "hf", ModelURL: srv.URL + "/text"}})
	if _, err := text.GenerateImage(context.Background(), "p", out); err == nil {
		t.Fatalf("GenerateImage() accepted a text payload")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("image file written on failure")
	}
}
