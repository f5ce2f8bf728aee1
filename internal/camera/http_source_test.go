package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "github.com/specimen-imaging/labelstation/internal/errors"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.RGBA{10, 20, 30, 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestSource(url string) *HTTPSource {
	src := NewHTTPSource(url, 2*time.Second)
	src.backoff = func(int) time.Duration { return time.Millisecond }
	return src
}

func TestHTTPSource_RetryLogic(t *testing.T) {
	tests := []struct {
		name          string
		responses     []int
		expectCalls   int
		expectError   bool
		errorContains string
	}{
		{
			name:        "Success on first attempt",
			responses:   []int{200},
			expectCalls: 1,
		},
		{
			name:        "Success on second attempt after 5xx",
			responses:   []int{500, 200},
			expectCalls: 2,
		},
		{
			name:          "4xx client error - no retry",
			responses:     []int{404},
			expectCalls:   1,
			expectError:   true,
			errorContains: "client error: status code 404",
		},
		{
			name:          "4xx after 5xx - stop on 4xx",
			responses:     []int{500, 404},
			expectCalls:   2,
			expectError:   true,
			errorContains: "client error: status code 404",
		},
		{
			name:          "All 5xx errors - retry all attempts",
			responses:     []int{500, 502, 503},
			expectCalls:   3,
			expectError:   true,
			errorContains: "server error: status code 503",
		},
	}

	body := pngBytes(t, 4, 3)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls >= len(tt.responses) {
					w.WriteHeader(500)
					return
				}
				status := tt.responses[calls]
				calls++
				if status == 200 {
					w.Header().Set("Content-Type", "image/png")
					w.Write(body)
					return
				}
				w.WriteHeader(status)
				w.Write([]byte(fmt.Sprintf("Error %d", status)))
			}))
			defer server.Close()

			src := newTestSource(server.URL)
			defer src.Release()

			frame, err := src.Read()

			if calls != tt.expectCalls {
				t.Errorf("Expected %d requests, got %d", tt.expectCalls, calls)
			}
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, but got none")
				}
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to contain '%s', got: %s", tt.errorContains, err)
				}
				if !apperrors.HasCode(err, apperrors.CodeNoFrame) {
					t.Errorf("Expected NO_FRAME code, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got: %s", err)
			}
			if frame.Bounds().Dx() != 4 || frame.Bounds().Dy() != 3 {
				t.Errorf("Expected 4x3 frame, got %v", frame.Bounds())
			}
			if frame.Device != src.Describe() {
				t.Errorf("Expected device %q, got %q", src.Describe(), frame.Device)
			}
		})
	}
}

func TestHTTPSource_UndecodableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not an image"))
	}))
	defer server.Close()

	src := newTestSource(server.URL)
	defer src.Release()

	if _, err := src.Read(); err == nil || !strings.Contains(err.Error(), "decode") {
		t.Errorf("Expected decode error, got %v", err)
	}
}

func TestHTTPSource_ReadAfterRelease(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer server.Close()

	src := newTestSource(server.URL)
	if err := src.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := src.Release(); err != nil {
		t.Errorf("Expected second Release to be harmless, got %v", err)
	}
	if _, err := src.Read(); err == nil {
		t.Error("Expected Read to fail after Release")
	}
}
