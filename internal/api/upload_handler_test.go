package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/harryheman/slack-clone/internal/service"
	"github.com/labstack/echo/v4"
)

func TestGenerateUploadURL(t *testing.T) {
	d := newTestDeps()
	var gotExpiry time.Duration
	d.storage.PresignPutFn = func(_ context.Context, key string, expiry time.Duration) (string, error) {
		gotExpiry = expiry
		return "https://storage.test/put/" + key, nil
	}
	h := d.uploadHandler()

	c, rec := newTestContext(http.MethodPost, "/api/v1/workspaces/1000/uploads", strings.NewReader(`{"content_type":"image/png"}`))
	c.SetParamNames("id")
	c.SetParamValues("1000")
	setAuthUser(c, testUserID)

	if err := h.GenerateUploadURL(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var target service.UploadTarget
	if err := json.Unmarshal(rec.Body.Bytes(), &target); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !strings.HasPrefix(target.Key, "images/1000/") {
		t.Errorf("expected key under the workspace prefix, got %q", target.Key)
	}
	if target.UploadURL != "https://storage.test/put/"+target.Key {
		t.Errorf("unexpected upload url %q", target.UploadURL)
	}
	if gotExpiry != 15*time.Minute {
		t.Errorf("expected 15m expiry, got %v", gotExpiry)
	}
	if !target.ExpiresAt.After(time.Now()) {
		t.Errorf("expected expiry in the future, got %v", target.ExpiresAt)
	}
}

func TestGenerateUploadURL_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(d *testDeps)
		wantStatus int
		wantCode   string
	}{
		{
			name:       "not an image",
			body:       `{"content_type":"application/pdf"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_CONTENT_TYPE",
		},
		{
			name: "not a member",
			body: `{"content_type":"image/jpeg"}`,
			setup: func(d *testDeps) {
				d.members = nonMember()
			},
			wantStatus: http.StatusForbidden,
			wantCode:   "NOT_A_MEMBER",
		},
		{
			name: "storage failure",
			body: `{"content_type":"image/jpeg"}`,
			setup: func(d *testDeps) {
				d.storage.PresignPutFn = func(context.Context, string, time.Duration) (string, error) {
					return "", errStore
				}
			},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "STORE_UNAVAILABLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			if tt.setup != nil {
				tt.setup(d)
			}
			h := d.uploadHandler()

			c, rec := newTestContext(http.MethodPost, "/api/v1/workspaces/1000/uploads", strings.NewReader(tt.body))
			c.SetParamNames("id")
			c.SetParamValues("1000")
			setAuthUser(c, testUserID)

			if err := h.GenerateUploadURL(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			expectError(t, rec.Code, rec.Body.Bytes(), tt.wantStatus, tt.wantCode)
		})
	}
}

func multipartImage(t *testing.T, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="cat.png"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		t.Fatalf("creating part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("writing part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestUploadImage(t *testing.T) {
	d := newTestDeps()
	var gotKey, gotType string
	var gotBytes []byte
	d.storage.UploadFn = func(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
		gotKey, gotType = key, contentType
		gotBytes, _ = io.ReadAll(r)
		return nil
	}
	h := d.uploadHandler()

	body, ct := multipartImage(t, "image/png", []byte("png-bytes"))
	c, rec := newTestContext(http.MethodPost, "/api/v1/workspaces/1000/images", body)
	c.Request().Header.Set(echo.HeaderContentType, ct)
	c.SetParamNames("id")
	c.SetParamValues("1000")
	setAuthUser(c, testUserID)

	if err := h.UploadImage(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["key"] != gotKey || !strings.HasPrefix(gotKey, "images/1000/") {
		t.Errorf("unexpected key %q (stored %q)", resp["key"], gotKey)
	}
	if gotType != "image/png" || string(gotBytes) != "png-bytes" {
		t.Errorf("unexpected stored object %q %q", gotType, gotBytes)
	}
}

func TestUploadImage_RejectsNonImage(t *testing.T) {
	d := newTestDeps()
	d.storage.UploadFn = func(context.Context, string, io.Reader, int64, string) error {
		t.Error("storage must not be called")
		return nil
	}
	h := d.uploadHandler()

	body, ct := multipartImage(t, "text/plain", []byte("hello"))
	c, rec := newTestContext(http.MethodPost, "/api/v1/workspaces/1000/images", body)
	c.Request().Header.Set(echo.HeaderContentType, ct)
	c.SetParamNames("id")
	c.SetParamValues("1000")
	setAuthUser(c, testUserID)

	if err := h.UploadImage(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectError(t, rec.Code, rec.Body.Bytes(), http.StatusBadRequest, "INVALID_CONTENT_TYPE")
}

func TestUploadImage_MissingFile(t *testing.T) {
	d := newTestDeps()
	h := d.uploadHandler()

	c, rec := newTestContext(http.MethodPost, "/api/v1/workspaces/1000/images", strings.NewReader(`{}`))
	c.SetParamNames("id")
	c.SetParamValues("1000")
	setAuthUser(c, testUserID)

	if err := h.UploadImage(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectError(t, rec.Code, rec.Body.Bytes(), http.StatusBadRequest, "MISSING_FILE")
}
