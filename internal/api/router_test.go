package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/timmy/memevote/internal/api/middleware"
	"github.com/timmy/memevote/internal/domain"
	"github.com/timmy/memevote/internal/repository"
	"github.com/timmy/memevote/internal/service"
	"github.com/timmy/memevote/internal/storage"
)

type testServer struct {
	router *gin.Engine
	store  *repository.DocumentStore
	fs     afero.Fs
}

func newTestServer(t *testing.T, eligible ...string) *testServer {
	t.Helper()

	fs := afero.NewMemMapFs()
	backend, err := repository.NewFileBackend(fs, "/data")
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	store := repository.NewDocumentStore(backend)
	if err := store.SaveEligibility(context.Background(), &domain.EligibilityDocument{EligibleAddresses: eligible}); err != nil {
		t.Fatalf("SaveEligibility: %v", err)
	}

	uploads := storage.NewLocalStorage(fs, "/uploads", "")
	voting := service.NewVotingService(store, service.NewEligibilityOracle(store), nil, nil, nil, nil)

	router := SetupRouter(&RouterConfig{
		Mode:      "test",
		CORS:      middleware.CORSConfig{AllowedOrigins: []string{"http://localhost:3000", "https://*.vercel.app"}},
		Voting:    voting,
		Allowlist: service.NewAllowlistService(store),
		Images:    service.NewImageService(uploads, 1024),
		Uploads:   uploads,
	})

	return &testServer{router: router, store: store, fs: fs}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/health", "/api/health"} {
		w, body := s.do(t, http.MethodGet, path, nil)
		if w.Code != http.StatusOK || body["status"] != "ok" {
			t.Errorf("GET %s = %d %v", path, w.Code, body)
		}
	}
}

func TestVoteFlow(t *testing.T) {
	s := newTestServer(t, "0xaaa", "0xbbb")

	w, body := s.do(t, http.MethodPost, "/api/memes", map[string]string{
		"title":          "T",
		"description":    "D",
		"imageUrl":       "http://x/img.png",
		"creatorAddress": "0xAAA",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create = %d %v", w.Code, body)
	}
	meme := body["meme"].(map[string]interface{})
	id := meme["id"].(string)
	if meme["creatorAddress"] != "0xaaa" {
		t.Errorf("creatorAddress = %v", meme["creatorAddress"])
	}

	tests := []struct {
		name      string
		path      string
		voter     interface{}
		wantCode  int
		wantError string
	}{
		{name: "missing voter", path: "/api/memes/" + id + "/vote", voter: map[string]string{}, wantCode: 400, wantError: "Voter address is required"},
		{name: "ineligible", path: "/api/memes/" + id + "/vote", voter: map[string]string{"voterAddress": "0xccc"}, wantCode: 403, wantError: "Address not eligible for voting"},
		{name: "unknown meme", path: "/api/memes/nope/vote", voter: map[string]string{"voterAddress": "0xbbb"}, wantCode: 404, wantError: "Meme not found"},
		{name: "accepted", path: "/api/memes/" + id + "/vote", voter: map[string]string{"voterAddress": "0xBBB"}, wantCode: 200},
		{name: "duplicate", path: "/api/memes/" + id + "/vote", voter: map[string]string{"voterAddress": "0xbbb"}, wantCode: 400, wantError: "Already voted for this meme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := s.do(t, http.MethodPost, tt.path, tt.voter)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%v)", w.Code, tt.wantCode, body)
			}
			if tt.wantError != "" && body["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", body["error"], tt.wantError)
			}
			if tt.wantCode == 200 {
				m := body["meme"].(map[string]interface{})
				if body["success"] != true || m["votes"].(float64) != 1 || m["votePercentage"].(float64) != 100 {
					t.Errorf("unexpected vote response %v", body)
				}
			}
		})
	}

	w, body = s.do(t, http.MethodGet, "/api/memes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	memes := body["memes"].([]interface{})
	if len(memes) != 1 {
		t.Fatalf("got %d memes, want 1", len(memes))
	}
}

func TestCreateMemeErrors(t *testing.T) {
	s := newTestServer(t, "0xaaa")
	valid := map[string]string{
		"title": "T", "description": "D", "imageUrl": "http://x/img.png", "creatorAddress": "0xaaa",
	}

	w, body := s.do(t, http.MethodPost, "/api/memes", map[string]string{"title": "T"})
	if w.Code != http.StatusBadRequest || body["error"] != "All fields are required" {
		t.Errorf("missing fields = %d %v", w.Code, body)
	}

	for _, u := range []string{"img.png", "javascript:alert(1)"} {
		bad := map[string]string{"title": "T", "description": "D", "imageUrl": u, "creatorAddress": "0xaaa"}
		if w, body := s.do(t, http.MethodPost, "/api/memes", bad); w.Code != http.StatusBadRequest {
			t.Errorf("imageUrl %q = %d %v", u, w.Code, body)
		}
	}

	if w, _ := s.do(t, http.MethodPost, "/api/memes", valid); w.Code != http.StatusOK {
		t.Fatalf("first create = %d", w.Code)
	}
	w, body = s.do(t, http.MethodPost, "/api/memes", valid)
	if w.Code != http.StatusForbidden || !strings.Contains(body["error"].(string), "already created") {
		t.Errorf("second create = %d %v", w.Code, body)
	}

	valid["creatorAddress"] = "0xzzz"
	w, body = s.do(t, http.MethodPost, "/api/memes", valid)
	if w.Code != http.StatusForbidden || body["error"] != "Address not eligible for creating memes" {
		t.Errorf("ineligible create = %d %v", w.Code, body)
	}
}

func TestCheckEligibility(t *testing.T) {
	s := newTestServer(t, "0xaaa")

	w, body := s.do(t, http.MethodPost, "/api/check-eligibility", map[string]string{})
	if w.Code != http.StatusBadRequest || body["error"] != "Address is required" {
		t.Errorf("missing address = %d %v", w.Code, body)
	}

	w, body = s.do(t, http.MethodPost, "/api/check-eligibility", map[string]string{"address": "0xAAA"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["address"] != "0xaaa" || body["canVote"] != true || body["canCreate"] != true ||
		body["remainingVotes"].(float64) != 2 || body["voteLimit"].(float64) != 2 {
		t.Errorf("unexpected status %v", body)
	}

	w, body = s.do(t, http.MethodGet, "/api/eligible-addresses", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("eligible-addresses = %d", w.Code)
	}
	if list := body["eligibleAddresses"].([]interface{}); len(list) != 1 || list[0] != "0xaaa" {
		t.Errorf("eligibleAddresses = %v", list)
	}
}

func multipartImage(t *testing.T, fields map[string]string, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(data)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestUploadImage(t *testing.T) {
	s := newTestServer(t, "0xaaa")

	body, contentType := multipartImage(t, nil, "pic.png", pngBytes(t))
	req := httptest.NewRequest(http.MethodPost, "/api/upload-image", body)
	req.Header.Set("Content-Type", contentType)
	req.Host = "memes.example.com"
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("upload = %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Success  bool   `json:"success"`
		ImageURL string `json:"imageUrl"`
		Filename string `json:"filename"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Success || resp.ImageURL != "http://memes.example.com/uploads/"+resp.Filename {
		t.Errorf("unexpected response %+v", resp)
	}

	// The stored file is served back with cache headers
	get := httptest.NewRequest(http.MethodGet, "/uploads/"+resp.Filename, nil)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, get)
	if w.Code != http.StatusOK {
		t.Fatalf("GET upload = %d", w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=31536000" {
		t.Errorf("Cache-Control = %q", cc)
	}

	// In-flight temp files are never served
	if err := afero.WriteFile(s.fs, "/uploads/"+storage.TempFilePrefix+"123", []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/uploads/"+storage.TempFilePrefix+"123", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("GET temp file = %d, want 404", w.Code)
	}
}

func TestUploadImageRejects(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name      string
		filename  string
		data      []byte
		wantError string
	}{
		{name: "no file", filename: "", wantError: "No image file uploaded"},
		{name: "not an image", filename: "notes.txt", data: []byte("plain text"), wantError: "Only image files are allowed!"},
		{name: "too large", filename: "big.png", data: append(pngBytes(t), make([]byte, 2048)...), wantError: "File too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartImage(t, map[string]string{"x": "y"}, tt.filename, tt.data)
			req := httptest.NewRequest(http.MethodPost, "/api/upload-image", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", w.Code, w.Body.String())
			}
			var resp map[string]string
			json.Unmarshal(w.Body.Bytes(), &resp)
			if resp["error"] != tt.wantError {
				t.Errorf("error = %q, want %q", resp["error"], tt.wantError)
			}
		})
	}
}

func TestCreateMemeMultipart(t *testing.T) {
	s := newTestServer(t, "0xaaa")

	body, contentType := multipartImage(t, map[string]string{
		"title":          "T",
		"description":    "D",
		"creatorAddress": "0xaaa",
	}, "pic.png", pngBytes(t))
	req := httptest.NewRequest(http.MethodPost, "/api/memes", body)
	req.Header.Set("Content-Type", contentType)
	req.Host = "localhost:5000"
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Meme domain.Meme `json:"meme"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.HasPrefix(resp.Meme.ImageURL, "http://localhost:5000/uploads/") {
		t.Errorf("imageUrl = %q", resp.Meme.ImageURL)
	}
}

func TestCreateMemeMultipartRejectedRemovesImage(t *testing.T) {
	s := newTestServer(t, "0xaaa")

	tests := []struct {
		name     string
		fields   map[string]string
		wantCode int
	}{
		{
			name:     "ineligible creator",
			fields:   map[string]string{"title": "T", "description": "D", "creatorAddress": "0xzzz"},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "missing title",
			fields:   map[string]string{"description": "D", "creatorAddress": "0xaaa"},
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				body, contentType := multipartImage(t, tt.fields, "pic.png", pngBytes(t))
				req := httptest.NewRequest(http.MethodPost, "/api/memes", body)
				req.Header.Set("Content-Type", contentType)
				w := httptest.NewRecorder()
				s.router.ServeHTTP(w, req)
				if w.Code != tt.wantCode {
					t.Fatalf("create = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
				}
			}

			entries, err := afero.ReadDir(s.fs, "/uploads")
			if err != nil {
				t.Fatalf("ReadDir: %v", err)
			}
			if len(entries) != 0 {
				t.Errorf("%d files left in /uploads after rejected creates", len(entries))
			}
		})
	}
}

func TestServerErrorCarriesRequestID(t *testing.T) {
	s := newTestServer(t, "0xaaa")
	if err := afero.WriteFile(s.fs, "/data/eligible-addresses.json", []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}

	w, body := s.do(t, http.MethodGet, "/api/eligible-addresses", nil)
	if w.Code != http.StatusInternalServerError || body["error"] != "Failed to load eligible addresses" {
		t.Fatalf("eligible-addresses = %d %v", w.Code, body)
	}
	id := w.Header().Get(middleware.RequestIDHeader)
	if id == "" || body["requestId"] != id {
		t.Errorf("requestId = %v, header = %q", body["requestId"], id)
	}
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		origin     string
		wantHeader string
	}{
		{"http://localhost:3000", "http://localhost:3000"},
		{"https://preview-123.vercel.app", "https://preview-123.vercel.app"},
		{"https://evil.example.com", ""},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/memes", nil)
		req.Header.Set("Origin", tt.origin)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
			t.Errorf("origin %s: Allow-Origin = %q, want %q", tt.origin, got, tt.wantHeader)
		}
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/memes/x/vote", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight = %d, want 204", w.Code)
	}
}
