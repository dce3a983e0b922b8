package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"civicreport/internal/config"
	"civicreport/internal/models"
	"civicreport/internal/store"
	"civicreport/internal/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	store  *store.Memory
	cfg    config.Config
	users  []models.User
	posts  []models.Post
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.Config{
		Port:       "0",
		JWTSecret:  "test-secret",
		AdminToken: "test-admin-token",
		CORSOrigin: "*",
		UploadDir:  t.TempDir(),
	}
	mem := store.NewMemory()

	ctx := context.Background()
	users := []models.User{
		{Username: "alice", Email: "alice@example.com", Password: "x", FullName: "Alice A"},
		{Username: "bob", Email: "bob@example.com", Password: "x", FullName: "Bob B"},
	}
	for i := range users {
		require.NoError(t, mem.CreateUser(ctx, &users[i]))
	}

	posts := []models.Post{
		{
			Title:       "Pothole on Main Street",
			Description: "Deep pothole damaging vehicles",
			Category:    models.CategoryInfrastructure,
			Subcategory: "Potholes",
			Severity:    4,
			Location: models.Location{
				Type:        "Point",
				Coordinates: []float64{-74.006, 40.7128},
				Address:     "Main Street & 5th Avenue",
			},
			AuthorID: users[0].ID,
		},
		{
			Title:       "Streetlight out on Oak Street",
			Description: "Dark corner at night",
			Category:    models.CategoryUtilities,
			Subcategory: "Streetlight not working",
			Severity:    3,
			Location: models.Location{
				Type:        "Point",
				Coordinates: []float64{-74.008, 40.7118},
				Address:     "Oak Street & Elm Avenue",
			},
			AuthorID: users[1].ID,
		},
	}
	for i := range posts {
		require.NoError(t, mem.CreatePost(ctx, &posts[i]))
	}

	router := gin.New()
	SetupRoutes(router, mem, cfg)
	return &testServer{router: router, store: mem, cfg: cfg, users: users, posts: posts}
}

func (s *testServer) bearerFor(t *testing.T, u models.User) string {
	t.Helper()
	tok, err := token.Generate([]byte(s.cfg.JWTSecret), u.ID.Hex())
	require.NoError(t, err)
	return "Bearer " + tok
}

func (s *testServer) do(t *testing.T, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// doForm posts multipart form fields the way the create-post page does.
func (s *testServer) doForm(t *testing.T, path, auth string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// formFile is an attachment for doFormWithFiles. The content type is
// set explicitly because CreateFormFile would force octet-stream.
type formFile struct {
	field       string
	name        string
	contentType string
	data        []byte
}

func (s *testServer) doFormWithFiles(t *testing.T, path, auth string, fields map[string]string, files []formFile) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.name))
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doWithAdminToken(t *testing.T, path, adminToken string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest("DELETE", path, nil)
	req.Header.Set("X-Admin-Token", adminToken)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
