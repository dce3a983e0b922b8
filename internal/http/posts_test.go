package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicreport/internal/models"
	"civicreport/internal/store"
)

func TestListPostsEnvelope(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "GET", "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["posts"], 2)

	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 1, pagination["currentPage"])
	assert.EqualValues(t, 1, pagination["totalPages"])
	assert.EqualValues(t, 2, pagination["totalPosts"])
	assert.Equal(t, false, pagination["hasNextPage"])
	assert.Equal(t, false, pagination["hasPrevPage"])
}

func TestListPostsPaginationMetadata(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "GET", "/api/posts?page=1&limit=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	pagination := decodeBody(t, w)["pagination"].(map[string]any)
	assert.EqualValues(t, 2, pagination["totalPages"])
	assert.Equal(t, true, pagination["hasNextPage"])
	assert.Equal(t, false, pagination["hasPrevPage"])

	w = s.do(t, "GET", "/api/posts?page=2&limit=1", "", nil)
	pagination = decodeBody(t, w)["pagination"].(map[string]any)
	assert.Equal(t, false, pagination["hasNextPage"])
	assert.Equal(t, true, pagination["hasPrevPage"])
}

func TestListPostsCategoryFilter(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "GET", "/api/posts?category="+models.CategoryUtilities, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	posts := body["posts"].([]any)
	require.Len(t, posts, 1)
	assert.Equal(t, models.CategoryUtilities, posts[0].(map[string]any)["category"])
}

func TestGetPostIncrementsViews(t *testing.T) {
	s := newTestServer(t)
	path := "/api/posts/" + s.posts[0].ID.Hex()

	w := s.do(t, "GET", path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decodeBody(t, w)["post"].(map[string]any)["views"].(float64)

	w = s.do(t, "GET", path, "", nil)
	second := decodeBody(t, w)["post"].(map[string]any)["views"].(float64)
	assert.Equal(t, first+1, second)
}

func TestGetPostErrors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "GET", "/api/posts/not-a-hex-id", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, "GET", "/api/posts/64f000000000000000000099", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func validPostFields() map[string]string {
	return map[string]string{
		"title":       "Blocked storm drain",
		"description": "Water pooling after every rain",
		"category":    models.CategorySanitation,
		"subcategory": "Blocked drains",
		"severity":    "3",
		"address":     "Elm Street 12",
		"lat":         "40.7130",
		"lng":         "-74.0050",
	}
}

func TestCreatePost(t *testing.T) {
	s := newTestServer(t)

	w := s.doForm(t, "/api/posts", s.bearerFor(t, s.users[0]), validPostFields())
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	post := body["post"].(map[string]any)
	assert.Equal(t, "Blocked storm drain", post["title"])
	assert.Equal(t, "open", post["status"])
	assert.Equal(t, "medium", post["priority"])
	author := post["author"].(map[string]any)
	assert.Equal(t, "alice", author["username"])

	// The author's counter moved with the insert.
	u, err := s.store.UserByID(context.Background(), s.users[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, u.PostsCount)
}

func TestCreatePostRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	w := s.doForm(t, "/api/posts", "", validPostFields())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func pngUpload(name string, size int) formFile {
	return formFile{field: "images", name: name, contentType: "image/png", data: bytes.Repeat([]byte{0x89}, size)}
}

func TestCreatePostSavesImages(t *testing.T) {
	s := newTestServer(t)

	files := []formFile{pngUpload("street.png", 64), pngUpload("closeup.png", 64)}
	w := s.doFormWithFiles(t, "/api/posts", s.bearerFor(t, s.users[0]), validPostFields(), files)
	require.Equal(t, http.StatusCreated, w.Code)

	images := decodeBody(t, w)["post"].(map[string]any)["images"].([]any)
	require.Len(t, images, 2)
	for _, raw := range images {
		img := raw.(map[string]any)
		name := img["filename"].(string)

		// Names are regenerated server-side, never taken from the client.
		assert.True(t, strings.HasPrefix(name, "post-"), name)
		assert.True(t, strings.HasSuffix(name, ".png"), name)
		assert.NotContains(t, []string{"street.png", "closeup.png"}, name)
		assert.Equal(t, "/uploads/posts/"+name, img["url"])

		_, err := os.Stat(filepath.Join(s.cfg.UploadDir, "posts", name))
		assert.NoError(t, err)
	}
}

func TestCreatePostRejectsTooManyImages(t *testing.T) {
	s := newTestServer(t)

	var files []formFile
	for i := 0; i < maxImages+1; i++ {
		files = append(files, pngUpload(fmt.Sprintf("shot-%d.png", i), 16))
	}
	w := s.doFormWithFiles(t, "/api/posts", s.bearerFor(t, s.users[0]), validPostFields(), files)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["message"], "At most 5")

	_, total, err := s.store.ListPosts(context.Background(), store.PostQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestCreatePostRejectsOversizeImage(t *testing.T) {
	s := newTestServer(t)

	files := []formFile{pngUpload("huge.png", maxImageSize+1)}
	w := s.doFormWithFiles(t, "/api/posts", s.bearerFor(t, s.users[0]), validPostFields(), files)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCreatePostRejectsNonImageUploads(t *testing.T) {
	s := newTestServer(t)
	auth := s.bearerFor(t, s.users[0])

	cases := []struct {
		label string
		file  formFile
	}{
		{"wrong extension", formFile{field: "images", name: "report.txt", contentType: "text/plain", data: []byte("notes")}},
		{"wrong declared type", formFile{field: "images", name: "scan.png", contentType: "application/pdf", data: []byte("pdfish")}},
		{"image type, bad extension", formFile{field: "images", name: "payload.exe", contentType: "image/png", data: []byte{0x4d, 0x5a}}},
	}
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			w := s.doFormWithFiles(t, "/api/posts", auth, validPostFields(), []formFile{tc.file})
			assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
		})
	}
}

func TestCreatePostWithoutMultipartHasNoImages(t *testing.T) {
	s := newTestServer(t)

	form := url.Values{}
	for k, v := range validPostFields() {
		form.Set(k, v)
	}
	req := httptest.NewRequest("POST", "/api/posts", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", s.bearerFor(t, s.users[0]))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	images := decodeBody(t, w)["post"].(map[string]any)["images"].([]any)
	assert.Empty(t, images)
}

func TestCreatePostMissingFieldPersistsNothing(t *testing.T) {
	s := newTestServer(t)
	auth := s.bearerFor(t, s.users[0])

	for _, missing := range []string{"title", "description", "category", "subcategory", "severity", "address", "lat", "lng"} {
		fields := validPostFields()
		delete(fields, missing)

		w := s.doForm(t, "/api/posts", auth, fields)
		assert.Equalf(t, http.StatusBadRequest, w.Code, "expected 400 when %q is missing", missing)
	}

	_, total, err := s.store.ListPosts(context.Background(), store.PostQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total, "no partial post may be persisted")
}

func TestCreatePostRejectsUnknownCategory(t *testing.T) {
	s := newTestServer(t)

	fields := validPostFields()
	fields["category"] = "volcanoes"
	w := s.doForm(t, "/api/posts", s.bearerFor(t, s.users[0]), fields)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVoteTogglePair(t *testing.T) {
	s := newTestServer(t)
	path := "/api/posts/" + s.posts[0].ID.Hex() + "/vote"
	auth := s.bearerFor(t, s.users[1])

	w := s.do(t, "POST", path, auth, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["hasVoted"])
	assert.EqualValues(t, 1, body["voteCount"])

	w = s.do(t, "POST", path, auth, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, false, body["hasVoted"])
	assert.EqualValues(t, 0, body["voteCount"])

	p, err := s.store.PostByID(context.Background(), s.posts[0].ID, false)
	require.NoError(t, err)
	assert.False(t, p.HasVoteFrom(s.users[1].ID))
	assert.Equal(t, 0, p.VoteCount)
}

func TestVoteRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "POST", "/api/posts/"+s.posts[0].ID.Hex()+"/vote", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSimilarPostsScenario(t *testing.T) {
	s := newTestServer(t)

	// The fixture pothole is severity 4, infrastructure-roads, at
	// (-74.006, 40.7128); querying the same point within 1000m must
	// return it.
	path := fmt.Sprintf("/api/posts/similar?category=%s&lat=40.7128&lng=-74.006&radius=1000",
		models.CategoryInfrastructure)
	w := s.do(t, "GET", path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	similar := decodeBody(t, w)["similarPosts"].([]any)
	require.Len(t, similar, 1)
	got := similar[0].(map[string]any)
	assert.Equal(t, s.posts[0].ID.Hex(), got["id"])
	assert.EqualValues(t, 4, got["severity"])
}

func TestSimilarPostsRequiresCategoryAndLocation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "GET", "/api/posts/similar?lat=40.7&lng=-74.0", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, "GET", "/api/posts/similar?category="+models.CategoryInfrastructure, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddCommentAndReply(t *testing.T) {
	s := newTestServer(t)
	path := "/api/posts/" + s.posts[0].ID.Hex() + "/comment"

	w := s.do(t, "POST", path, s.bearerFor(t, s.users[1]), map[string]string{
		"content": "I saw this too, it is getting worse",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	parent := decodeBody(t, w)["comment"].(map[string]any)
	parentID := parent["id"].(string)

	w = s.do(t, "POST", path, s.bearerFor(t, s.users[0]), map[string]any{
		"content":       "Reported it to the council last week",
		"parentComment": parentID,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	reply := decodeBody(t, w)["comment"].(map[string]any)
	assert.Equal(t, parentID, reply["parentComment"])

	p, err := s.store.PostByID(context.Background(), s.posts[0].ID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, p.CommentCount)
}

func TestAddCommentRejectsBlankContent(t *testing.T) {
	s := newTestServer(t)
	path := "/api/posts/" + s.posts[0].ID.Hex() + "/comment"

	w := s.do(t, "POST", path, s.bearerFor(t, s.users[1]), map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHidePostModeration(t *testing.T) {
	s := newTestServer(t)
	path := "/api/posts/" + s.posts[0].ID.Hex()

	w := s.do(t, "DELETE", path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Wrong token.
	r := s.doWithAdminToken(t, path, "wrong-token")
	assert.Equal(t, http.StatusForbidden, r.Code)

	// Correct token hides the post.
	r = s.doWithAdminToken(t, path, s.cfg.AdminToken)
	require.Equal(t, http.StatusOK, r.Code)

	w = s.do(t, "GET", path, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
