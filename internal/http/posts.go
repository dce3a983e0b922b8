package http

import (
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicreport/internal/models"
	"civicreport/internal/store"
)

const (
	defaultListRadiusM    = 5000
	defaultSimilarRadiusM = 1000
	similarLimit          = 5
)

// Sort keys a caller may ask for. Anything else falls back to createdAt.
var sortKeys = map[string]bool{
	"createdAt":    true,
	"voteCount":    true,
	"commentCount": true,
	"severity":     true,
	"views":        true,
}

func (e *Env) ListPosts(c *gin.Context) {
	q := store.PostQuery{
		Category: c.Query("category"),
		Status:   c.Query("status"),
		Search:   c.Query("search"),
	}
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))
	q.Severity, _ = strconv.Atoi(c.Query("severity"))

	q.SortBy = c.DefaultQuery("sortBy", "createdAt")
	if !sortKeys[q.SortBy] {
		q.SortBy = "createdAt"
	}
	q.SortDesc = c.DefaultQuery("sortOrder", "desc") != "asc"

	if near, ok := parseGeo(c, defaultListRadiusM); ok {
		q.Near = near
	}

	posts, total, err := e.Store.ListPosts(c.Request.Context(), q)
	if err != nil {
		log.Printf("Error fetching posts: %v", err)
		fail(c, http.StatusInternalServerError, "Error fetching posts")
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}

	q.Normalize()
	totalPages := int(math.Ceil(float64(total) / float64(q.Limit)))
	ok(c, http.StatusOK, gin.H{
		"posts": posts,
		"pagination": gin.H{
			"currentPage": q.Page,
			"totalPages":  totalPages,
			"totalPosts":  total,
			"hasNextPage": q.Page < totalPages,
			"hasPrevPage": q.Page > 1,
		},
	})
}

// parseGeo reads lat/lng/radius query params. Both coordinates must be
// present for a geographic filter to apply.
func parseGeo(c *gin.Context, defaultRadius float64) (*store.GeoFilter, bool) {
	latStr, lngStr := c.Query("lat"), c.Query("lng")
	if latStr == "" || lngStr == "" {
		return nil, false
	}
	lat, errLat := strconv.ParseFloat(latStr, 64)
	lng, errLng := strconv.ParseFloat(lngStr, 64)
	if errLat != nil || errLng != nil {
		return nil, false
	}
	radius := defaultRadius
	if r, err := strconv.ParseFloat(c.Query("radius"), 64); err == nil && r > 0 {
		radius = r
	}
	return &store.GeoFilter{Lng: lng, Lat: lat, RadiusM: radius}, true
}

func (e *Env) SimilarPosts(c *gin.Context) {
	category := c.Query("category")
	near, hasGeo := parseGeo(c, defaultSimilarRadiusM)
	if category == "" || !hasGeo {
		fail(c, http.StatusBadRequest, "Category and location are required")
		return
	}

	posts, err := e.Store.SimilarPosts(c.Request.Context(), category, near.Lng, near.Lat, near.RadiusM, similarLimit)
	if err != nil {
		log.Printf("Error fetching similar posts: %v", err)
		fail(c, http.StatusInternalServerError, "Error fetching similar posts")
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}
	ok(c, http.StatusOK, gin.H{"similarPosts": posts})
}

func (e *Env) GetPost(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid post ID")
		return
	}

	post, err := e.Store.PostByID(c.Request.Context(), id, true)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, "Post not found")
			return
		}
		log.Printf("Error fetching post: %v", err)
		fail(c, http.StatusInternalServerError, "Error fetching post")
		return
	}
	ok(c, http.StatusOK, gin.H{"post": post})
}

func (e *Env) CreatePost(c *gin.Context) {
	var input models.CreatePostInput
	if err := c.ShouldBind(&input); err != nil {
		fail(c, http.StatusBadRequest, "All required fields must be provided")
		return
	}
	if !models.ValidCategory(input.Category) {
		fail(c, http.StatusBadRequest, "Unknown category")
		return
	}

	images, err := e.saveUploadedImages(c)
	if err != nil {
		switch {
		case errors.Is(err, errTooManyImages):
			fail(c, http.StatusBadRequest, "At most 5 images are allowed")
		case errors.Is(err, errImageTooLarge):
			fail(c, http.StatusRequestEntityTooLarge, "Images must be 10MB or smaller")
		case errors.Is(err, errImageType):
			fail(c, http.StatusUnsupportedMediaType, "Only jpeg, png, gif and webp images are allowed")
		default:
			log.Printf("Error saving upload: %v", err)
			fail(c, http.StatusInternalServerError, "Error creating post")
		}
		return
	}

	post := models.Post{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Category:    input.Category,
		Subcategory: strings.TrimSpace(input.Subcategory),
		Severity:    input.Severity,
		Images:      images,
		Location: models.Location{
			Type:        "Point",
			Coordinates: []float64{*input.Lng, *input.Lat},
			Address:     strings.TrimSpace(input.Address),
			City:        input.City,
			State:       input.State,
			Country:     input.Country,
		},
		AuthorID: currentUser(c),
		Tags:     input.Tags,
	}
	if err := e.Store.CreatePost(c.Request.Context(), &post); err != nil {
		log.Printf("Error creating post: %v", err)
		fail(c, http.StatusInternalServerError, "Error creating post")
		return
	}

	ok(c, http.StatusCreated, gin.H{
		"message": "Post created successfully",
		"post":    post,
	})
}

func (e *Env) VoteOnPost(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid post ID")
		return
	}

	result, err := e.Store.ToggleVote(c.Request.Context(), id, currentUser(c))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, "Post not found")
			return
		}
		log.Printf("Error processing vote: %v", err)
		fail(c, http.StatusInternalServerError, "Error processing vote")
		return
	}

	message := "Vote removed"
	if result.HasVoted {
		message = "Vote added"
	}
	ok(c, http.StatusOK, gin.H{
		"message":   message,
		"voteCount": result.VoteCount,
		"hasVoted":  result.HasVoted,
	})
}

func (e *Env) AddComment(c *gin.Context) {
	postID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid post ID")
		return
	}

	var input models.CreateCommentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Comment content is required")
		return
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		fail(c, http.StatusBadRequest, "Comment content is required")
		return
	}

	comment := models.Comment{
		Content:  content,
		AuthorID: currentUser(c),
		PostID:   postID,
	}
	if input.ParentComment != "" {
		parentID, err := primitive.ObjectIDFromHex(input.ParentComment)
		if err != nil {
			fail(c, http.StatusBadRequest, "Invalid parent comment ID")
			return
		}
		comment.ParentComment = parentID
	}

	if err := e.Store.CreateComment(c.Request.Context(), &comment); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, "Post or parent comment not found")
			return
		}
		log.Printf("Error adding comment: %v", err)
		fail(c, http.StatusInternalServerError, "Error adding comment")
		return
	}

	ok(c, http.StatusCreated, gin.H{
		"message": "Comment added successfully",
		"comment": comment,
	})
}

func (e *Env) HidePost(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid post ID")
		return
	}

	if err := e.Store.HidePost(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, "Post not found")
			return
		}
		log.Printf("Error hiding post: %v", err)
		fail(c, http.StatusInternalServerError, "Error hiding post")
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "Post hidden successfully"})
}
