// Package store defines the storage strategy behind the API: a single
// interface with a MongoDB implementation for normal operation and an
// in-memory implementation for demo mode. Handlers never know which
// one they are talking to.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicreport/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
	ErrForbidden = errors.New("forbidden")
)

// GeoFilter restricts a query to points within RadiusM meters of a center.
type GeoFilter struct {
	Lng     float64
	Lat     float64
	RadiusM float64
}

// PostQuery carries the list/filter/paginate parameters of GET /api/posts.
type PostQuery struct {
	Page     int
	Limit    int
	Category string
	Severity int // 0 means unset
	Status   string
	Search   string
	Near     *GeoFilter
	SortBy   string
	SortDesc bool
}

// VoteResult is the outcome of a vote toggle.
type VoteResult struct {
	VoteCount int
	HasVoted  bool // true if the caller's vote is present after the toggle
}

// LikeResult is the outcome of a comment like toggle.
type LikeResult struct {
	LikeCount int
	HasLiked  bool
}

// Store is everything the HTTP layer needs from persistence.
//
// Author population: list and fetch methods return posts/comments with
// the Author summary filled in. Write methods maintain the denormalized
// counters atomically with the array they derive from, so voteCount,
// commentCount and likeCount never drift from their source.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *models.User) error
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, in models.ProfileUpdateInput) (*models.User, error)

	// Posts
	CreatePost(ctx context.Context, p *models.Post) error
	PostByID(ctx context.Context, id primitive.ObjectID, incrementViews bool) (*models.Post, error)
	ListPosts(ctx context.Context, q PostQuery) ([]models.Post, int64, error)
	SimilarPosts(ctx context.Context, category string, lng, lat, radiusM float64, limit int) ([]models.Post, error)
	PostsByAuthor(ctx context.Context, author primitive.ObjectID, limit int) ([]models.Post, error)
	ToggleVote(ctx context.Context, postID, userID primitive.ObjectID) (VoteResult, error)
	HidePost(ctx context.Context, postID primitive.ObjectID) error

	// Comments
	CreateComment(ctx context.Context, c *models.Comment) error
	CommentByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error)
	EditComment(ctx context.Context, id, author primitive.ObjectID, content string) (*models.Comment, error)
	ToggleCommentLike(ctx context.Context, commentID, userID primitive.ObjectID) (LikeResult, error)
}

// Normalize fills query defaults and clamps pagination.
func (q *PostQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.SortBy == "" {
		q.SortBy = "createdAt"
		q.SortDesc = true
	}
}
