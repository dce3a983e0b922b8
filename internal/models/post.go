package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post categories. Fixed enumeration; CreatePost rejects anything else.
const (
	CategoryInfrastructure = "infrastructure-roads"
	CategoryUtilities      = "utilities-services"
	CategorySanitation     = "sanitation-waste"
	CategoryEnvironment    = "environment-spaces"
	CategoryTransport      = "transport-mobility"
	CategorySafety         = "safety-law-order"
	CategoryHealth         = "health-hygiene"
	CategoryGovernance     = "governance-community"
)

// Categories lists every valid post category.
var Categories = []string{
	CategoryInfrastructure,
	CategoryUtilities,
	CategorySanitation,
	CategoryEnvironment,
	CategoryTransport,
	CategorySafety,
	CategoryHealth,
	CategoryGovernance,
}

// ValidCategory reports whether c is one of the fixed categories.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Post statuses.
const (
	StatusOpen       = "open"
	StatusInProgress = "in-progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

// Post priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Image is one uploaded photo attached to a post.
type Image struct {
	URL        string    `bson:"url" json:"url"`
	Filename   string    `bson:"filename" json:"filename"`
	UploadedAt time.Time `bson:"uploadedAt" json:"uploadedAt"`
}

// Vote is one user's endorsement of a post. At most one per user per post.
type Vote struct {
	User    primitive.ObjectID `bson:"user" json:"user"`
	VotedAt time.Time          `bson:"votedAt" json:"votedAt"`
}

// Location is a GeoJSON point with the reporter-supplied address text.
// Coordinates are [longitude, latitude], matching the 2dsphere index.
type Location struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
	Address     string    `bson:"address" json:"address"`
	City        string    `bson:"city,omitempty" json:"city,omitempty"`
	State       string    `bson:"state,omitempty" json:"state,omitempty"`
	Country     string    `bson:"country,omitempty" json:"country,omitempty"`
}

// Post is a single reported civic issue.
type Post struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title        string               `bson:"title" json:"title"`
	Description  string               `bson:"description" json:"description"`
	Category     string               `bson:"category" json:"category"`
	Subcategory  string               `bson:"subcategory" json:"subcategory"`
	Severity     int                  `bson:"severity" json:"severity"` // 1 = Low .. 5 = Critical
	Images       []Image              `bson:"images" json:"images"`
	Location     Location             `bson:"location" json:"location"`
	AuthorID     primitive.ObjectID   `bson:"author" json:"authorId"`
	Author       *UserSummary         `bson:"-" json:"author,omitempty"` // populated in responses only
	Votes        []Vote               `bson:"votes" json:"votes"`
	VoteCount    int                  `bson:"voteCount" json:"voteCount"`
	CommentIDs   []primitive.ObjectID `bson:"comments" json:"commentIds"`
	Comments     []Comment            `bson:"-" json:"comments,omitempty"` // populated in responses only
	CommentCount int                  `bson:"commentCount" json:"commentCount"`
	Status       string               `bson:"status" json:"status"`
	Priority     string               `bson:"priority" json:"priority"`
	Tags         []string             `bson:"tags" json:"tags"`
	IsActive     bool                 `bson:"isActive" json:"isActive"`
	Views        int                  `bson:"views" json:"views"`
	CreatedAt    time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// HasVoteFrom reports whether user has a vote on the post.
func (p *Post) HasVoteFrom(user primitive.ObjectID) bool {
	for _, v := range p.Votes {
		if v.User == user {
			return true
		}
	}
	return false
}

// CreatePostInput binds the multipart form fields of POST /api/posts.
// Lat and Lng are pointers so a missing field is distinguishable from 0.
type CreatePostInput struct {
	Title       string   `form:"title" binding:"required,max=100"`
	Description string   `form:"description" binding:"required,max=1000"`
	Category    string   `form:"category" binding:"required"`
	Subcategory string   `form:"subcategory" binding:"required"`
	Severity    int      `form:"severity" binding:"required,min=1,max=5"`
	Address     string   `form:"address" binding:"required"`
	Lat         *float64 `form:"lat" binding:"required"`
	Lng         *float64 `form:"lng" binding:"required"`
	City        string   `form:"city"`
	State       string   `form:"state"`
	Country     string   `form:"country"`
	Tags        []string `form:"tags"`
}
