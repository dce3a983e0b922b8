package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicreport/internal/models"
	"civicreport/internal/store"
)

const recentPostsLimit = 10

// profileResponse is a user with their recent posts inlined, matching
// the profile page's needs in one request.
type profileResponse struct {
	models.User
	Posts []models.Post `json:"posts"`
}

func (e *Env) GetUser(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid user ID")
		return
	}

	user, err := e.Store.UserByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("Error fetching user: %v", err)
		fail(c, http.StatusInternalServerError, "Error fetching user profile")
		return
	}

	posts, err := e.Store.PostsByAuthor(c.Request.Context(), id, recentPostsLimit)
	if err != nil {
		log.Printf("Error fetching user posts: %v", err)
		fail(c, http.StatusInternalServerError, "Error fetching user profile")
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}

	ok(c, http.StatusOK, gin.H{"user": profileResponse{User: *user, Posts: posts}})
}

func (e *Env) UpdateProfile(c *gin.Context) {
	var input models.ProfileUpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	user, err := e.Store.UpdateProfile(c.Request.Context(), currentUser(c), input)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("Error updating profile: %v", err)
		fail(c, http.StatusInternalServerError, "Error updating profile")
		return
	}

	ok(c, http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    user,
	})
}
