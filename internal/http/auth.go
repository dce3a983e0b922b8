package http

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"civicreport/internal/config"
	"civicreport/internal/models"
	"civicreport/internal/store"
	"civicreport/internal/token"
)

// Env holds the handler dependencies.
type Env struct {
	Store store.Store
	Cfg   config.Config
}

func (e *Env) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Civic Issues API is running!"})
}

func (e *Env) Register(c *gin.Context) {
	var input models.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		fail(c, http.StatusInternalServerError, "Error creating account")
		return
	}

	user := models.User{
		Username: strings.TrimSpace(input.Username),
		Email:    strings.ToLower(strings.TrimSpace(input.Email)),
		Password: string(hash),
		FullName: strings.TrimSpace(input.FullName),
	}
	if err := e.Store.CreateUser(c.Request.Context(), &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			fail(c, http.StatusConflict, "Username or email already registered")
			return
		}
		log.Printf("Error creating user: %v", err)
		fail(c, http.StatusInternalServerError, "Error creating account")
		return
	}

	tok, err := token.Generate([]byte(e.Cfg.JWTSecret), user.ID.Hex())
	if err != nil {
		log.Printf("Error signing token: %v", err)
		fail(c, http.StatusInternalServerError, "Error creating account")
		return
	}

	ok(c, http.StatusCreated, gin.H{
		"message": "Account created successfully",
		"token":   tok,
		"user":    user,
	})
}

func (e *Env) Login(c *gin.Context) {
	var input models.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	user, err := e.Store.UserByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(input.Email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		log.Printf("Error fetching user: %v", err)
		fail(c, http.StatusInternalServerError, "Error logging in")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)) != nil {
		fail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	tok, err := token.Generate([]byte(e.Cfg.JWTSecret), user.ID.Hex())
	if err != nil {
		log.Printf("Error signing token: %v", err)
		fail(c, http.StatusInternalServerError, "Error logging in")
		return
	}

	ok(c, http.StatusOK, gin.H{
		"message": "Logged in successfully",
		"token":   tok,
		"user":    user,
	})
}

func (e *Env) Me(c *gin.Context) {
	user, err := e.Store.UserByID(c.Request.Context(), currentUser(c))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("Error fetching user: %v", err)
		fail(c, http.StatusInternalServerError, "Error fetching user")
		return
	}
	ok(c, http.StatusOK, gin.H{"user": user})
}
