package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"civicreport/internal/models"
)

// Seed fills a memory store with the demo fixtures so demo mode has
// something to show without a backend database.
func Seed(m *Memory) error {
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}

	users := []models.User{
		{
			Username: "john_citizen",
			Email:    "john@example.com",
			Password: string(hash),
			FullName: "John Citizen",
			Location: "Downtown, City Center",
			Bio:      "Concerned citizen reporting local issues",
		},
		{
			Username: "sarah_local",
			Email:    "sarah@example.com",
			Password: string(hash),
			FullName: "Sarah Local",
			Location: "Residential Area, Suburbs",
			Bio:      "Community volunteer and local resident",
		},
		{
			Username: "mike_reporter",
			Email:    "mike@example.com",
			Password: string(hash),
			FullName: "Mike Reporter",
			Location: "Business District",
			Bio:      "Active in community development",
		},
	}
	for i := range users {
		if err := m.CreateUser(ctx, &users[i]); err != nil {
			return fmt.Errorf("seed demo user: %w", err)
		}
	}

	posts := []models.Post{
		{
			Title:       "Large Pothole on Main Street",
			Description: "There is a massive pothole on Main Street near the traffic light that is causing damage to vehicles. This has been an ongoing issue for weeks and needs immediate attention as it poses a safety risk to drivers.",
			Category:    models.CategoryInfrastructure,
			Subcategory: "Potholes",
			Severity:    4,
			Location: models.Location{
				Type:        "Point",
				Coordinates: []float64{-74.006, 40.7128},
				Address:     "Main Street & 5th Avenue, Downtown",
				City:        "City Center",
				State:       "NY",
				Country:     "USA",
			},
			AuthorID: users[0].ID,
			Tags:     []string{"pothole", "road-damage"},
		},
		{
			Title:       "Broken Streetlight in Residential Area",
			Description: "The streetlight at the corner of Oak Street has been flickering for days and now completely stopped working. This area gets very dark at night making it unsafe for pedestrians and residents.",
			Category:    models.CategoryUtilities,
			Subcategory: "Streetlight not working / flickering",
			Severity:    3,
			Location: models.Location{
				Type:        "Point",
				Coordinates: []float64{-74.008, 40.7118},
				Address:     "Oak Street & Elm Avenue",
				City:        "Residential District",
				State:       "NY",
				Country:     "USA",
			},
			AuthorID: users[1].ID,
			Tags:     []string{"streetlight", "safety"},
		},
		{
			Title:       "Overflowing Garbage Bins at Central Park",
			Description: "The garbage bins near the main entrance of Central Park have been overflowing for several days. This is attracting pests and creating an unpleasant smell for visitors and nearby residents.",
			Category:    models.CategorySanitation,
			Subcategory: "Overflowing garbage bins",
			Severity:    3,
			Location: models.Location{
				Type:        "Point",
				Coordinates: []float64{-73.9712, 40.7831},
				Address:     "Central Park Main Entrance",
				City:        "Park District",
				State:       "NY",
				Country:     "USA",
			},
			AuthorID: users[2].ID,
			Tags:     []string{"garbage", "pests"},
		},
	}
	for i := range posts {
		if err := m.CreatePost(ctx, &posts[i]); err != nil {
			return fmt.Errorf("seed demo post: %w", err)
		}
	}

	// A few votes and comments so the lists are not empty.
	for _, voter := range []int{1, 2} {
		if _, err := m.ToggleVote(ctx, posts[0].ID, users[voter].ID); err != nil {
			return fmt.Errorf("seed demo vote: %w", err)
		}
	}
	comment := models.Comment{
		Content:  "I hit this pothole yesterday, my tire barely survived. Please fix this soon.",
		AuthorID: users[1].ID,
		PostID:   posts[0].ID,
	}
	if err := m.CreateComment(ctx, &comment); err != nil {
		return fmt.Errorf("seed demo comment: %w", err)
	}

	// Backdate so sort-by-createdAt has a stable order to demo.
	m.mu.Lock()
	base := time.Now().Add(-72 * time.Hour)
	for i := range posts {
		if p, ok := m.posts[posts[i].ID]; ok {
			p.CreatedAt = base.Add(time.Duration(i) * 24 * time.Hour)
		}
	}
	m.mu.Unlock()

	log.Printf("Demo store seeded: %d users, %d posts", len(users), len(posts))
	return nil
}
