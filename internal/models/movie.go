package models

import "time"

// Movie represents a catalog entry shown in the app.
type Movie struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Synopsis      string    `json:"synopsis"`
	PosterURL     string    `json:"poster_url"`
	BackdropURL   string    `json:"backdrop_url"`
	Genre         string    `json:"genre"`
	Duration      string    `json:"duration"`
	ContentRating string    `json:"content_rating"`
	AverageRating *float64  `json:"average_rating"`
	CreatedAt     time.Time `json:"created_at"`
}

// Field returns the value of a queryable field by name.
func (m Movie) Field(name string) any {
	switch name {
	case "id":
		return m.ID
	case "title":
		return m.Title
	case "genre":
		return m.Genre
	case "content_rating":
		return m.ContentRating
	case "created_at":
		return m.CreatedAt
	}
	return nil
}

// MovieForm is the submitted catalog form. Numeric fields arrive as text.
type MovieForm struct {
	Title         string     `json:"title" form:"title"`
	Synopsis      string     `json:"synopsis" form:"synopsis"`
	PosterURL     string     `json:"poster_url" form:"poster_url"`
	BackdropURL   string     `json:"backdrop_url" form:"backdrop_url"`
	Genre         string     `json:"genre" form:"genre"`
	Duration      string     `json:"duration" form:"duration"`
	ContentRating string     `json:"content_rating" form:"content_rating"`
	AverageRating NumberText `json:"average_rating" form:"average_rating"`
}

// ContentRatings are the accepted age-rating labels.
var ContentRatings = []string{"Livre", "10", "12", "14", "16", "18"}

const (
	DefaultContentRating = "Livre"
	PlaceholderPosterURL = "https://placehold.co/400x600?text=Sem+Imagem"
)

// ValidContentRating reports whether label is one of ContentRatings.
func ValidContentRating(label string) bool {
	for _, r := range ContentRatings {
		if r == label {
			return true
		}
	}
	return false
}
