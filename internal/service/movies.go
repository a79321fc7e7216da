package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/models"
)

// Upload is a poster image chosen in the catalog form.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// MovieCatalog lists movies by title and saves or deletes them.
type MovieCatalog struct {
	movies backend.Collection[models.Movie]
	blobs  backend.BlobStorage
	now    func() time.Time

	mu       sync.Mutex
	snapshot []models.Movie
	err      error
	onChange func()
	unsub    backend.Unsubscribe
	readyFlag
}

// NewMovieCatalog creates an unmounted catalog view.
func NewMovieCatalog(store backend.Store, blobs backend.BlobStorage) *MovieCatalog {
	return &MovieCatalog{
		movies:    store.Movies(),
		blobs:     blobs,
		now:       time.Now,
		readyFlag: newReadyFlag(),
	}
}

// Mount subscribes to movies ordered by title.
func (v *MovieCatalog) Mount(onChange func()) {
	v.mu.Lock()
	v.onChange = onChange
	v.mu.Unlock()

	unsub := v.movies.Subscribe(backend.Query{}.Order("title", false), func(movies []models.Movie) {
		v.mu.Lock()
		v.snapshot = movies
		fn := v.onChange
		v.mu.Unlock()
		v.mark()
		notify(fn)
	}, func(err error) {
		slog.Error("movie subscription failed", "error", err)
		v.mu.Lock()
		v.err = err
		fn := v.onChange
		v.mu.Unlock()
		v.mark()
		notify(fn)
	})

	v.mu.Lock()
	v.unsub = unsub
	v.mu.Unlock()
}

// Unmount releases the subscription.
func (v *MovieCatalog) Unmount() {
	v.mu.Lock()
	unsub := v.unsub
	v.unsub = nil
	v.onChange = nil
	v.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Movies returns the current snapshot.
func (v *MovieCatalog) Movies() []models.Movie {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshot
}

// Err returns the subscription failure, if any.
func (v *MovieCatalog) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Save creates a movie when id is empty and updates it otherwise. A chosen
// upload is stored first and its URL replaces the poster URL field. It
// returns the movie id.
func (v *MovieCatalog) Save(ctx context.Context, id string, form models.MovieForm, upload *Upload) (string, error) {
	title := strings.TrimSpace(form.Title)
	if title == "" {
		return "", ErrTitleRequired
	}
	rating := strings.TrimSpace(form.ContentRating)
	if rating == "" {
		rating = models.DefaultContentRating
	}
	if !models.ValidContentRating(rating) {
		return "", fmt.Errorf("%q: %w", form.ContentRating, ErrInvalidContentRating)
	}

	poster := strings.TrimSpace(form.PosterURL)
	if upload != nil && len(upload.Data) > 0 {
		url, err := v.blobs.Upload(ctx, v.objectName(upload.Filename), upload.ContentType, upload.Data)
		if err != nil {
			slog.Error("poster upload failed", "filename", upload.Filename, "error", err)
			return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
		}
		poster = url
	}
	if poster == "" {
		poster = models.PlaceholderPosterURL
	}

	movie := models.Movie{
		ID:            id,
		Title:         title,
		Synopsis:      form.Synopsis,
		PosterURL:     poster,
		BackdropURL:   strings.TrimSpace(form.BackdropURL),
		Genre:         form.Genre,
		Duration:      form.Duration,
		ContentRating: rating,
		AverageRating: ParseRating(string(form.AverageRating)),
	}

	if id == "" {
		newID, err := v.movies.Create(ctx, movie)
		if err != nil {
			slog.Error("failed to create movie", "title", title, "error", err)
			return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
		slog.Info("movie created", "movie_id", newID, "title", title)
		return newID, nil
	}

	err := v.movies.Update(ctx, id, backend.Fields{
		"title":          movie.Title,
		"synopsis":       movie.Synopsis,
		"poster_url":     movie.PosterURL,
		"backdrop_url":   movie.BackdropURL,
		"genre":          movie.Genre,
		"duration":       movie.Duration,
		"content_rating": movie.ContentRating,
		"average_rating": movie.AverageRating,
	})
	if err != nil {
		slog.Error("failed to update movie", "movie_id", id, "error", err)
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	slog.Info("movie updated", "movie_id", id)
	return id, nil
}

// Delete removes a movie once confirmed.
func (v *MovieCatalog) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	if err := v.movies.Delete(ctx, id); err != nil {
		slog.Error("failed to delete movie", "movie_id", id, "error", err)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	slog.Info("movie deleted", "movie_id", id)
	return nil
}

func (v *MovieCatalog) objectName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" {
		base = "poster"
	}
	return fmt.Sprintf("movies/%d_%s", v.now().UnixMilli(), base)
}

// ParseRating parses an average rating. Text that is not a finite number
// yields nil.
func ParseRating(text string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
