package handler

import (
	"errors"
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v3"

	"cinepasse-backoffice/internal/models"
	"cinepasse-backoffice/internal/service"
)

// MovieListResponse is the rendered catalog.
type MovieListResponse struct {
	Data  []models.Movie `json:"data"`
	Total int            `json:"total"`
}

// ListMovies returns the catalog ordered by title.
// @Summary List movies
// @Tags movies
// @Produce json
// @Success 200 {object} MovieListResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/movies [get]
func (h *Handler) ListMovies(c fiber.Ctx) error {
	v := service.NewMovieCatalog(h.store, h.blobs)
	v.Mount(nil)
	defer v.Unmount()

	if err := service.WaitReady(c.Context(), v); err != nil {
		return fail(c, err)
	}
	if err := v.Err(); err != nil {
		return fail(c, err)
	}
	return c.JSON(movieList(v.Movies()))
}

// MoviesStream streams the catalog.
// @Summary Catalog stream
// @Tags movies
// @Produce text/event-stream
// @Router /api/v1/movies/stream [get]
func (h *Handler) MoviesStream(c fiber.Ctx) error {
	v := service.NewMovieCatalog(h.store, h.blobs)
	return h.stream(c, live{
		name:    "movies",
		mount:   v.Mount,
		unmount: v.Unmount,
		render: func() (any, error) {
			if err := v.Err(); err != nil {
				return nil, err
			}
			return movieList(v.Movies()), nil
		},
	})
}

// CreateMovie adds a movie. Accepts JSON or multipart with an optional
// "poster" file.
// @Summary Create movie
// @Tags movies
// @Accept json,mpfd
// @Produce json
// @Param poster formData file false "Poster image"
// @Success 201 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/v1/movies [post]
func (h *Handler) CreateMovie(c fiber.Ctx) error {
	return h.saveMovie(c, "")
}

// UpdateMovie replaces a movie's fields.
// @Summary Update movie
// @Tags movies
// @Accept json,mpfd
// @Produce json
// @Param id path string true "Movie ID"
// @Param poster formData file false "Poster image"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/v1/movies/{id} [put]
func (h *Handler) UpdateMovie(c fiber.Ctx) error {
	return h.saveMovie(c, c.Params("id"))
}

// DeleteMovie removes a movie once confirmed.
// @Summary Delete movie
// @Tags movies
// @Produce json
// @Param id path string true "Movie ID"
// @Param confirm query bool true "Operator confirmation"
// @Success 204
// @Failure 428 {object} ErrorResponse
// @Router /api/v1/movies/{id} [delete]
func (h *Handler) DeleteMovie(c fiber.Ctx) error {
	v := service.NewMovieCatalog(h.store, h.blobs)
	if err := v.Delete(c.Context(), c.Params("id"), confirmed(c)); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) saveMovie(c fiber.Ctx, id string) error {
	var form models.MovieForm
	if err := c.Bind().Body(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: service.MsgInvalidInput})
	}

	upload, err := h.poster(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	v := service.NewMovieCatalog(h.store, h.blobs)
	savedID, err := v.Save(c.Context(), id, form, upload)
	if err != nil {
		return fail(c, err)
	}

	status := fiber.StatusOK
	if id == "" {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"id": savedID})
}

// poster reads the optional "poster" file of a multipart request.
func (h *Handler) poster(c fiber.Ctx) (*service.Upload, error) {
	fh, err := c.FormFile("poster")
	if err != nil {
		// Not multipart, or no file chosen
		return nil, nil
	}
	if h.maxUpload > 0 && fh.Size > int64(h.maxUpload) {
		return nil, errors.New("poster image too large")
	}
	data, err := readFile(fh)
	if err != nil {
		return nil, err
	}
	return &service.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func movieList(movies []models.Movie) MovieListResponse {
	if movies == nil {
		movies = []models.Movie{}
	}
	return MovieListResponse{Data: movies, Total: len(movies)}
}
