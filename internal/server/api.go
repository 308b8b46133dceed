package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/moviehub/catalog/internal/catalog"
)

// v1 response schemas. Entity ids surface as "uuid" on the wire.

type filmBrief struct {
	UUID       string  `json:"uuid"`
	Title      string  `json:"title"`
	IMDBRating float64 `json:"imdb_rating"`
}

type genreOut struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

type personOut struct {
	UUID     string `json:"uuid"`
	FullName string `json:"full_name"`
}

type filmDetailed struct {
	UUID        string      `json:"uuid"`
	Title       string      `json:"title"`
	IMDBRating  float64     `json:"imdb_rating"`
	Description string      `json:"description"`
	Genres      []genreOut  `json:"genres"`
	Actors      []personOut `json:"actors"`
	Writers     []personOut `json:"writers"`
	Directors   []personOut `json:"directors"`
}

type personFilmOut struct {
	UUID  string   `json:"uuid"`
	Roles []string `json:"roles"`
}

type personWithFilms struct {
	UUID     string          `json:"uuid"`
	FullName string          `json:"full_name"`
	Films    []personFilmOut `json:"films"`
}

// pagination carries the translated page parameters: limit = page_size,
// offset = (page_number-1) * page_size.
type pagination struct {
	Limit  int
	Offset int
}

const (
	defaultPageNumber = 1
	defaultPageSize   = 50
)

func paginationFromRequest(r *http.Request) (pagination, bool) {
	pageNumber, ok := positiveQueryInt(r, "page_number", defaultPageNumber)
	if !ok {
		return pagination{}, false
	}
	pageSize, ok := positiveQueryInt(r, "page_size", defaultPageSize)
	if !ok {
		return pagination{}, false
	}
	return pagination{Limit: pageSize, Offset: (pageNumber - 1) * pageSize}, true
}

func positiveQueryInt(r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, false
	}
	return value, true
}

func (a *API) handleFilms(w http.ResponseWriter, r *http.Request) {
	page, ok := paginationFromRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid pagination params")
		return
	}
	genreID := ""
	if raw := r.URL.Query().Get("genre"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid genre id")
			return
		}
		genreID = parsed.String()
	}

	films, err := a.Films.Films(r.Context(), genreID, page.Limit, page.Offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, filmBriefs(films))
}

func (a *API) handleFilmSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query required")
		return
	}
	page, ok := paginationFromRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid pagination params")
		return
	}

	films, err := a.Films.FilmsByQuery(r.Context(), query, page.Limit, page.Offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, filmBriefs(films))
}

func (a *API) handleFilmDetails(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid film id")
		return
	}

	film, err := a.Films.FilmByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if film == nil {
		writeError(w, http.StatusNotFound, "film not found")
		return
	}
	if a.PremiumRating > 0 && film.IMDBRating > a.PremiumRating && !a.callerIsSubscriber(r) {
		writeError(w, http.StatusForbidden, "subscription required")
		return
	}

	detailed := filmDetailed{
		UUID:        film.ID,
		Title:       film.Title,
		IMDBRating:  film.IMDBRating,
		Description: film.Description,
		Genres:      make([]genreOut, 0, len(film.Genres)),
		Actors:      personOuts(film.Actors),
		Writers:     personOuts(film.Writers),
		Directors:   personOuts(film.Directors),
	}
	for _, genre := range film.Genres {
		detailed.Genres = append(detailed.Genres, genreOut{UUID: genre.ID, Name: genre.Name})
	}
	writeJSON(w, http.StatusOK, detailed)
}

func (a *API) handleGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := a.Genres.AllGenres(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if len(genres) == 0 {
		writeError(w, http.StatusNotFound, "genres not found")
		return
	}
	out := make([]genreOut, 0, len(genres))
	for _, genre := range genres {
		out = append(out, genreOut{UUID: genre.ID, Name: genre.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleGenreDetails(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid genre id")
		return
	}

	genre, err := a.Genres.GenreByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if genre == nil {
		writeError(w, http.StatusNotFound, "genre not found")
		return
	}
	writeJSON(w, http.StatusOK, genreOut{UUID: genre.ID, Name: genre.Name})
}

func (a *API) handlePersonSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query required")
		return
	}
	page, ok := paginationFromRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid pagination params")
		return
	}

	persons, err := a.Persons.Search(r.Context(), query, page.Limit, page.Offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if len(persons) == 0 {
		writeError(w, http.StatusNotFound, "persons not found")
		return
	}
	out := make([]personWithFilms, 0, len(persons))
	for _, person := range persons {
		out = append(out, personToSchema(person))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handlePersonDetails(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid person id")
		return
	}

	person, err := a.Persons.PersonByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if person == nil {
		writeError(w, http.StatusNotFound, "person not found")
		return
	}
	writeJSON(w, http.StatusOK, personToSchema(*person))
}

func (a *API) handlePersonFilms(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid person id")
		return
	}

	films, err := a.Persons.PersonFilms(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if len(films) == 0 {
		writeError(w, http.StatusNotFound, "films not found")
		return
	}
	writeJSON(w, http.StatusOK, filmBriefs(films))
}

// callerIsSubscriber decodes the bearer token locally and resolves the live
// role set; an absent or invalid token never escalates.
func (a *API) callerIsSubscriber(r *http.Request) bool {
	if a.Identity == nil || a.Subscribers == nil {
		return false
	}
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return false
	}
	user := a.Identity.UserFromToken(strings.TrimSpace(token))
	if user == nil {
		return false
	}
	return a.Subscribers.IsSubscriber(r.Context(), *user)
}

func filmBriefs(films []catalog.Film) []filmBrief {
	out := make([]filmBrief, 0, len(films))
	for _, film := range films {
		out = append(out, filmBrief{UUID: film.ID, Title: film.Title, IMDBRating: film.IMDBRating})
	}
	return out
}

func personOuts(refs []catalog.PersonRef) []personOut {
	out := make([]personOut, 0, len(refs))
	for _, ref := range refs {
		out = append(out, personOut{UUID: ref.ID, FullName: ref.Name})
	}
	return out
}

func personToSchema(person catalog.Person) personWithFilms {
	films := make([]personFilmOut, 0, len(person.Films))
	for _, film := range person.Films {
		films = append(films, personFilmOut{UUID: film.ID, Roles: film.Roles})
	}
	return personWithFilms{UUID: person.ID, FullName: person.Name, Films: films}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
