package web

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/tasks"
)

// featuredCount is how many of the latest posts rotate through the carousel.
const featuredCount = 5

type slide struct {
	Post  models.Post
	Index int
	Count int
	Prev  int
	Next  int
}

type dashboardData struct {
	Featured   *slide
	Latest     []models.Post
	Favorites  []tasks.FavoriteItem
	InProgress []models.TrainingSummary
}

// carousel picks the featured post for ?slide=n, wrapping in both directions.
func carousel(posts []models.Post, param string) *slide {
	count := min(len(posts), featuredCount)
	if count == 0 {
		return nil
	}
	n, _ := strconv.Atoi(param)
	n = ((n % count) + count) % count
	return &slide{
		Post:  posts[n],
		Index: n,
		Count: count,
		Prev:  (n - 1 + count) % count,
		Next:  (n + 1) % count,
	}
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	d := s.lib.Dashboard(r.Context(), userID(r))

	data := dashboardData{
		Featured:   carousel(d.Posts, r.URL.Query().Get("slide")),
		Favorites:  d.Favorites,
		InProgress: d.InProgress,
	}
	if len(d.Posts) > featuredCount {
		data.Latest = d.Posts[featuredCount:min(len(d.Posts), featuredCount+6)]
	}

	s.render(w, r, http.StatusOK, "dashboard", page{
		Title: "Dashboard",
		Error: strings.Join(d.Errors, " "),
		Data:  data,
	})
}

type postItem struct {
	models.Post
	Favorite bool
}

func (s *Server) favoriteKeys(r *http.Request) map[models.FavoriteKey]bool {
	keys, err := s.lib.FavoriteKeys(userID(r))
	if err != nil {
		s.logger.Warn("failed to load favorites", "error", err)
		return map[models.FavoriteKey]bool{}
	}
	return keys
}

func (s *Server) blog(w http.ResponseWriter, r *http.Request) {
	posts, err := s.lib.Posts(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	keys := s.favoriteKeys(r)
	items := make([]postItem, 0, len(posts))
	for _, p := range posts {
		items = append(items, postItem{Post: p, Favorite: keys[models.FavoriteKey{Kind: models.KindPost, ItemID: p.ID}]})
	}
	s.render(w, r, http.StatusOK, "blog", page{Title: "Blog", Data: items})
}

func (s *Server) post(w http.ResponseWriter, r *http.Request) {
	post, err := s.lib.Post(r.Context(), r.PathValue("slug"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	keys := s.favoriteKeys(r)
	item := postItem{Post: *post, Favorite: keys[models.FavoriteKey{Kind: models.KindPost, ItemID: post.ID}]}
	s.render(w, r, http.StatusOK, "post", page{Title: post.Title, Data: item})
}

func (s *Server) favorites(w http.ResponseWriter, r *http.Request) {
	items, err := s.lib.Favorites(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "favorites", page{Title: "Favorites", Data: items})
}

// favoriteButton is the data of the favorite-button partial.
type favoriteButton struct {
	Kind     models.Kind
	ID       string
	Favorite bool
}

func (s *Server) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseKind(r.PathValue("kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")

	on, err := s.lib.ToggleFavorite(r.Context(), userID(r), kind, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if isHTMX(r) {
		s.renderPartial(w, r, http.StatusOK, "favorite-button", favoriteButton{Kind: kind, ID: id, Favorite: on})
		return
	}
	http.Redirect(w, r, localPath(refererPath(r), "/favorites"), http.StatusSeeOther)
}

// refererPath returns the path and query of the Referer header, or "".
func refererPath(r *http.Request) string {
	u, err := url.Parse(r.Referer())
	if err != nil || u.Path == "" {
		return ""
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}
