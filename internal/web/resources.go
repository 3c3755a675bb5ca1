package web

import (
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/shared"
	"github.com/desertthunder/trainhub/internal/tasks"
)

type resourceItem struct {
	models.Resource
	Favorite bool
	CanEdit  bool
}

type tagOption struct {
	models.Tag
	Selected bool
	URL      string // the listing with this tag toggled
}

type resourcesData struct {
	Resources []resourceItem
	Tags      []tagOption
	Selected  []string
	Query     string
	ClearURL  string
}

// tagURL builds a /resources link for the given tags and query.
func tagURL(tags []string, q string) string {
	v := url.Values{}
	for _, t := range tags {
		v.Add("tag", t)
	}
	if q != "" {
		v.Set("q", q)
	}
	if len(v) == 0 {
		return "/resources"
	}
	return "/resources?" + v.Encode()
}

func (s *Server) resources(w http.ResponseWriter, r *http.Request) {
	selected := shared.NormalizeTags(r.URL.Query()["tag"])
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	list, err := s.lib.Resources(r.Context(), tasks.ResourceFilter{Tags: selected, Query: query})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	tags, err := s.lib.Tags(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	data := resourcesData{Selected: selected, Query: query, ClearURL: tagURL(nil, query)}
	for _, tag := range tags {
		on := slices.Contains(selected, tag.Slug)
		next := slices.DeleteFunc(slices.Clone(selected), func(t string) bool { return t == tag.Slug })
		if !on {
			next = append(next, tag.Slug)
		}
		data.Tags = append(data.Tags, tagOption{Tag: tag, Selected: on, URL: tagURL(next, query)})
	}

	keys := s.favoriteKeys(r)
	uid := userID(r)
	for _, res := range list {
		data.Resources = append(data.Resources, resourceItem{
			Resource: res,
			Favorite: keys[models.FavoriteKey{Kind: models.KindResource, ItemID: res.ID}],
			CanEdit:  uid != "" && res.OwnerID == uid,
		})
	}

	s.render(w, r, http.StatusOK, "resources", page{Title: "Resources", Data: data})
}

func (s *Server) resource(w http.ResponseWriter, r *http.Request) {
	res, err := s.lib.Resource(r.Context(), r.PathValue("slug"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	keys := s.favoriteKeys(r)
	uid := userID(r)
	item := resourceItem{
		Resource: *res,
		Favorite: keys[models.FavoriteKey{Kind: models.KindResource, ItemID: res.ID}],
		CanEdit:  uid != "" && res.OwnerID == uid,
	}
	s.render(w, r, http.StatusOK, "resource", page{Title: res.Title, Data: item})
}

// resourceForm is the data of the resource editor.
type resourceForm struct {
	Action      string
	Slug        string
	Title       string
	Description string
	URL         string
	Category    string
	Tags        string
	FileURL     string
}

func formFromResource(res *models.Resource) resourceForm {
	f := resourceForm{
		Action:      "/resources/" + res.Slug,
		Slug:        res.Slug,
		Title:       res.Title,
		Description: res.Description,
		URL:         res.URL,
		Tags:        strings.Join(res.Tags, ", "),
		FileURL:     res.FileURL,
	}
	if res.Category != nil {
		f.Category = res.Category.Title
	}
	return f
}

func (s *Server) newResource(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "resource_form", page{Title: "New resource", Data: resourceForm{Action: "/resources"}})
}

func (s *Server) editResource(w http.ResponseWriter, r *http.Request) {
	res, err := s.lib.Resource(r.Context(), r.PathValue("slug"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if res.OwnerID != userID(r) {
		s.fail(w, r, shared.ErrForbidden)
		return
	}
	s.render(w, r, http.StatusOK, "resource_form", page{Title: "Edit " + res.Title, Data: formFromResource(res)})
}

// parseResourceForm reads the multipart editor form. The returned closer
// releases the uploaded file, if any.
func (s *Server) parseResourceForm(w http.ResponseWriter, r *http.Request) (tasks.ResourceInput, resourceForm, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return tasks.ResourceInput{}, resourceForm{}, func() {}, errors.Join(shared.ErrInvalidInput, errors.New("the upload is too large"))
		}
		return tasks.ResourceInput{}, resourceForm{}, func() {}, errors.Join(shared.ErrInvalidInput, err)
	}

	in := tasks.ResourceInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		URL:         r.FormValue("url"),
		Category:    r.FormValue("category"),
		Tags:        shared.SplitTags(r.FormValue("tags")),
		RemoveFile:  r.FormValue("remove_file") == "on",
	}
	form := resourceForm{
		Title:       in.Title,
		Description: in.Description,
		URL:         in.URL,
		Category:    in.Category,
		Tags:        r.FormValue("tags"),
	}

	closer := func() {}
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		if header.Size > 0 {
			in.File, in.FileName = file, header.Filename
		}
		closer = func() { file.Close() }
	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		return in, form, closer, errors.Join(shared.ErrInvalidInput, err)
	}
	return in, form, closer, nil
}

// formError re-renders the editor for input errors and fails otherwise.
func (s *Server) formError(w http.ResponseWriter, r *http.Request, name, title string, form any, err error) {
	if status := statusFor(err); status == http.StatusBadRequest || status == http.StatusConflict {
		msg := err.Error()
		if errors.Is(err, shared.ErrConflict) {
			msg = "Something with that title already exists. Choose another title."
		}
		s.render(w, r, status, name, page{Title: title, Error: msg, Data: form})
		return
	}
	s.fail(w, r, err)
}

func (s *Server) createResource(w http.ResponseWriter, r *http.Request) {
	in, form, done, err := s.parseResourceForm(w, r)
	defer done()
	form.Action = "/resources"
	if err != nil {
		s.formError(w, r, "resource_form", "New resource", form, err)
		return
	}

	res, err := s.lib.CreateResource(r.Context(), userID(r), in)
	if err != nil {
		s.formError(w, r, "resource_form", "New resource", form, err)
		return
	}
	http.Redirect(w, r, "/resources/"+res.Slug, http.StatusSeeOther)
}

func (s *Server) updateResource(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	in, form, done, err := s.parseResourceForm(w, r)
	defer done()
	form.Action, form.Slug = "/resources/"+slug, slug
	if err != nil {
		s.formError(w, r, "resource_form", "Edit resource", form, err)
		return
	}

	res, err := s.lib.UpdateResource(r.Context(), userID(r), slug, in)
	if err != nil {
		s.formError(w, r, "resource_form", "Edit resource", form, err)
		return
	}
	http.Redirect(w, r, "/resources/"+res.Slug, http.StatusSeeOther)
}

func (s *Server) deleteResource(w http.ResponseWriter, r *http.Request) {
	if err := s.lib.DeleteResource(r.Context(), userID(r), r.PathValue("slug")); err != nil {
		s.fail(w, r, err)
		return
	}
	redirect(w, r, "/resources?notice="+url.QueryEscape("Resource deleted."))
}
