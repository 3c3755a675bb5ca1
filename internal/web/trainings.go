package web

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/shared"
	"github.com/desertthunder/trainhub/internal/tasks"
)

type trainingItem struct {
	models.Training
	Progress *models.TrainingProgress
	Favorite bool
}

func (s *Server) trainings(w http.ResponseWriter, r *http.Request) {
	list, err := s.lib.Trainings(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	progress := make(map[string]models.TrainingProgress)
	if uid := userID(r); uid != "" {
		report, err := s.lib.ProgressReport(r.Context(), uid)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		for _, summary := range report {
			progress[summary.Training.ID] = summary.Progress
		}
	}

	keys := s.favoriteKeys(r)
	items := make([]trainingItem, 0, len(list))
	for _, t := range list {
		item := trainingItem{Training: t, Favorite: keys[models.FavoriteKey{Kind: models.KindTraining, ItemID: t.ID}]}
		if p, ok := progress[t.ID]; ok {
			item.Progress = &p
		}
		items = append(items, item)
	}
	s.render(w, r, http.StatusOK, "trainings", page{Title: "Trainings", Data: items})
}

type stepItem struct {
	models.TrainingStep
	Done bool
	Next bool
}

// trainingView is the data of the training page and its steps partial.
type trainingView struct {
	Training  *models.Training
	Progress  models.TrainingProgress
	Steps     []stepItem
	Favorite  bool
	CanEdit   bool
	LoggedIn  bool
	TotalTime int
}

func (s *Server) trainingView(r *http.Request, slug string) (*trainingView, error) {
	t, p, err := s.lib.Progress(r.Context(), userID(r), slug)
	if err != nil {
		return nil, err
	}

	uid := userID(r)
	keys := s.favoriteKeys(r)
	v := &trainingView{
		Training:  t,
		Progress:  p,
		Favorite:  keys[models.FavoriteKey{Kind: models.KindTraining, ItemID: t.ID}],
		CanEdit:   uid != "" && t.OwnerID == uid,
		LoggedIn:  uid != "",
		TotalTime: t.TotalDuration(),
	}
	for _, step := range t.Steps {
		v.Steps = append(v.Steps, stepItem{
			TrainingStep: step,
			Done:         p.IsComplete(step.ID),
			Next:         p.NextStep != nil && p.NextStep.ID == step.ID,
		})
	}
	return v, nil
}

func (s *Server) training(w http.ResponseWriter, r *http.Request) {
	v, err := s.trainingView(r, r.PathValue("slug"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "training", page{Title: v.Training.Title, Data: v})
}

func (s *Server) toggleStep(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if _, err := s.lib.ToggleStep(r.Context(), userID(r), slug, r.PathValue("step")); err != nil {
		s.fail(w, r, err)
		return
	}
	s.afterStepChange(w, r, slug)
}

func (s *Server) resetTraining(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if err := s.lib.ResetTraining(r.Context(), userID(r), slug); err != nil {
		s.fail(w, r, err)
		return
	}
	s.afterStepChange(w, r, slug)
}

// afterStepChange swaps the steps partial for HTMX and redirects otherwise.
func (s *Server) afterStepChange(w http.ResponseWriter, r *http.Request, slug string) {
	if !isHTMX(r) {
		http.Redirect(w, r, "/trainings/"+slug, http.StatusSeeOther)
		return
	}
	v, err := s.trainingView(r, slug)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderPartial(w, r, http.StatusOK, "training-steps", v)
}

// trainingForm is the data of the training editor. Steps carries the existing
// steps plus blank rows for new ones.
type trainingForm struct {
	Action      string
	Slug        string
	Title       string
	Description string
	ImageURL    string
	Tags        string
	Steps       []models.TrainingStep
}

// blankSteps is how many empty step rows the editor offers.
const blankSteps = 3

func formFromTraining(t *models.Training) trainingForm {
	f := trainingForm{
		Action:      "/trainings/" + t.Slug,
		Slug:        t.Slug,
		Title:       t.Title,
		Description: t.Description,
		ImageURL:    t.ImageURL,
		Tags:        strings.Join(t.Tags, ", "),
		Steps:       append([]models.TrainingStep{}, t.Steps...),
	}
	for range blankSteps {
		f.Steps = append(f.Steps, models.TrainingStep{})
	}
	return f
}

// parseTrainingForm reads the editor's parallel step fields. A row with an ID and
// a blank title removes that step; blank new rows are ignored.
func parseTrainingForm(r *http.Request) (tasks.TrainingInput, trainingForm, error) {
	if err := r.ParseForm(); err != nil {
		return tasks.TrainingInput{}, trainingForm{}, errors.Join(shared.ErrInvalidInput, err)
	}

	in := tasks.TrainingInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		ImageURL:    r.FormValue("image_url"),
		Tags:        shared.SplitTags(r.FormValue("tags")),
	}
	form := trainingForm{
		Title:       in.Title,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Tags:        r.FormValue("tags"),
	}

	ids := r.Form["step_id"]
	titles := r.Form["step_title"]
	bodies := r.Form["step_body"]
	videos := r.Form["step_video"]
	durations := r.Form["step_duration"]
	at := func(values []string, i int) string {
		if i < len(values) {
			return strings.TrimSpace(values[i])
		}
		return ""
	}

	for i := range titles {
		step := models.TrainingStep{
			ID:       at(ids, i),
			Title:    at(titles, i),
			Body:     at(bodies, i),
			VideoURL: at(videos, i),
		}
		if d := at(durations, i); d != "" {
			minutes, err := strconv.Atoi(d)
			if err != nil || minutes < 0 {
				return in, form, errors.Join(shared.ErrInvalidInput, errors.New("step duration must be a whole number of minutes"))
			}
			step.Duration = minutes
		}
		form.Steps = append(form.Steps, step)
		if step.Title == "" {
			continue
		}
		in.Steps = append(in.Steps, step)
	}
	return in, form, nil
}

func (s *Server) newTraining(w http.ResponseWriter, r *http.Request) {
	form := trainingForm{Action: "/trainings", Steps: make([]models.TrainingStep, blankSteps)}
	s.render(w, r, http.StatusOK, "training_form", page{Title: "New training", Data: form})
}

func (s *Server) editTraining(w http.ResponseWriter, r *http.Request) {
	t, err := s.lib.Training(r.Context(), r.PathValue("slug"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if t.OwnerID != userID(r) {
		s.fail(w, r, shared.ErrForbidden)
		return
	}
	s.render(w, r, http.StatusOK, "training_form", page{Title: "Edit " + t.Title, Data: formFromTraining(t)})
}

func (s *Server) createTraining(w http.ResponseWriter, r *http.Request) {
	in, form, err := parseTrainingForm(r)
	form.Action = "/trainings"
	if err != nil {
		s.formError(w, r, "training_form", "New training", form, err)
		return
	}

	t, err := s.lib.CreateTraining(r.Context(), userID(r), in)
	if err != nil {
		s.formError(w, r, "training_form", "New training", form, err)
		return
	}
	http.Redirect(w, r, "/trainings/"+t.Slug, http.StatusSeeOther)
}

func (s *Server) updateTraining(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	in, form, err := parseTrainingForm(r)
	form.Action, form.Slug = "/trainings/"+slug, slug
	if err != nil {
		s.formError(w, r, "training_form", "Edit training", form, err)
		return
	}

	t, err := s.lib.UpdateTraining(r.Context(), userID(r), slug, in)
	if err != nil {
		s.formError(w, r, "training_form", "Edit training", form, err)
		return
	}
	http.Redirect(w, r, "/trainings/"+t.Slug, http.StatusSeeOther)
}

func (s *Server) deleteTraining(w http.ResponseWriter, r *http.Request) {
	if err := s.lib.DeleteTraining(r.Context(), userID(r), r.PathValue("slug")); err != nil {
		s.fail(w, r, err)
		return
	}
	redirect(w, r, "/trainings?notice="+url.QueryEscape("Training deleted."))
}

// reorderSteps takes the step IDs in their new order as repeated "step" fields.
func (s *Server) reorderSteps(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, errors.Join(shared.ErrInvalidInput, err))
		return
	}
	slug := r.PathValue("slug")
	if _, err := s.lib.ReorderSteps(r.Context(), userID(r), slug, r.Form["step"]); err != nil {
		s.fail(w, r, err)
		return
	}
	s.afterStepChange(w, r, slug)
}

func stepFromForm(r *http.Request) (models.TrainingStep, error) {
	if err := r.ParseForm(); err != nil {
		return models.TrainingStep{}, errors.Join(shared.ErrInvalidInput, err)
	}
	step := models.TrainingStep{
		ID:       r.PathValue("step"),
		Title:    r.FormValue("title"),
		Body:     r.FormValue("body"),
		VideoURL: strings.TrimSpace(r.FormValue("video_url")),
	}
	if d := strings.TrimSpace(r.FormValue("duration")); d != "" {
		minutes, err := strconv.Atoi(d)
		if err != nil || minutes < 0 {
			return step, errors.Join(shared.ErrInvalidInput, errors.New("duration must be a whole number of minutes"))
		}
		step.Duration = minutes
	}
	return step, nil
}

func (s *Server) addStep(w http.ResponseWriter, r *http.Request) {
	step, err := stepFromForm(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	slug := r.PathValue("slug")
	if _, err := s.lib.AddStep(r.Context(), userID(r), slug, step); err != nil {
		s.fail(w, r, err)
		return
	}
	s.afterStepChange(w, r, slug)
}

func (s *Server) updateStep(w http.ResponseWriter, r *http.Request) {
	step, err := stepFromForm(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	slug := r.PathValue("slug")
	if _, err := s.lib.UpdateStep(r.Context(), userID(r), slug, step); err != nil {
		s.fail(w, r, err)
		return
	}
	s.afterStepChange(w, r, slug)
}

func (s *Server) removeStep(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if _, err := s.lib.RemoveStep(r.Context(), userID(r), slug, r.PathValue("step")); err != nil {
		s.fail(w, r, err)
		return
	}
	s.afterStepChange(w, r, slug)
}
