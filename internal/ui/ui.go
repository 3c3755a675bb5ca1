package ui

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/trainhub/internal/formatter"
	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/shared"
	"github.com/desertthunder/trainhub/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ResourceListView ViewState = iota
	TagPromptView
	ResourceDetailView
	TrainingListView
	TrainingDetailView
	SyncView
)

// Library is the part of [tasks.Library] the browser reads and writes.
type Library interface {
	Resources(ctx context.Context, filter tasks.ResourceFilter) ([]models.Resource, error)
	Trainings(ctx context.Context) ([]models.Training, error)
	Progress(ctx context.Context, userID, slug string) (*models.Training, models.TrainingProgress, error)
	ProgressReport(ctx context.Context, userID string) ([]models.TrainingSummary, error)
	ToggleStep(ctx context.Context, userID, slug, stepID string) (models.TrainingProgress, error)
	ToggleFavorite(ctx context.Context, userID string, kind models.Kind, itemID string) (bool, error)
	FavoriteKeys(userID string) (map[models.FavoriteKey]bool, error)
}

// Syncer refreshes the content cache (implemented by [tasks.ContentEngine]).
type Syncer interface {
	Sync(ctx context.Context, progress chan<- tasks.ProgressUpdate, opts tasks.SyncOpts) (*tasks.SyncResult, error)
}

// Options holds the dependencies of a [Model].
type Options struct {
	Library  Library
	Syncer   Syncer // nil disables sync
	SyncOpts tasks.SyncOpts
	User     *models.User // nil browses read-only
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	lib      Library
	syncer   Syncer
	syncOpts tasks.SyncOpts
	user     *models.User
	width    int
	height   int

	resourceList list.Model
	resources    []models.Resource
	tags         []string
	tagInput     textinput.Model
	resource     *models.Resource

	trainingList list.Model
	trainings    []models.Training
	progress     map[string]models.TrainingProgress
	training     *models.Training
	current      models.TrainingProgress
	cursor       int

	favorites map[models.FavoriteKey]bool

	progressChan chan tasks.ProgressUpdate
	syncDone     chan Msg
	syncing      bool
	syncLog      []string
	syncResult   *tasks.SyncResult
	syncErr      error
	returnTo     ViewState

	status string
	err    error
	help   help.Model
	keys   keyMap
}

func newList(title string) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.DisableQuitKeybindings()
	return l
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	input := textinput.New()
	input.Prompt = "tags> "
	input.Placeholder = "safety, onboarding"
	input.CharLimit = 200

	return &Model{
		ctx:          ctx,
		view:         ResourceListView,
		lib:          opts.Library,
		syncer:       opts.Syncer,
		syncOpts:     opts.SyncOpts,
		user:         opts.User,
		resourceList: newList("Resources"),
		trainingList: newList("Trainings"),
		tagInput:     input,
		progress:     map[string]models.TrainingProgress{},
		favorites:    map[models.FavoriteKey]bool{},
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init loads resources and trainings.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchResources(), m.fetchTrainings())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resourceList.SetSize(msg.Width-4, msg.Height-8)
		m.trainingList.SetSize(msg.Width-4, msg.Height-8)
		m.tagInput.Width = max(20, msg.Width-12)
		return m, nil

	case tea.KeyMsg:
		if m.err != nil {
			return m.handleErrorKeys(msg)
		}
		switch m.view {
		case ResourceListView:
			return m.handleResourceListKeys(msg)
		case TagPromptView:
			return m.handleTagPromptKeys(msg)
		case ResourceDetailView:
			return m.handleResourceDetailKeys(msg)
		case TrainingListView:
			return m.handleTrainingListKeys(msg)
		case TrainingDetailView:
			return m.handleTrainingDetailKeys(msg)
		case SyncView:
			return m.handleSyncKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgResourcesFetched:
		data := msg.data.(resourcesFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.resources = data.resources
		if data.favorites != nil {
			m.favorites = data.favorites
		}
		return m, m.setResourceItems()

	case MsgTrainingsFetched:
		data := msg.data.(trainingsFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.trainings = data.trainings
		m.progress = data.progress
		if data.favorites != nil {
			m.favorites = data.favorites
		}
		return m, m.setTrainingItems()

	case MsgTrainingFetched:
		data := msg.data.(trainingFetched)
		if data.err != nil {
			m.status = fmt.Sprintf("Could not open training: %v", data.err)
			return m, nil
		}
		m.training = data.training
		m.current = data.progress
		m.cursor = 0
		if next := data.progress.NextStep; next != nil {
			m.cursor = max(0, slices.IndexFunc(data.training.Steps, func(s models.TrainingStep) bool { return s.ID == next.ID }))
		}
		m.status = ""
		m.view = TrainingDetailView
		return m, nil

	case MsgFavoriteToggled:
		data := msg.data.(favoriteToggled)
		if data.err != nil {
			m.status = fmt.Sprintf("Could not update favorite: %v", data.err)
			return m, nil
		}
		if data.on {
			m.favorites[data.key] = true
			m.status = "Added to favorites"
		} else {
			delete(m.favorites, data.key)
			m.status = "Removed from favorites"
		}
		return m, tea.Batch(m.setResourceItems(), m.setTrainingItems())

	case MsgStepToggled:
		data := msg.data.(stepToggled)
		if data.err != nil {
			m.status = fmt.Sprintf("Could not update step: %v", data.err)
			return m, nil
		}
		m.current = data.progress
		m.progress[data.progress.TrainingID] = data.progress
		m.status = ""
		if data.progress.Done {
			m.status = "Training complete!"
		}
		return m, m.setTrainingItems()

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.syncLog = append(m.syncLog, update.Message)
		return m, m.waitForProgress()

	case MsgSyncComplete:
		data := msg.data.(syncComplete)
		m.syncResult = data.result
		m.syncErr = data.err
		m.syncing = false
		m.progressChan = nil
		m.syncDone = nil
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress esc to go back, q to quit", m.err))
	}

	switch m.view {
	case ResourceListView:
		return m.renderResourceList()
	case TagPromptView:
		return m.renderTagPrompt()
	case ResourceDetailView:
		return m.renderResourceDetail()
	case TrainingListView:
		return m.renderTrainingList()
	case TrainingDetailView:
		return m.renderTrainingDetail()
	case SyncView:
		return m.renderSync()
	default:
		return ""
	}
}

func (m *Model) userID() string {
	if m.user == nil {
		return ""
	}
	return m.user.ID
}

func (m *Model) handleErrorKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.err = nil
	}
	return m, nil
}

func (m *Model) handleResourceListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.resourceList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.resourceList, cmd = m.resourceList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.switchTo):
		m.view, m.status = TrainingListView, ""
		return m, nil
	case key.Matches(msg, m.keys.tags):
		m.view = TagPromptView
		m.tagInput.SetValue(strings.Join(m.tags, ", "))
		m.tagInput.CursorEnd()
		return m, m.tagInput.Focus()
	case key.Matches(msg, m.keys.sync):
		return m, m.startSync(ResourceListView)
	case key.Matches(msg, m.keys.favorite):
		if r, ok := m.selectedResource(); ok {
			return m, m.toggleFavorite(models.KindResource, r.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if r, ok := m.selectedResource(); ok {
			m.resource = &r
			m.view, m.status = ResourceDetailView, ""
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.resourceList, cmd = m.resourceList.Update(msg)
	return m, cmd
}

func (m *Model) handleTagPromptKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.tagInput.Blur()
		m.view = ResourceListView
		return m, nil
	case tea.KeyEnter:
		m.tagInput.Blur()
		m.tags = shared.SplitTags(m.tagInput.Value())
		m.view = ResourceListView
		m.resourceList.ResetFilter()
		return m, m.fetchResources()
	}

	var cmd tea.Cmd
	m.tagInput, cmd = m.tagInput.Update(msg)
	return m, cmd
}

func (m *Model) handleResourceDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view, m.status = ResourceListView, ""
	case key.Matches(msg, m.keys.favorite):
		return m, m.toggleFavorite(models.KindResource, m.resource.ID)
	}
	return m, nil
}

func (m *Model) handleTrainingListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.trainingList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.trainingList, cmd = m.trainingList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.switchTo):
		m.view, m.status = ResourceListView, ""
		return m, nil
	case key.Matches(msg, m.keys.sync):
		return m, m.startSync(TrainingListView)
	case key.Matches(msg, m.keys.favorite):
		if t, ok := m.selectedTraining(); ok {
			return m, m.toggleFavorite(models.KindTraining, t.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if t, ok := m.selectedTraining(); ok {
			return m, m.fetchTraining(t.Slug)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.trainingList, cmd = m.trainingList.Update(msg)
	return m, cmd
}

func (m *Model) handleTrainingDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view, m.status = TrainingListView, ""
	case key.Matches(msg, m.keys.up):
		m.cursor = max(0, m.cursor-1)
	case key.Matches(msg, m.keys.down):
		m.cursor = max(0, min(len(m.training.Steps)-1, m.cursor+1))
	case key.Matches(msg, m.keys.favorite):
		return m, m.toggleFavorite(models.KindTraining, m.training.ID)
	case key.Matches(msg, m.keys.toggle):
		if m.cursor < len(m.training.Steps) {
			return m, m.toggleStep(m.training.Slug, m.training.Steps[m.cursor].ID)
		}
	}
	return m, nil
}

func (m *Model) handleSyncKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.syncing {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.enter):
		m.view = m.returnTo
		return m, tea.Batch(m.fetchResources(), m.fetchTrainings())
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case ResourceListView:
		m.resourceList, cmd = m.resourceList.Update(msg)
	case TrainingListView:
		m.trainingList, cmd = m.trainingList.Update(msg)
	case TagPromptView:
		m.tagInput, cmd = m.tagInput.Update(msg)
	}
	return m, cmd
}

func (m *Model) selectedResource() (models.Resource, bool) {
	item, ok := m.resourceList.SelectedItem().(resourceItem)
	return item.resource, ok
}

func (m *Model) selectedTraining() (models.Training, bool) {
	item, ok := m.trainingList.SelectedItem().(trainingItem)
	return item.training, ok
}

func (m *Model) setResourceItems() tea.Cmd {
	items := make([]list.Item, len(m.resources))
	for i, r := range m.resources {
		items[i] = resourceItem{resource: r, favorite: m.favorites[models.FavoriteKey{Kind: models.KindResource, ItemID: r.ID}]}
	}
	m.resourceList.Title = "Resources"
	if len(m.tags) > 0 {
		m.resourceList.Title = fmt.Sprintf("Resources tagged %s", strings.Join(m.tags, " + "))
	}
	return m.resourceList.SetItems(items)
}

func (m *Model) setTrainingItems() tea.Cmd {
	items := make([]list.Item, len(m.trainings))
	for i, t := range m.trainings {
		items[i] = trainingItem{
			training: t,
			progress: m.progress[t.ID],
			favorite: m.favorites[models.FavoriteKey{Kind: models.KindTraining, ItemID: t.ID}],
		}
	}
	return m.trainingList.SetItems(items)
}

func (m *Model) favoriteKeys() (map[models.FavoriteKey]bool, error) {
	if m.user == nil {
		return nil, nil
	}
	return m.lib.FavoriteKeys(m.user.ID)
}

func (m *Model) fetchResources() tea.Cmd {
	filter := tasks.ResourceFilter{Tags: slices.Clone(m.tags)}
	return func() tea.Msg {
		resources, err := m.lib.Resources(m.ctx, filter)
		if err != nil {
			return resourcesFetchedMsg(nil, nil, err)
		}
		favorites, err := m.favoriteKeys()
		return resourcesFetchedMsg(resources, favorites, err)
	}
}

func (m *Model) fetchTrainings() tea.Cmd {
	return func() tea.Msg {
		trainings, err := m.lib.Trainings(m.ctx)
		if err != nil {
			return trainingsFetchedMsg(nil, nil, nil, err)
		}

		progress := map[string]models.TrainingProgress{}
		if m.user != nil {
			report, err := m.lib.ProgressReport(m.ctx, m.user.ID)
			if err != nil {
				return trainingsFetchedMsg(nil, nil, nil, err)
			}
			for _, s := range report {
				progress[s.Training.ID] = s.Progress
			}
		}

		favorites, err := m.favoriteKeys()
		return trainingsFetchedMsg(trainings, progress, favorites, err)
	}
}

func (m *Model) fetchTraining(slug string) tea.Cmd {
	uid := m.userID()
	return func() tea.Msg {
		training, progress, err := m.lib.Progress(m.ctx, uid, slug)
		return trainingFetchedMsg(training, progress, err)
	}
}

func (m *Model) toggleFavorite(kind models.Kind, id string) tea.Cmd {
	if m.user == nil {
		m.status = "Favorites need a user: start the browser with --email"
		return nil
	}
	uid := m.user.ID
	return func() tea.Msg {
		on, err := m.lib.ToggleFavorite(m.ctx, uid, kind, id)
		return favoriteToggledMsg(models.FavoriteKey{Kind: kind, ItemID: id}, on, err)
	}
}

func (m *Model) toggleStep(slug, stepID string) tea.Cmd {
	if m.user == nil {
		m.status = "Progress needs a user: start the browser with --email"
		return nil
	}
	uid := m.user.ID
	return func() tea.Msg {
		progress, err := m.lib.ToggleStep(m.ctx, uid, slug, stepID)
		return stepToggledMsg(progress, err)
	}
}

func (m *Model) startSync(from ViewState) tea.Cmd {
	if m.syncer == nil {
		m.status = "Sync is not available"
		return nil
	}

	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan Msg, 1)
	m.progressChan, m.syncDone = progress, done
	m.syncing = true
	m.syncLog = nil
	m.syncResult, m.syncErr = nil, nil
	m.returnTo = from
	m.view = SyncView

	go func() {
		result, err := m.syncer.Sync(m.ctx, progress, m.syncOpts)
		done <- syncCompleteMsg(result, err)
		close(progress)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.syncDone
	if progress == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-progress
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) statusLine() string {
	if m.status == "" {
		return ""
	}
	return "\n" + styles.warn.Render(m.status)
}

func (m *Model) renderResourceList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.tags, m.keys.favorite, m.keys.switchTo, m.keys.quit}
	if m.syncer != nil {
		helpKeys = append(helpKeys, m.keys.sync)
	}
	return fmt.Sprintf("%s%s\n\n%s", m.resourceList.View(), m.statusLine(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderTagPrompt() string {
	title := styles.title.Render("Filter resources by tag")
	note := styles.help.Render("Resources must carry every tag. Leave empty to show all.")
	apply := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply"))
	cancel := key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel"))
	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s", title, m.tagInput.View(), note, m.help.ShortHelpView([]key.Binding{apply, cancel}))
}

func (m *Model) renderTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	rendered := make([]string, len(tags))
	for i, t := range tags {
		rendered[i] = styles.tag.Render(t)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m *Model) renderResourceDetail() string {
	r := m.resource
	fav := m.favorites[models.FavoriteKey{Kind: models.KindResource, ItemID: r.ID}]

	var b strings.Builder
	b.WriteString(styles.title.Render(star(fav) + r.Title))
	b.WriteString("\n")
	meta := []string{string(r.Source)}
	if r.Category != nil {
		meta = append(meta, r.Category.Title)
	}
	if !r.PublishedAt.IsZero() {
		meta = append(meta, r.PublishedAt.Format("Jan 2, 2006"))
	}
	b.WriteString(styles.help.Render(strings.Join(meta, " • ")))
	b.WriteString("\n")
	if tags := m.renderTags(r.Tags); tags != "" {
		b.WriteString(tags + "\n")
	}
	if r.Description != "" {
		b.WriteString("\n" + r.Description + "\n")
	}
	if link := r.Link(); link != "" {
		b.WriteString("\n" + styles.ok.Render("Link: ") + link + "\n")
	}

	helpKeys := []key.Binding{m.keys.favorite, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s%s\n\n%s", b.String(), m.statusLine(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderTrainingList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.favorite, m.keys.switchTo, m.keys.quit}
	if m.syncer != nil {
		helpKeys = append(helpKeys, m.keys.sync)
	}
	return fmt.Sprintf("%s%s\n\n%s", m.trainingList.View(), m.statusLine(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderTrainingDetail() string {
	t := m.training
	p := m.current
	fav := m.favorites[models.FavoriteKey{Kind: models.KindTraining, ItemID: t.ID}]

	var b strings.Builder
	b.WriteString(styles.title.Render(star(fav) + t.Title))
	b.WriteString("\n")
	if t.Description != "" {
		b.WriteString(t.Description + "\n\n")
	}
	fmt.Fprintf(&b, "%s %d of %d steps · %d%%\n\n", formatter.ProgressBar(p.Percent, 20), p.Completed, p.Total, p.Percent)

	for i, step := range t.Steps {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		check := "[ ]"
		if p.IsComplete(step.ID) {
			check = styles.ok.Render("[x]")
		}
		line := fmt.Sprintf("%s%s %d. %s", cursor, check, i+1, step.Title)
		if step.Duration > 0 {
			line += styles.help.Render(" (" + formatter.FormatMinutes(step.Duration) + ")")
		}
		b.WriteString(line + "\n")
	}

	if m.cursor < len(t.Steps) {
		step := t.Steps[m.cursor]
		if step.Body != "" {
			b.WriteString("\n" + step.Body + "\n")
		}
		if step.VideoURL != "" {
			b.WriteString(styles.help.Render("Video: "+step.VideoURL) + "\n")
		}
	}

	helpKeys := []key.Binding{m.keys.up, m.keys.down, m.keys.toggle, m.keys.favorite, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s%s\n\n%s", b.String(), m.statusLine(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderSync() string {
	if m.syncing {
		title := styles.title.Render("Syncing content")
		recent := m.syncLog[max(0, len(m.syncLog)-8):]
		return fmt.Sprintf("%s\n\n%s", title, strings.Join(recent, "\n"))
	}

	back := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "back"))
	helpView := m.help.ShortHelpView([]key.Binding{back, m.keys.quit})

	if m.syncErr != nil && m.syncResult == nil {
		return styles.err.Render(fmt.Sprintf("Sync failed: %v", m.syncErr)) + "\n\n" + helpView
	}

	var b strings.Builder
	if m.syncResult.Failed() {
		b.WriteString(styles.warn.Render("Sync finished with errors"))
	} else {
		b.WriteString(styles.ok.Render("✓ Sync complete"))
	}
	b.WriteString("\n")

	for _, kind := range slices.Sorted(maps.Keys(m.syncResult.Counts)) {
		fmt.Fprintf(&b, "\n  %ss: %d cached", kind, m.syncResult.Counts[kind])
		if pruned := m.syncResult.Pruned[kind]; pruned > 0 {
			fmt.Fprintf(&b, ", %d removed", pruned)
		}
	}
	for _, ke := range m.syncResult.Errors {
		b.WriteString("\n" + styles.err.Render(fmt.Sprintf("  %ss: %v", ke.Kind, ke.Error)))
	}
	fmt.Fprintf(&b, "\n\nTook %s", m.syncResult.Duration.Round(time.Millisecond))

	return b.String() + "\n\n" + helpView
}
