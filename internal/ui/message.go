package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgResourcesFetched MsgKind = iota
	MsgTrainingsFetched
	MsgTrainingFetched
	MsgFavoriteToggled
	MsgStepToggled
	MsgProgressUpdate
	MsgSyncComplete
)

type resourcesFetched struct {
	resources []models.Resource
	favorites map[models.FavoriteKey]bool
	err       error
}

type trainingsFetched struct {
	trainings []models.Training
	progress  map[string]models.TrainingProgress
	favorites map[models.FavoriteKey]bool
	err       error
}

type trainingFetched struct {
	training *models.Training
	progress models.TrainingProgress
	err      error
}

type favoriteToggled struct {
	key models.FavoriteKey
	on  bool
	err error
}

type stepToggled struct {
	progress models.TrainingProgress
	err      error
}

type syncComplete struct {
	result *tasks.SyncResult
	err    error
}

// resourcesFetchedMsg is the constructor for [MsgResourcesFetched]
func resourcesFetchedMsg(resources []models.Resource, favorites map[models.FavoriteKey]bool, err error) Msg {
	return Msg{kind: MsgResourcesFetched, data: resourcesFetched{resources, favorites, err}}
}

// trainingsFetchedMsg is the constructor for [MsgTrainingsFetched]
func trainingsFetchedMsg(trainings []models.Training, progress map[string]models.TrainingProgress, favorites map[models.FavoriteKey]bool, err error) Msg {
	return Msg{kind: MsgTrainingsFetched, data: trainingsFetched{trainings, progress, favorites, err}}
}

// trainingFetchedMsg is the constructor for [MsgTrainingFetched]
func trainingFetchedMsg(training *models.Training, progress models.TrainingProgress, err error) Msg {
	return Msg{kind: MsgTrainingFetched, data: trainingFetched{training, progress, err}}
}

// favoriteToggledMsg is the constructor for [MsgFavoriteToggled]
func favoriteToggledMsg(key models.FavoriteKey, on bool, err error) Msg {
	return Msg{kind: MsgFavoriteToggled, data: favoriteToggled{key, on, err}}
}

// stepToggledMsg is the constructor for [MsgStepToggled]
func stepToggledMsg(progress models.TrainingProgress, err error) Msg {
	return Msg{kind: MsgStepToggled, data: stepToggled{progress, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// syncCompleteMsg is the constructor for [MsgSyncComplete]
func syncCompleteMsg(result *tasks.SyncResult, err error) Msg {
	return Msg{kind: MsgSyncComplete, data: syncComplete{result, err}}
}
