// Package ui implements an interactive terminal browser for the trainhub library using bubbletea's Elm architecture.
//
// Views:
//  1. [ResourceListView] : Browse merged CMS and user resources, narrowed by a tag filter
//  2. [TagPromptView] : Enter the comma separated tags to filter by
//  3. [ResourceDetailView] : Read one resource
//  4. [TrainingListView] : Browse trainings with the signed in user's progress
//  5. [TrainingDetailView] : Step through a training and mark steps complete
//  6. [SyncView] : Refresh the content cache from the CMS and watch progress
//
// Favorites and step completion need a user, chosen on the command line by email.
// Without one the browser is read-only.
//
// The [Model] receives results of background commands through the [Msg] union type.
// Sync progress flows through a channel from the ContentEngine, the same way the
// CLI reports it.
package ui
