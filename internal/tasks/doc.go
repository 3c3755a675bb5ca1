// Package tasks holds the dashboard's application logic with real-time progress reporting.
//
// # Content Sync
//
// [ContentEngine.Sync] copies posts, resources, trainings and tags from the CMS into the
// local content cache:
//
//  1. A producer fetches each kind from the CMS, paced by a rate limiter
//  2. A worker pool writes the documents to the [ContentCache]
//  3. Documents the CMS no longer returns are pruned, per kind that synced cleanly
//
// A kind that fails is reported in [SyncResult.Errors] and keeps its previous cache.
//
// # Library
//
// [Library] serves pages and commands. It merges CMS content with user authored
// resources and trainings, falls back to the cache when the CMS is unreachable,
// and tracks favorites and step completion per user. Only the owner may edit user
// authored content; CMS content is read-only. Every write publishes an
// [events.Change] so live pages can refresh.
//
// [Library.Export] writes the library to disk with a worker pool and an
// export_manifest.json summarizing each unit.
//
// # Progress Reporting
//
// Long-running operations accept an optional channel of [ProgressUpdate]. Updates
// are sent with select and default so a slow reader never blocks the work.
package tasks
