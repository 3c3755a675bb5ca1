// Package repositories implements SQLite persistence for accounts, user authored content and activity.
//
// Entity repositories use atomic sequence generation for stable ordering and soft deletes
// via deleted_at timestamps; deleted records are excluded from queries by default.
//
// Key Implementations:
//   - [UserRepository] : Accounts with bcrypt passwords and email lookups
//   - [SessionRepository] : Login sessions with expiry
//   - [ResourceRepository] : User authored resources and their tags
//   - [TrainingRepository] : User authored trainings with ordered steps
//   - [FavoriteRepository] : Per user bookmarks of posts, resources and trainings
//   - [ProgressRepository] : Per user step completion
//   - [ContentCacheRepository] : Last synced CMS documents, used when the CMS is unreachable
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
// Slug uniqueness and foreign keys are enforced by the schema; constraint violations surface as
// [shared.ErrConflict] or the driver error.
package repositories
