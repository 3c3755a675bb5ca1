// Package models defines the records shared by the CMS client, the repositories and the web layer.
//
// The package contains two categories of types:
//
// 1. Content records mirrored from the headless CMS (or authored locally by users):
//   - [Post] : Blog post with excerpt, body and categories
//   - [Resource] : Downloadable or linkable item with tags
//   - [Training] : Ordered list of [TrainingStep] records
//   - [Tag], [Category] : Taxonomy
//
// 2. Per-user records persisted in the relational store:
//   - [User], [Session] : Accounts and cookie sessions
//   - [Favorite] : A user's bookmarked post, resource or training
//   - [StepCompletion] : One completed step of a training
//
// [TrainingProgress] is derived from a [Training] and the user's completions; it is never stored.
// Content with [SourceUser] lives in the database and may be edited by its owner.
package models
