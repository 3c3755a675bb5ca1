// Package services defines the [ContentService] interface for the headless CMS and implements it with [CMSService].
//
// # Query API
//
// Content is read through the CMS query endpoint:
//
//	GET {base}/v{apiVersion}/data/query/{dataset}?query=<query>&$param=<json>
//
// Successful responses wrap the payload in an envelope with a "result" key. A query for a single
// document that matches nothing returns "result": null, which [QueryClient.Query] reports as
// [shared.ErrNotFound].
//
// # Typed Queries
//
// Each [ContentService] method runs one constant query string that projects the document into the flat
// shape of a models record (for example "slug": slug.current), so responses decode straight into
// [models.Post], [models.Resource] and [models.Training].
//
// # Authentication
//
// Private datasets need a token. [NewCMSService] wraps the HTTP client with an [oauth2] static token
// source, so every request carries "Authorization: Bearer <token>".
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotFound] : single document query matched nothing
//   - [shared.ErrAPIRequest] : the CMS rejected the query (4xx) or returned an unreadable body
//   - [shared.ErrServiceUnavailable] : transport failure or 5xx
//
// # Images
//
// [ImageBuilder] turns CMS asset references into CDN URLs with optional resize parameters.
package services
