// Package graph is a minimal client for the Instagram Graph API content
// publishing flow.
//
// Publishing is two calls: POST /{ig-user-id}/media with image_url and caption
// creates a container, and POST /{ig-user-id}/media_publish with creation_id
// makes it live. Errors carry services markers: 4xx responses other than 429
// are permanent, 429, 5xx and network failures are external (transient).
package graph
