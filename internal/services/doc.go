// Package services defines typed wrappers over the Folio REST API.
//
// Each service owns one resource area and exposes one method per endpoint,
// forwarding parameters to the shared [api.Client] pipeline and decoding the
// transcoded response into typed values. The pipeline owns every
// cross-cutting concern (CSRF, retries, session refresh); services stay thin
// by design.
//
// # Error Handling
//
// Services surface the pipeline's normalized [*api.Error] values, wrapping
// well-known cases with sentinels from the shared package:
//   - [shared.ErrProjectNotFound] : project ID or slug unknown
//   - [shared.ErrClipNotFound] : clip ID unknown
//   - [shared.ErrNotAuthenticated] : no valid session for a /me endpoint
//
// # Content Pass-Through
//
// Section content is owned by the editor subsystem; its JSON shape crosses
// this layer as [json.RawMessage] and the pipeline's transcoder leaves the
// subtree untouched in both directions.
package services
