// Package api implements the shared HTTP client for the Folio backend.
//
// Every typed service wrapper funnels through [Client.Do], which composes the
// cross-cutting concerns in a fixed order:
//
//  1. CSRF: state-changing methods (POST/PUT/PATCH/DELETE) carry the
//     anti-forgery token read from the cookie jar, bootstrapped lazily via
//     GET /auth/csrf/ when no token cookie exists yet.
//  2. Transcoding: JSON request bodies are converted from camelCase to
//     snake_case (with a pass-through set for fields owned by other
//     subsystems, such as editor content); responses are converted back.
//     Raw/multipart bodies bypass transcoding entirely.
//  3. Dispatch with a per-request ID and optional client-side rate limiting.
//
// On failure the pipeline classifies the error and routes it:
//
//   - Transient statuses (408, 429, 5xx) and transient transport errors are
//     retried with exponential backoff and jitter, for idempotent methods
//     only. Writes are never auto-retried: repeating a non-idempotent
//     request risks duplicate side effects.
//   - 401 responses outside the public-path allowlist go through the
//     [RefreshCoordinator], which single-flights POST /auth/refresh/ across
//     all concurrent callers and replays each original request once the
//     refresh settles.
//   - Everything else is normalized into [*Error] and returned.
//
// Callers only ever observe the final outcome; intermediate retries and
// refresh cycles are invisible.
package api
