// Package middleware adapts access token validation to net/http.
//
// [Guard] reads the Authorization bearer token or the accessToken cookie,
// calls Engine.ValidateAccess, and stores the result in the request context.
// Rejections use the same JSON error body as the httpauth handlers.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to the Engine).
//   - Touch the session store. Access tokens are validated statelessly.
package middleware
