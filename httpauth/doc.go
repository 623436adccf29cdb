// Package httpauth exposes the Engine over HTTP.
//
// Routes:
//
//	POST /login    {usernameOrEmail | username | email, password}
//	POST /refresh  refreshToken cookie or {refreshToken} body
//	POST /logout   requires an access token (bearer or accessToken cookie)
//
// Login and refresh set the accessToken and refreshToken cookies, always
// HttpOnly. Logout clears both. Successful responses use the envelope
// {statusCode, data, message, success}; failures use
// {statusCode, code, message, success:false} with the stable public code of
// the error kind.
package httpauth
