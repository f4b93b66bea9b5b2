// Package auth provides authentication middleware for the delayboard server.
//
// APIKey(mode, header, key) returns HTTP middleware that validates the API key
// from the named request header. Browsers cannot set headers on a WebSocket
// handshake, so the key is also accepted in the api_key query parameter.
//
// When mode != "apikey" or key == "", all requests pass through (useful for
// local development with auth disabled). When the key is incorrect or absent,
// the middleware responds 401 immediately.
package auth
