// Package auth exchanges API key credentials for short-lived bearer tokens and
// attaches them to outgoing requests.
//
// [TokenCache] is a small state machine (absent, valid, refreshing). Tokens are
// refreshed five minutes before they expire, and concurrent callers that need
// a token share a single in-flight exchange. [Interceptor] stamps the
// Authorization header and drops the cached token when the API answers 401.
package auth
