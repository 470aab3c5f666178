// Package renovo provides an authenticated API client that manages the whole
// credential lifecycle around the standard net/http client:
//
//   - Bearer token attachment, read fresh at send time
//   - Single-flight token refresh (concurrent 401s share one refresh call)
//   - Retry-once-on-401 with the newly issued access token
//   - Refresh token rotation, persisted through a pluggable TokenStore
//   - One-shot session teardown with an at-most-once unauthorized callback
//   - A closed error taxonomy every failure maps into
//   - Request de-duplication, middleware chain, Prometheus metrics and
//     lightweight structured debug logging
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - A request either succeeds with a Result or fails with one *APIError
//   - Safe concurrent use of a single *Client instance
//   - Extensibility via user supplied middleware, stores and loggers
//
// Typical usage:
//
//	client := renovo.New("https://api.example.com",
//	    renovo.WithTokenStore(renovo.NewFileStore(path)),
//	    renovo.WithOnUnauthorized(func() { promptLogin() }),
//	)
//	client.SetTokens(access, refresh)
//	var out Profile
//	err := client.GetJSON(ctx, "/api/profile/", &out)
//
// Only a 401 triggers the automatic refresh-and-retry cycle; network and
// server errors surface immediately so callers keep control over retry
// policy. The library avoids opinionated logging: provide a Logger (e.g. via
// WithZerolog) + enable debug flags selectively (WithDebug / WithDebugConfig)
// for insight without noise.
package renovo
