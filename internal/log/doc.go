// Package log provides secure logging for pharmacrawl, built on top of the
// standard slog package.
//
// Every logger handed to the crawl components goes through SecureHandler,
// which masks attribute values that look like credentials:
//   - keys naming a credential (jina_api_key, openrouter_api_key, token,
//     authorization and similar)
//   - values shaped like the content-retrieval or model-gateway API keys
//   - bearer and basic authorization values
//
// Values implementing slog.LogValuer are resolved before inspection, so a
// model.Credentials passed as an attribute is checked like any other group.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Info("engine request", "url", endpoint, "authorization", "Bearer jina_abc")
//	// authorization=***REDACTED***
package log
