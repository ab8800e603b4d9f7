package model

import "log/slog"

// Engine input names for the credentials. The extraction engine reads the
// keys under exactly these names.
const (
	InputJinaAPIKey       = "JINA_API_KEY"
	InputOpenRouterAPIKey = "OPENROUTER_API_KEY"
)

// redacted replaces a credential wherever Credentials is printed or logged.
const redacted = "***REDACTED***"

// Credentials holds the two opaque secrets handed to every engine invocation.
// The core never inspects them beyond checking for presence.
//
// Credentials is a value type: it is created once at process start and passed
// by value to the discovery runner and the target extractor, never stored in
// package-level state.
type Credentials struct {
	// JinaAPIKey authenticates the content-retrieval service used by workflows.
	JinaAPIKey string

	// OpenRouterAPIKey authenticates the language-model gateway used by workflows.
	OpenRouterAPIKey string
}

// NewCredentials creates Credentials from the two keys.
func NewCredentials(jinaAPIKey, openRouterAPIKey string) Credentials {
	return Credentials{
		JinaAPIKey:       jinaAPIKey,
		OpenRouterAPIKey: openRouterAPIKey,
	}
}

// Inputs returns the credentials keyed by the engine input names.
// The returned map is a fresh copy on every call.
func (c Credentials) Inputs() map[string]string {
	return map[string]string{
		InputJinaAPIKey:       c.JinaAPIKey,
		InputOpenRouterAPIKey: c.OpenRouterAPIKey,
	}
}

// Missing returns the engine input names whose value is empty.
func (c Credentials) Missing() []string {
	var missing []string
	if c.JinaAPIKey == "" {
		missing = append(missing, InputJinaAPIKey)
	}
	if c.OpenRouterAPIKey == "" {
		missing = append(missing, InputOpenRouterAPIKey)
	}
	return missing
}

// String implements fmt.Stringer without revealing either key.
func (c Credentials) String() string {
	return "Credentials{" + InputJinaAPIKey + ":" + mask(c.JinaAPIKey) +
		", " + InputOpenRouterAPIKey + ":" + mask(c.OpenRouterAPIKey) + "}"
}

// GoString keeps %#v from printing the keys.
func (c Credentials) GoString() string {
	return c.String()
}

// LogValue implements slog.LogValuer so that a Credentials value passed to a
// logger is always redacted, regardless of the handler in use.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("jina", mask(c.JinaAPIKey)),
		slog.String("openrouter", mask(c.OpenRouterAPIKey)),
	)
}

// mask hides a secret while still telling whether it was set.
func mask(s string) string {
	if s == "" {
		return "<unset>"
	}
	return redacted
}
