package model

// ParamURL is the only extraction parameter name currently defined.
const ParamURL = "url"

// Params maps extraction parameter names to values for one engine invocation.
type Params map[string]string

// NewTargetParams returns the parameters for extracting a single target.
func NewTargetParams(url string) Params {
	return Params{ParamURL: url}
}

// ExtractionResult is the structured record produced for one target URL.
type ExtractionResult struct {
	// Index is the position of URL in the discovered target list.
	Index int `json:"index"`

	// URL is the target the record was extracted from.
	URL string `json:"url"`

	// Data is the free-form record returned by the engine. It is written to
	// the output artifact verbatim.
	Data any `json:"data"`
}

// ResultSet is the ordered accumulation of successful extraction results.
// Order matches discovery order. It is append-only; the orchestrator is its
// only writer.
type ResultSet struct {
	results []ExtractionResult
}

// NewResultSet creates an empty ResultSet with room for capacity results.
func NewResultSet(capacity int) *ResultSet {
	if capacity < 0 {
		capacity = 0
	}
	return &ResultSet{results: make([]ExtractionResult, 0, capacity)}
}

// Append adds a result at the end of the set.
func (rs *ResultSet) Append(r ExtractionResult) {
	rs.results = append(rs.results, r)
}

// Len returns the number of results.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.results)
}

// Results returns a copy of the results in order.
func (rs *ResultSet) Results() []ExtractionResult {
	if rs == nil {
		return []ExtractionResult{}
	}
	out := make([]ExtractionResult, len(rs.results))
	copy(out, rs.results)
	return out
}

// Records returns the record payloads in order. This is what the output
// artifact contains. An empty set yields an empty, non-nil slice so that it
// serializes as [] rather than null.
func (rs *ResultSet) Records() []any {
	if rs == nil {
		return []any{}
	}
	out := make([]any, len(rs.results))
	for i, r := range rs.results {
		out[i] = r.Data
	}
	return out
}

// URLs returns the target URLs of the results in order.
func (rs *ResultSet) URLs() []string {
	if rs == nil {
		return []string{}
	}
	out := make([]string, len(rs.results))
	for i, r := range rs.results {
		out[i] = r.URL
	}
	return out
}
