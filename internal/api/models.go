package api

// QueryRequest is the body of POST /api/query
type QueryRequest struct {
	Query        string `json:"query"`
	ForceRefresh bool   `json:"forceRefresh"`
}

// QueryMetadata describes where an answer came from
type QueryMetadata struct {
	Source          string   `json:"source"`
	QueryType       string   `json:"query_type"`
	SimilarityScore *float64 `json:"similarity_score,omitempty"`
}

// QueryResponse is the body of a successful query
type QueryResponse struct {
	Response string        `json:"response"`
	Metadata QueryMetadata `json:"metadata"`
}

// ErrorResponse carries a client or server error message
type ErrorResponse struct {
	Error string `json:"error"`
}
