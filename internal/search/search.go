package search

// TicketRecord is the data we index for a helpdesk ticket.
type TicketRecord struct {
	ID        int    `json:"id"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Requester string `json:"requester"`
	Assignee  string `json:"assignee"`
	Priority  string `json:"priority"`
	Status    string `json:"status"`
}

// Query describes a search request.
type Query struct {
	Text         string
	FilterStatus string // empty = all statuses
	Limit        int
	Offset       int
}

// Result is a single search hit returned to the caller.
type Result struct {
	ID      int    `json:"id"`
	Subject string `json:"subject"`
	Snippet string `json:"snippet"`
	Status  string `json:"status"`
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over tickets.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push tickets into a search index.
type Indexer interface {
	IndexTicket(t TicketRecord) error
	DeleteTicket(id int) error
}
