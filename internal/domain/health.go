package domain

// ============================================================
// Health & Stats API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of one dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// HubStats is returned by GET /admin/stats.
type HubStats struct {
	LoginsSucceeded    float64            `json:"loginsSucceeded"`
	LoginsFailed       float64            `json:"loginsFailed"`
	GuardDenials       map[string]float64 `json:"guardDenials"`
	PublishesSucceeded float64            `json:"publishesSucceeded"`
	PublishesFailed    float64            `json:"publishesFailed"`
	BulkItemsCreated   float64            `json:"bulkItemsCreated"`
	BulkItemsRejected  float64            `json:"bulkItemsRejected"`
	SessionsSwept      float64            `json:"sessionsSwept"`
	Brands             int                `json:"brands"`
	Partners           int                `json:"partners"`
	Posts              int                `json:"posts"`
}

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

// NewListResponse never serializes a nil slice as null.
func NewListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Data: items, Total: len(items)}
}
