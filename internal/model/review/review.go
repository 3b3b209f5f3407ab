package review

// MaxPerUser is how many reviews one user keeps per build.
const MaxPerUser = 2

// MinTextLength is the shortest accepted review body.
const MinTextLength = 10

// Review is a rating left on a build page. Ratings run from 0 to 5 in half
// steps; older entries may hold whole numbers only.
type Review struct {
	ID        string  `json:"id"`
	BuildID   string  `json:"buildId,omitempty"`
	UserID    string  `json:"userId"`
	Author    string  `json:"author"`
	Rating    float64 `json:"rating"`
	Text      string  `json:"text"`
	Timestamp int64   `json:"timestamp"`
}

// Summary aggregates a build's visible reviews.
type Summary struct {
	Reviews []Review `json:"reviews"`
	Count   int      `json:"count"`
	Average float64  `json:"average"`
}
