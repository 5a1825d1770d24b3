package main

// SourceSummary aggregates every decision recorded by one source.
type SourceSummary struct {
	Source     string  `json:"source"`
	Games      int64   `json:"games"`
	Decisions  int64   `json:"decisions"`
	Random     int64   `json:"random_fallbacks"`
	Default    int64   `json:"default_fallbacks"`
	Wins       int64   `json:"forced_wins"`
	Losses     int64   `json:"forced_losses"`
	AvgDepth   float64 `json:"avg_depth"`
	AvgNodes   float64 `json:"avg_nodes"`
	P95Elapsed float64 `json:"p95_elapsed_us"`
	// Compared and Agreed only count replay rows that carry the move actually played.
	Compared int64 `json:"compared"`
	Agreed   int64 `json:"agreed"`
}

// Agreement is the share of compared decisions that matched the played move.
func (s SourceSummary) Agreement() float64 {
	if s.Compared == 0 {
		return 0
	}
	return float64(s.Agreed) / float64(s.Compared)
}

// SnakeAgreement is how often the engine agreed with one replayed snake.
type SnakeAgreement struct {
	SnakeID  string `json:"snake_id"`
	Compared int64  `json:"compared"`
	Agreed   int64  `json:"agreed"`
}

// DepthBucket counts decisions by completed search depth.
type DepthBucket struct {
	Depth     int32   `json:"depth"`
	Decisions int64   `json:"decisions"`
	AvgNodes  float64 `json:"avg_nodes"`
}

// Report is everything the viewer prints or serves.
type Report struct {
	Sources []SourceSummary  `json:"sources"`
	Snakes  []SnakeAgreement `json:"snakes"`
	Depths  []DepthBucket    `json:"depths"`
}
