package index

// IndexingResult aggregates the outcome of one batch of index writes.
type IndexingResult struct {
	Total    int
	Success  int
	Failures int
}

// IsSuccess reports whether nothing failed.
func (r IndexingResult) IsSuccess() bool {
	return r.Failures == 0
}

// SuccessRatio is Success/Total, or 1 for an empty result.
func (r IndexingResult) SuccessRatio() float64 {
	if r.Total == 0 {
		return 1
	}
	return float64(r.Success) / float64(r.Total)
}

// Add returns the sum of both results.
func (r IndexingResult) Add(other IndexingResult) IndexingResult {
	return IndexingResult{
		Total:    r.Total + other.Total,
		Success:  r.Success + other.Success,
		Failures: r.Failures + other.Failures,
	}
}

func (r *IndexingResult) succeed(n int) {
	r.Total += n
	r.Success += n
}

func (r *IndexingResult) fail(n int) {
	r.Total += n
	r.Failures += n
}
