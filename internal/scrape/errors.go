package scrape

import "fmt"

// NetworkError reports a transport failure or a non-success HTTP status while
// fetching a page. Callers treat it as non-fatal: the unit of work that needed
// the page yields no result and the run continues.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ExtractionError reports markup that could not be parsed at all. Heuristic
// mismatches do not produce it; those degrade to empty results.
type ExtractionError struct {
	Country string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract country %s: %v", e.Country, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
