// internal/models/question.go
package models

// TestCase is a single input/expected-output pair attached to a question.
// Order matters: the execution service reports results index-aligned with
// the test cases it was given.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// Question is fetched from the question provider when a match starts. The
// coordinator treats it as opaque payload: it only cares about the count of
// questions and the ordered test cases it forwards to the execution service.
type Question struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Level       string     `json:"level"`
	TestCases   []TestCase `json:"test_cases"`
}
