// internal/clients/questions.go
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/t1ww/code-battle/internal/models"
)

// QuestionClient talks to the external question provider. The provider is a
// black-box request/response service; transient failures are retried with a
// short backoff.
type QuestionClient struct {
	baseURL string
	http    *http.Client
	log     *logrus.Logger
	retries int
}

func NewQuestionClient(baseURL string, log *logrus.Logger) *QuestionClient {
	return &QuestionClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
		retries: 2,
	}
}

// FetchQuestion retrieves one question with its ordered test cases.
func (c *QuestionClient) FetchQuestion(ctx context.Context, level string) (*models.Question, error) {
	u := fmt.Sprintf("%s/questions?level=%s", c.baseURL, url.QueryEscape(level))

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}
		q, err := c.fetchOnce(ctx, u)
		if err == nil {
			return q, nil
		}
		lastErr = err
		c.log.Warnf("question fetch attempt %d failed: %v", attempt+1, err)
	}
	return nil, fmt.Errorf("question provider unavailable: %w", lastErr)
}

func (c *QuestionClient) fetchOnce(ctx context.Context, u string) (*models.Question, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("question provider returned %s", resp.Status)
	}
	var q models.Question
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return nil, fmt.Errorf("decoding question: %w", err)
	}
	return &q, nil
}

// FetchQuestions retrieves count questions for a match.
func (c *QuestionClient) FetchQuestions(ctx context.Context, count int, level string) ([]models.Question, error) {
	questions := make([]models.Question, 0, count)
	for i := 0; i < count; i++ {
		q, err := c.FetchQuestion(ctx, level)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, nil
}
