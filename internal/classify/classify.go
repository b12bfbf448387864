// Package classify submits captured images to the disease classification service.
package classify

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/mikeyg42/plantwatch/internal/report"
)

// ClassifyPath is the service's upload endpoint.
const ClassifyPath = "/classify/"

// Classifier scores one image.
type Classifier interface {
	Classify(ctx context.Context, filename string, image []byte) ([]report.Score, error)
}

// StatusError is a non-2xx reply from the service.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Temporary reports whether retrying could succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

type classifyResponse struct {
	Results []report.Score `json:"classification_results"`
}

// HTTPClassifier posts images as multipart form data.
type HTTPClassifier struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewHTTPClassifier creates a client for the service at baseURL.
func NewHTTPClassifier(baseURL string, timeout time.Duration) *HTTPClassifier {
	r := resty.New()
	r.SetBaseURL(baseURL)
	r.SetHeader("Accept", "application/json")
	if timeout > 0 {
		r.SetTimeout(timeout)
	}

	return &HTTPClassifier{
		http:   r,
		logger: zap.L().Named("classify"),
	}
}

func (c *HTTPClassifier) Classify(ctx context.Context, filename string, image []byte) ([]report.Score, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", filename, bytes.NewReader(image)).
		SetResult(&classifyResponse{}).
		Post(ClassifyPath)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", filename, err)
	}

	if resp.IsError() {
		return nil, &StatusError{
			Op:         "classify " + filename,
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
		}
	}

	result, ok := resp.Result().(*classifyResponse)
	if !ok || result == nil {
		return nil, fmt.Errorf("classify %s: unexpected response %q", filename, resp.String())
	}

	c.logger.Debug("Image classified",
		zap.String("file", filename),
		zap.Int("labels", len(result.Results)),
		zap.Duration("elapsed", resp.Time()))

	return result.Results, nil
}
