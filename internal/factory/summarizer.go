package factory

import (
	"fmt"
	"time"

	"github.com/meetscribe/meetscribe/server/internal/config"
	"github.com/meetscribe/meetscribe/server/internal/summarizer"
)

// NewSummarizer builds the summarization client from config.
func NewSummarizer(cfg *config.Config) (summarizer.Client, error) {
	if cfg.SummarizerURL == "" {
		return nil, fmt.Errorf("MEETSCRIBE_SUMMARIZER_URL is required")
	}
	timeout := time.Duration(cfg.SummarizerTimeoutSeconds) * time.Second
	return summarizer.NewHTTPClient(cfg.SummarizerURL, cfg.SummarizerModel, timeout), nil
}
