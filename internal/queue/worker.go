package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/homescout/internal/logger"
	"github.com/jmylchreest/homescout/internal/search"
)

// Request asks for one search. ID correlates the response; it is generated
// by Enqueue when empty.
type Request struct {
	ID string `json:"id"`
	search.Query
}

// Response carries the outcome of a Request.
type Response struct {
	ID     string        `json:"id"`
	Result search.Result `json:"result"`
}

// Searcher runs listing searches.
type Searcher interface {
	FetchListings(ctx context.Context, q search.Query) search.Result
}

// Config configures a Worker.
type Config struct {
	QueueURL          string
	ResultURL         string
	MaxMessages       int
	WaitTime          time.Duration
	VisibilityTimeout time.Duration
	// ErrorBackoff is slept after a failed receive.
	ErrorBackoff time.Duration
}

// Worker consumes search requests and publishes their results.
type Worker struct {
	client   Client
	searcher Searcher
	cfg      Config
}

// NewWorker creates a Worker.
func NewWorker(client Client, searcher Searcher, cfg Config) (*Worker, error) {
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("queue url is required")
	}
	if cfg.MaxMessages < 1 {
		cfg.MaxMessages = 1
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 2 * time.Second
	}
	return &Worker{client: client, searcher: searcher, cfg: cfg}, nil
}

// Run polls until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	logger.Info("search worker started", "queue", w.cfg.QueueURL, "results", w.cfg.ResultURL)
	for {
		if ctx.Err() != nil {
			logger.Info("search worker stopped")
			return nil
		}
		if _, err := w.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Warn("receive failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(w.cfg.ErrorBackoff):
			}
		}
	}
}

// Poll receives one batch and handles it. It returns the number of
// messages acknowledged.
func (w *Worker) Poll(ctx context.Context) (int, error) {
	msgs, err := w.client.Receive(ctx, w.cfg.QueueURL, w.cfg.MaxMessages, w.cfg.WaitTime, w.cfg.VisibilityTimeout)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, m := range msgs {
		if w.handle(ctx, m) {
			done++
		}
	}
	return done, nil
}

// handle processes one message and reports whether it was acknowledged.
// Undecodable messages are dropped. Messages interrupted by shutdown are
// left on the queue for redelivery.
func (w *Worker) handle(ctx context.Context, m Message) bool {
	log := logger.With("message", m.ID)

	var req Request
	if err := json.Unmarshal([]byte(m.Body), &req); err != nil {
		log.Warn("dropping malformed search request", "error", err)
		return w.ack(ctx, m, log)
	}
	if req.ID == "" {
		req.ID = m.ID
	}
	log = log.With("request", req.ID)

	result := w.searcher.FetchListings(ctx, req.Query)
	if ctx.Err() != nil {
		log.Info("search interrupted, leaving message for redelivery")
		return false
	}

	if w.cfg.ResultURL != "" {
		if err := w.client.Send(ctx, w.cfg.ResultURL, Response{ID: req.ID, Result: result}); err != nil {
			log.Error("publishing result failed", "error", err)
			return false
		}
	}
	log.Info("search request handled", "scraped", result.Scraped, "error", result.Error)
	return w.ack(ctx, m, log)
}

func (w *Worker) ack(ctx context.Context, m Message, log *slog.Logger) bool {
	if err := w.client.Delete(ctx, w.cfg.QueueURL, m.ReceiptHandle); err != nil {
		log.Error("acknowledge failed", "error", err)
		return false
	}
	return true
}

// Enqueue publishes a search request and returns its id.
func Enqueue(ctx context.Context, client Client, queueURL string, q search.Query) (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}
	req := Request{ID: uuid.NewString(), Query: q}
	if err := client.Send(ctx, queueURL, req); err != nil {
		return "", err
	}
	return req.ID, nil
}
