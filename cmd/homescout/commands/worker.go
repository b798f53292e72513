package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/homescout/internal/logger"
	"github.com/jmylchreest/homescout/internal/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run searches requested on an SQS queue",
	Long: `Consume search requests from queue.url, run them one at a time on the
device and publish each result to queue.result_url when set.

A request body is a JSON object:
  {"id": "...", "location": "Lyon", "min_price": 100000, "max_price": 250000, "max_listings": 5}

Examples:
  homescout worker --queue https://sqs.eu-west-3.amazonaws.com/123456789012/searches
  HOMESCOUT_QUEUE_ENDPOINT=http://localhost:4566 homescout worker`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <location> <min_price> <max_price> <max_listings>",
	Short: "Send a search request to the worker queue",
	Args:  requireArgs(4, "<location> <min_price> <max_price> <max_listings>"),
	RunE:  runEnqueue,
}

func init() {
	rootCmd.AddCommand(workerCmd, enqueueCmd)

	for _, c := range []*cobra.Command{workerCmd, enqueueCmd} {
		c.Flags().String("queue", "", "SQS queue URL for search requests")
	}
	workerCmd.Flags().String("result-queue", "", "SQS queue URL for search results")
	_ = viper.BindPFlag("queue.url", workerCmd.Flags().Lookup("queue"))
	_ = viper.BindPFlag("queue.result_url", workerCmd.Flags().Lookup("result-queue"))
}

func sqsClient(cmd *cobra.Command) (*queue.SQSClient, string, error) {
	url := cfg.Queue.URL
	if flagURL, _ := cmd.Flags().GetString("queue"); flagURL != "" {
		url = flagURL
	}
	if url == "" {
		return nil, "", errors.New("no queue configured: set queue.url or --queue")
	}
	client, err := queue.NewAWSClient(cmd.Context(), queue.AWSOptions{
		Region:   cfg.Queue.Region,
		Endpoint: cfg.Queue.Endpoint,
	})
	if err != nil {
		return nil, "", err
	}
	return queue.NewSQSClient(client), url, nil
}

func runWorker(cmd *cobra.Command, _ []string) error {
	client, url, err := sqsClient(cmd)
	if err != nil {
		return err
	}

	svc, cleanup, err := newSearchService(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	w, err := queue.NewWorker(client, svc, queue.Config{
		QueueURL:          url,
		ResultURL:         cfg.Queue.ResultURL,
		MaxMessages:       cfg.Queue.MaxMessages,
		WaitTime:          cfg.Queue.WaitTime,
		VisibilityTimeout: cfg.Queue.VisibilityTimeout,
	})
	if err != nil {
		return err
	}

	logger.Info("worker started", "queue", url, "results", cfg.Queue.ResultURL)
	return w.Run(cmd.Context())
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	q, err := parseQuery(args)
	if err != nil {
		return err
	}
	client, url, err := sqsClient(cmd)
	if err != nil {
		return err
	}
	id, err := queue.Enqueue(cmd.Context(), client, url, q)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
