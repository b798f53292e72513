package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/homescout/internal/listing"
	"github.com/jmylchreest/homescout/internal/search"
)

// mockSQS short-circuits the SDK stack: params receives the operation
// input and output/err are returned without any network call.
func mockSQS(params *any, output any, err error) *sqs.Client {
	return sqs.NewFromConfig(aws.Config{Region: "eu-west-3"}, func(o *sqs.Options) {
		o.APIOptions = append(o.APIOptions, func(stack *middleware.Stack) error {
			if err := stack.Initialize.Add(
				middleware.InitializeMiddlewareFunc("Capture", func(ctx context.Context, in middleware.InitializeInput, next middleware.InitializeHandler) (middleware.InitializeOutput, middleware.Metadata, error) {
					if params != nil {
						*params = in.Parameters
					}
					return next.HandleInitialize(ctx, in)
				}),
				middleware.Before,
			); err != nil {
				return err
			}
			return stack.Finalize.Add(
				middleware.FinalizeMiddlewareFunc("Mock", func(context.Context, middleware.FinalizeInput, middleware.FinalizeHandler) (middleware.FinalizeOutput, middleware.Metadata, error) {
					return middleware.FinalizeOutput{Result: output}, middleware.Metadata{}, err
				}),
				middleware.Before,
			)
		})
	})
}

func TestSQSClientReceive(t *testing.T) {
	var params any
	out := &sqs.ReceiveMessageOutput{Messages: []types.Message{
		{MessageId: aws.String("m1"), Body: aws.String(`{"location":"Lyon"}`), ReceiptHandle: aws.String("h1")},
	}}
	c := NewSQSClient(mockSQS(&params, out, nil))

	msgs, err := c.Receive(context.Background(), "https://sqs/q", 5, 20*time.Second, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []Message{{ID: "m1", Body: `{"location":"Lyon"}`, ReceiptHandle: "h1"}}, msgs)

	in, ok := params.(*sqs.ReceiveMessageInput)
	require.True(t, ok)
	assert.Equal(t, "https://sqs/q", aws.ToString(in.QueueUrl))
	assert.EqualValues(t, 5, in.MaxNumberOfMessages)
	assert.EqualValues(t, 20, in.WaitTimeSeconds)
	assert.EqualValues(t, 900, in.VisibilityTimeout)

	_, err = NewSQSClient(mockSQS(nil, nil, errors.New("aws error"))).Receive(context.Background(), "q", 1, 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to receive messages")
}

func TestSQSClientDelete(t *testing.T) {
	var params any
	c := NewSQSClient(mockSQS(&params, &sqs.DeleteMessageOutput{}, nil))
	require.NoError(t, c.Delete(context.Background(), "q", "handle"))
	in := params.(*sqs.DeleteMessageInput)
	assert.Equal(t, "handle", aws.ToString(in.ReceiptHandle))

	err := NewSQSClient(mockSQS(nil, nil, errors.New("aws error"))).Delete(context.Background(), "q", "handle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete message")
}

func TestSQSClientSend(t *testing.T) {
	var params any
	c := NewSQSClient(mockSQS(&params, &sqs.SendMessageOutput{MessageId: aws.String("x")}, nil))
	require.NoError(t, c.Send(context.Background(), "q", Request{ID: "r1", Query: search.Query{Location: "Lyon", MaxListings: 2}}))

	in := params.(*sqs.SendMessageInput)
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &body))
	assert.Equal(t, "r1", body["id"])
	assert.Equal(t, "Lyon", body["location"], "query fields are flattened into the request")
	assert.EqualValues(t, 2, body["max_listings"])

	err := NewSQSClient(mockSQS(nil, nil, errors.New("aws error"))).Send(context.Background(), "q", 1)
	assert.ErrorContains(t, err, "failed to send message")
}

// fakeClient is an in-memory queue.
type fakeClient struct {
	mu         sync.Mutex
	inbox      []Message
	receiveErr error
	sendErr    error
	deleted    []string
	sent       map[string][]string
}

func (f *fakeClient) Receive(ctx context.Context, queueURL string, max int, wait, visibility time.Duration) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	n := min(max, len(f.inbox))
	msgs := f.inbox[:n]
	f.inbox = f.inbox[n:]
	return msgs, nil
}

func (f *fakeClient) Delete(ctx context.Context, queueURL, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, handle)
	return nil
}

func (f *fakeClient) Send(ctx context.Context, queueURL string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if f.sent == nil {
		f.sent = map[string][]string{}
	}
	f.sent[queueURL] = append(f.sent[queueURL], string(data))
	return nil
}

type fakeSearcher struct {
	queries []search.Query
	cancel  context.CancelFunc
}

func (s *fakeSearcher) FetchListings(ctx context.Context, q search.Query) search.Result {
	s.queries = append(s.queries, q)
	if s.cancel != nil {
		s.cancel()
	}
	res := search.Result{Location: q.Location, Requested: q.MaxListings, Listings: []listing.Record{}}
	if q.Location == "Nowhere" {
		res.Error = "setup failed at launch: app not installed"
		return res
	}
	res.Listings = append(res.Listings, listing.Record{SequenceIndex: 1, Price: "1 €", Details: "T1", Phone: "0612345678"})
	res.Scraped = 1
	return res
}

func TestWorkerPoll(t *testing.T) {
	client := &fakeClient{inbox: []Message{
		{ID: "m1", Body: `{"id":"r1","location":"Lyon","min_price":0,"max_price":200000,"max_listings":1}`, ReceiptHandle: "h1"},
		{ID: "m2", Body: `not json`, ReceiptHandle: "h2"},
		{ID: "m3", Body: `{"location":"Nowhere","max_price":1,"max_listings":1}`, ReceiptHandle: "h3"},
	}}
	searcher := &fakeSearcher{}
	w, err := NewWorker(client, searcher, Config{QueueURL: "in", ResultURL: "out", MaxMessages: 10})
	require.NoError(t, err)

	n, err := w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"h1", "h2", "h3"}, client.deleted)
	require.Len(t, searcher.queries, 2, "malformed message must not run a search")
	assert.Equal(t, search.Query{Location: "Lyon", MaxPrice: 200000, MaxListings: 1}, searcher.queries[0])

	require.Len(t, client.sent["out"], 2)
	var first, second Response
	require.NoError(t, json.Unmarshal([]byte(client.sent["out"][0]), &first))
	require.NoError(t, json.Unmarshal([]byte(client.sent["out"][1]), &second))
	assert.Equal(t, "r1", first.ID)
	assert.Equal(t, 1, first.Result.Scraped)
	assert.Equal(t, "m3", second.ID, "message id is used when the request has none")
	assert.NotEmpty(t, second.Result.Error)
}

func TestWorkerKeepsMessageWhenPublishFails(t *testing.T) {
	client := &fakeClient{
		inbox:   []Message{{ID: "m1", Body: `{"location":"Lyon","max_price":1,"max_listings":1}`, ReceiptHandle: "h1"}},
		sendErr: errors.New("throttled"),
	}
	w, err := NewWorker(client, &fakeSearcher{}, Config{QueueURL: "in", ResultURL: "out"})
	require.NoError(t, err)

	n, err := w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, client.deleted)
}

func TestWorkerLeavesInterruptedSearch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &fakeClient{inbox: []Message{{ID: "m1", Body: `{"location":"Lyon","max_price":1,"max_listings":1}`, ReceiptHandle: "h1"}}}
	w, err := NewWorker(client, &fakeSearcher{cancel: cancel}, Config{QueueURL: "in"})
	require.NoError(t, err)

	n, err := w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, client.deleted)
}

func TestWorkerRunStops(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	client := &fakeClient{receiveErr: errors.New("no route")}
	w, err := NewWorker(client, &fakeSearcher{}, Config{QueueURL: "in", ErrorBackoff: 10 * time.Millisecond})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestNewWorkerRequiresQueue(t *testing.T) {
	_, err := NewWorker(&fakeClient{}, &fakeSearcher{}, Config{})
	assert.Error(t, err)
}

func TestEnqueue(t *testing.T) {
	client := &fakeClient{}
	id, err := Enqueue(context.Background(), client, "in", search.Query{Location: "Lyon", MinPrice: 1, MaxPrice: 2, MaxListings: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.Len(t, client.sent["in"], 1)

	var req Request
	require.NoError(t, json.Unmarshal([]byte(client.sent["in"][0]), &req))
	assert.Equal(t, id, req.ID)
	assert.Equal(t, 3, req.MaxListings)

	_, err = Enqueue(context.Background(), client, "in", search.Query{})
	assert.Error(t, err)
	assert.Len(t, client.sent["in"], 1)
}
