package agent

import (
	"context"
	"encoding/json"

	"github.com/jmylchreest/homescout/internal/conversation"
	"github.com/jmylchreest/homescout/internal/llm"
	"github.com/jmylchreest/homescout/internal/search"
	"github.com/jmylchreest/homescout/pkg/schema"
)

// Tool is a function the model may call.
type Tool interface {
	Spec() llm.ToolSpec
	// Call runs the tool. Errors wrapping schema.ErrInvalidArguments are
	// returned to the model so it can correct itself.
	Call(ctx context.Context, conv *conversation.Conversation, args json.RawMessage) (any, error)
}

// Searcher runs listing searches.
type Searcher interface {
	FetchListings(ctx context.Context, q search.Query) search.Result
}

type fetchArgs struct {
	Location    string `json:"location" description:"City, district or postal code to search in" validate:"required"`
	MinPrice    int    `json:"min_price" description:"Minimum price in euros" validate:"gte=0"`
	MaxPrice    int    `json:"max_price" description:"Maximum price in euros" validate:"gte=0,gtefield=MinPrice"`
	MaxListings int    `json:"max_listings" description:"Number of listings to return" validate:"min=1,max=50"`
}

var fetchSchema = schema.MustSchema[fetchArgs](
	schema.WithName("fetch_listings"),
	schema.WithDescription("Fetch the latest property listings matching a location and price range from the listing app."),
)

// FetchListingsTool searches listings and remembers the result on the
// conversation.
type FetchListingsTool struct {
	searcher Searcher
}

// NewFetchListingsTool creates the fetch_listings tool.
func NewFetchListingsTool(s Searcher) *FetchListingsTool {
	return &FetchListingsTool{searcher: s}
}

// Spec implements Tool.
func (t *FetchListingsTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        fetchSchema.Name,
		Description: fetchSchema.Description,
		Parameters:  fetchSchema.ToJSONSchema(),
	}
}

// Call implements Tool.
func (t *FetchListingsTool) Call(ctx context.Context, conv *conversation.Conversation, args json.RawMessage) (any, error) {
	var a fetchArgs
	if err := fetchSchema.Decode(args, &a); err != nil {
		return nil, err
	}

	result := t.searcher.FetchListings(ctx, search.Query{
		Location:    a.Location,
		MinPrice:    a.MinPrice,
		MaxPrice:    a.MaxPrice,
		MaxListings: a.MaxListings,
	})
	if conv != nil {
		conv.SetLastResult(result)
	}
	return result, nil
}
