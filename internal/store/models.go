package store

import (
	"time"

	"github.com/jmylchreest/homescout/internal/listing"
	"github.com/jmylchreest/homescout/internal/search"
)

// SearchRun is one finished search.
type SearchRun struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	Location   string    `gorm:"type:text;not null;index"`
	MinPrice   int       `gorm:"not null"`
	MaxPrice   int       `gorm:"not null"`
	Requested  int       `gorm:"not null"`
	Scraped    int       `gorm:"not null"`
	Error      string    `gorm:"type:text"`
	StartedAt  time.Time `gorm:"type:timestamp with time zone;not null;index"`
	FinishedAt time.Time `gorm:"type:timestamp with time zone;not null"`

	Listings []SearchListing `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name
func (SearchRun) TableName() string {
	return "search_runs"
}

// SearchListing is a listing accepted by a run.
type SearchListing struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	RunID         uint   `gorm:"not null;index"`
	SequenceIndex int    `gorm:"not null"`
	Price         string `gorm:"type:text;not null"`
	Details       string `gorm:"type:text;not null"`
	Phone         string `gorm:"type:text;not null"`
}

// TableName overrides the table name
func (SearchListing) TableName() string {
	return "search_listings"
}

func runFromResult(r search.Result) SearchRun {
	run := SearchRun{
		Location:   r.Location,
		MinPrice:   r.MinPrice,
		MaxPrice:   r.MaxPrice,
		Requested:  r.Requested,
		Scraped:    r.Scraped,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	for _, rec := range r.Listings {
		run.Listings = append(run.Listings, SearchListing{
			SequenceIndex: rec.SequenceIndex,
			Price:         rec.Price,
			Details:       rec.Details,
			Phone:         rec.Phone,
		})
	}
	return run
}

// Result converts the run back to a search result.
func (run SearchRun) Result() search.Result {
	r := search.Result{
		Location:   run.Location,
		MinPrice:   run.MinPrice,
		MaxPrice:   run.MaxPrice,
		Requested:  run.Requested,
		Scraped:    run.Scraped,
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Listings:   make([]listing.Record, 0, len(run.Listings)),
	}
	for _, l := range run.Listings {
		r.Listings = append(r.Listings, listing.Record{
			SequenceIndex: l.SequenceIndex,
			Price:         l.Price,
			Details:       l.Details,
			Phone:         l.Phone,
		})
	}
	return r
}
