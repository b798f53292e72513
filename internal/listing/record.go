// Package listing implements the deduplicating, pagination-aware scrape loop
// that walks the virtualized results list of the listing application.
package listing

import (
	"strings"

	"github.com/jmylchreest/homescout/internal/device"
)

// PhoneUnavailable is recorded when no phone number could be revealed.
const PhoneUnavailable = "unavailable"

// Record is one accepted listing. Records are values and are never mutated
// after acceptance.
type Record struct {
	SequenceIndex int    `json:"index" yaml:"index"`
	Price         string `json:"price" yaml:"price"`
	Details       string `json:"details" yaml:"details"`
	Phone         string `json:"phone" yaml:"phone"`
}

// Signature returns the deduplication key of the record.
func (r Record) Signature() string {
	return Signature(r.Price, r.Details, r.Phone)
}

// Signature joins the identifying fields of a listing.
func Signature(price, details, phone string) string {
	return strings.Join([]string{price, details, phone}, "|")
}

// Layout names the locators the scrape loop reads. It is supplied by the
// search flow definition.
type Layout struct {
	// Container is the virtualized list; its children are the rendered slots.
	Container device.Locator `json:"container" yaml:"container" validate:"required"`
	// CardAttribute is read from each slot and compared with CardTag.
	// Slots whose attribute differs are advertisements.
	CardAttribute string `json:"card_attribute" yaml:"card_attribute" validate:"required"`
	CardTag       string `json:"card_tag" yaml:"card_tag" validate:"required"`

	Price         device.Locator `json:"price" yaml:"price" validate:"required"`
	Details       device.Locator `json:"details" yaml:"details" validate:"required"`
	RevealContact device.Locator `json:"reveal_contact" yaml:"reveal_contact" validate:"required"`
	TextNodes     device.Locator `json:"text_nodes" yaml:"text_nodes" validate:"required"`
}
