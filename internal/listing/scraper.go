package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/homescout/internal/device"
	"github.com/jmylchreest/homescout/internal/logger"
)

// Config holds scrape loop settings.
type Config struct {
	// Slots is the number of list positions rendered at once by the
	// virtualized list. The cursor scrolls after visiting the last one.
	Slots int `mapstructure:"slots" validate:"min=1"`

	// AttemptMultiplier bounds wasted work: a scrape for n listings gives
	// up after n*AttemptMultiplier opened cards.
	AttemptMultiplier int `mapstructure:"attempt_multiplier" validate:"min=1"`

	// MaxIdleScrolls stops the loop after this many consecutive scrolls that
	// revealed no card at all (0 = never).
	MaxIdleScrolls int `mapstructure:"max_idle_scrolls" validate:"min=0"`

	PhonePolicy    string `mapstructure:"phone_policy" validate:"omitempty,oneof=most-digits fr"`
	MinPhoneDigits int    `mapstructure:"min_phone_digits" validate:"min=1"`

	ListTimeout  time.Duration `mapstructure:"list_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	OpenPause    time.Duration `mapstructure:"open_pause"`
	RevealPause  time.Duration `mapstructure:"reveal_pause"`
	BackPause    time.Duration `mapstructure:"back_pause"`
	ScrollPause  time.Duration `mapstructure:"scroll_pause"`
}

// DefaultConfig returns the timings observed to work against the live app.
func DefaultConfig() Config {
	return Config{
		Slots:             2,
		AttemptMultiplier: 6,
		MaxIdleScrolls:    10,
		PhonePolicy:       "most-digits",
		MinPhoneDigits:    6,
		ListTimeout:       15 * time.Second,
		PollInterval:      500 * time.Millisecond,
		OpenPause:         3 * time.Second,
		RevealPause:       2 * time.Second,
		BackPause:         2 * time.Second,
		ScrollPause:       2 * time.Second,
	}
}

// maxSlotFailures ends the loop after this many consecutive slots that could
// not be looked up or classified.
const maxSlotFailures = 5

// Scraper walks the results list and collects unique listings.
type Scraper struct {
	layout Layout
	cfg    Config
	picker PhonePicker
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithPhonePicker overrides the phone policy selected by Config.PhonePolicy.
func WithPhonePicker(p PhonePicker) Option {
	return func(s *Scraper) { s.picker = p }
}

// NewScraper creates a Scraper for the given screen layout.
func NewScraper(layout Layout, cfg Config, opts ...Option) (*Scraper, error) {
	if cfg.Slots < 1 {
		cfg.Slots = 1
	}
	if cfg.AttemptMultiplier < 1 {
		cfg.AttemptMultiplier = DefaultConfig().AttemptMultiplier
	}
	if cfg.MinPhoneDigits < 1 {
		cfg.MinPhoneDigits = DefaultConfig().MinPhoneDigits
	}

	s := &Scraper{layout: layout, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.picker == nil {
		picker, err := NewPhonePicker(cfg.PhonePolicy, cfg.MinPhoneDigits)
		if err != nil {
			return nil, err
		}
		s.picker = picker
	}
	return s, nil
}

// session is the transient state of one Scrape call.
type session struct {
	target      int
	maxAttempts int
	attempts    int
	cursor      int
	seen        map[string]struct{}
	accepted    []Record
}

func newSession(target, multiplier int) *session {
	return &session{
		target:      target,
		maxAttempts: target * multiplier,
		cursor:      1,
		seen:        make(map[string]struct{}),
		accepted:    make([]Record, 0, target),
	}
}

func (s *session) full() bool      { return len(s.accepted) >= s.target }
func (s *session) exhausted() bool { return s.attempts >= s.maxAttempts }

func (s *session) accept(price, details, phone string) (Record, error) {
	sig := Signature(price, details, phone)
	if _, dup := s.seen[sig]; dup {
		return Record{}, ErrDuplicate
	}
	s.seen[sig] = struct{}{}
	rec := Record{
		SequenceIndex: len(s.accepted) + 1,
		Price:         price,
		Details:       details,
		Phone:         phone,
	}
	s.accepted = append(s.accepted, rec)
	return rec, nil
}

// Scrape collects up to target unique listings from the list view the
// driver is currently showing. Recoverable UI failures are logged and skip
// the candidate; only failing to find the list at all returns an error, in
// which case the returned slice is empty. Cancelling ctx stops the loop and
// returns what was accepted so far together with ctx.Err().
func (s *Scraper) Scrape(ctx context.Context, d device.Driver, target int) ([]Record, error) {
	if target < 1 {
		return nil, fmt.Errorf("target count must be positive, got %d", target)
	}

	log := logger.ForSession("scrape", uuid.NewString()).With("target", target)

	if _, err := device.WaitFor(ctx, d, s.layout.Container, s.cfg.ListTimeout, s.cfg.PollInterval); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &SetupError{Stage: "results list", Err: err}
	}

	sess := newSession(target, s.cfg.AttemptMultiplier)
	defer s.ensureListView(ctx, d, log)

	idleScrolls := 0
	slotFailures := 0
	cardInWindow := false

	for !sess.full() && !sess.exhausted() {
		if err := ctx.Err(); err != nil {
			log.Warn("scrape cancelled", "scraped", len(sess.accepted), "error", err)
			return sess.accepted, err
		}

		slotLog := log.With("slot", sess.cursor)
		slot, err := d.Find(ctx, s.layout.Container.Child(sess.cursor))
		if errors.Is(err, device.ErrNotFound) {
			slotLog.Info("no element at cursor, end of list")
			break
		}

		switch {
		case err != nil:
			slotFailures++
			slotLog.Warn("slot lookup failed", "reason", ErrTransient, "failures", slotFailures, "error", err)
		default:
			isCard, err := s.isCard(ctx, slot)
			if err != nil {
				slotFailures++
				slotLog.Warn("slot tag unreadable", "reason", ErrTransient, "failures", slotFailures, "error", err)
				break
			}
			slotFailures = 0
			if !isCard {
				slotLog.Debug("skipping advertisement")
				break
			}

			cardInWindow = true
			sess.attempts++
			rec, err := s.visit(ctx, d, slot, sess, slotLog)
			if err != nil {
				slotLog.Info("candidate skipped", "attempt", sess.attempts, "reason", err)
				break
			}
			slotLog.Info("listing accepted",
				"index", rec.SequenceIndex,
				"attempt", sess.attempts,
				"price", rec.Price,
				"phone", rec.Phone)
		}

		if sess.full() || sess.exhausted() {
			break
		}
		if slotFailures >= maxSlotFailures {
			log.Warn("list unreadable, treating as end of list", "failures", slotFailures)
			break
		}

		sess.cursor++
		if sess.cursor > s.cfg.Slots {
			if cardInWindow {
				idleScrolls = 0
			} else {
				idleScrolls++
			}
			if s.cfg.MaxIdleScrolls > 0 && idleScrolls >= s.cfg.MaxIdleScrolls {
				log.Info("no cards after repeated scrolls, stopping", "scrolls", idleScrolls)
				break
			}
			cardInWindow = false

			slotLog.Debug("scrolling to load more listings")
			if err := d.Scroll(ctx, device.ScrollDown); err != nil {
				log.Warn("scroll failed", "reason", ErrTransient, "error", err)
			}
			_ = device.Pause(ctx, s.cfg.ScrollPause)
			sess.cursor = 1
		}
	}

	if sess.exhausted() && !sess.full() {
		log.Info("stopping after too many attempts without enough new listings",
			"attempts", sess.attempts,
			"max_attempts", sess.maxAttempts)
	}
	log.Info("scrape complete", "scraped", len(sess.accepted), "attempts", sess.attempts)
	return sess.accepted, nil
}

func (s *Scraper) isCard(ctx context.Context, slot device.Node) (bool, error) {
	tag, err := slot.Attribute(ctx, s.layout.CardAttribute)
	if err != nil {
		return false, err
	}
	return tag == s.layout.CardTag, nil
}

// visit opens a card, reads it and returns to the list.
func (s *Scraper) visit(ctx context.Context, d device.Driver, card device.Node, sess *session, log *slog.Logger) (Record, error) {
	if err := card.Click(ctx); err != nil {
		return Record{}, fmt.Errorf("%w: open card: %v", ErrTransient, err)
	}
	defer func() {
		if err := d.Back(ctx); err != nil {
			log.Warn("back to list failed", "reason", ErrTransient, "error", err)
		}
		_ = device.Pause(ctx, s.cfg.BackPause)
	}()
	_ = device.Pause(ctx, s.cfg.OpenPause)

	price, err := s.readField(ctx, d, s.layout.Price)
	if err != nil {
		return Record{}, fmt.Errorf("%w: price: %v", ErrFieldMissing, err)
	}
	details, err := s.readField(ctx, d, s.layout.Details)
	if err != nil {
		return Record{}, fmt.Errorf("%w: details: %v", ErrFieldMissing, err)
	}

	phone := s.revealPhone(ctx, d, log)

	return sess.accept(price, details, phone)
}

func (s *Scraper) readField(ctx context.Context, d device.Driver, loc device.Locator) (string, error) {
	node, err := d.Find(ctx, loc)
	if err != nil {
		return "", err
	}
	text, err := node.Text(ctx)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty text")
	}
	return text, nil
}

// revealPhone triggers the contact action and picks the phone number among
// the visible texts. If the action moved away from the listing screen (a
// dialer or contact sheet), it navigates back once.
func (s *Scraper) revealPhone(ctx context.Context, d device.Driver, log *slog.Logger) string {
	reveal, err := d.Find(ctx, s.layout.RevealContact)
	if err != nil {
		log.Debug("contact action not available", "error", err)
		return PhoneUnavailable
	}
	if err := reveal.Click(ctx); err != nil {
		log.Warn("contact action failed", "reason", ErrTransient, "error", err)
		return PhoneUnavailable
	}
	_ = device.Pause(ctx, s.cfg.RevealPause)

	phone := PhoneUnavailable
	nodes, err := d.FindAll(ctx, s.layout.TextNodes)
	if err != nil {
		log.Warn("visible texts unreadable", "reason", ErrTransient, "error", err)
	} else {
		texts := make([]string, 0, len(nodes))
		for _, n := range nodes {
			text, err := n.Text(ctx)
			if err != nil {
				continue
			}
			texts = append(texts, text)
		}
		if picked, ok := s.picker.Pick(texts); ok {
			phone = picked
		} else {
			log.Debug("no phone number among visible texts", "policy", s.picker.Name(), "texts", len(texts))
		}
	}

	if _, err := d.Find(ctx, s.layout.RevealContact); errors.Is(err, device.ErrNotFound) {
		if err := d.Back(ctx); err != nil {
			log.Warn("dismissing contact screen failed", "reason", ErrTransient, "error", err)
		}
		_ = device.Pause(ctx, s.cfg.BackPause/2)
	}
	return phone
}

// ensureListView navigates back once if the list container is not visible.
func (s *Scraper) ensureListView(ctx context.Context, d device.Driver, log *slog.Logger) {
	ctx = context.WithoutCancel(ctx)
	if _, err := d.Find(ctx, s.layout.Container); err == nil {
		return
	}
	log.Debug("list view not visible, navigating back")
	if err := d.Back(ctx); err != nil {
		log.Warn("returning to list view failed", "error", err)
	}
}
