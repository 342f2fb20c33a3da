// Package locator drives the client side of picking and saving an address:
// a search box with suggestions, a movable map marker and a save button.
//
// Searches are debounced and numbered; only the most recently issued search
// may publish candidates. Moving the marker updates coordinates at once and
// marks the text stale until the reverse lookup for that position returns.
package locator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"addressbook/internal/geo"
	"addressbook/internal/models"
)

const (
	defaultDebounce      = 300 * time.Millisecond
	defaultSaveTimeout   = 10 * time.Second
	defaultRedirectDelay = 5 * time.Second
)

var (
	ErrSaving      = errors.New("save in progress")
	ErrNoCandidate = errors.New("no such candidate")
	ErrNoLocation  = errors.New("no location selected")
	ErrNotSaved    = errors.New("address has not been saved")
)

type Searcher interface {
	SearchAddresses(ctx context.Context, query string) ([]geo.Candidate, error)
	ReverseGeocode(ctx context.Context, at models.Coordinates) (geo.Candidate, error)
}

type Saver interface {
	// SaveAddress creates the address when d.ID is empty and updates it
	// otherwise.
	SaveAddress(ctx context.Context, d Draft) (*models.Address, error)
	DeleteAddress(ctx context.Context, id string) error
}

// Draft is the address being edited.
type Draft struct {
	ID           string
	AddressText  string
	TextStale    bool
	HouseDetails string
	Street       string
	AddressType  models.AddressType
	Coordinates  *models.Coordinates
	Favorite     bool
}

type Snapshot struct {
	State      State
	Query      string
	Candidates []geo.Candidate
	Draft      Draft
	Err        error
	Saved      *models.Address
}

type Options struct {
	Debounce      time.Duration
	SaveTimeout   time.Duration
	RedirectDelay time.Duration
	// OnRedirect runs RedirectDelay after a successful save or delete. The
	// address is nil after a delete.
	OnRedirect func(*models.Address)
	OnChange   func(Snapshot)
	Logger     *zap.Logger
}

type Editor struct {
	searcher Searcher
	saver    Saver
	opts     Options
	log      *zap.Logger

	base context.Context
	stop context.CancelFunc

	mu            sync.Mutex
	state         State
	query         string
	candidates    []geo.Candidate
	draft         Draft
	err           error
	saved         *models.Address
	searchSeq     uint64
	debounce      *time.Timer
	cancelSearch  context.CancelFunc
	reverseSeq    uint64
	cancelReverse context.CancelFunc
	redirect      *time.Timer
}

func New(searcher Searcher, saver Saver, opts Options) *Editor {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = defaultSaveTimeout
	}
	if opts.RedirectDelay <= 0 {
		opts.RedirectDelay = defaultRedirectDelay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Editor{
		searcher: searcher,
		saver:    saver,
		opts:     opts,
		log:      opts.Logger.Named("locator"),
		base:     base,
		stop:     cancel,
		draft:    Draft{AddressType: models.AddressTypeHome},
	}
}

// Load starts editing an existing address.
func (e *Editor) Load(a *models.Address) {
	e.mu.Lock()
	e.stopSearchLocked()
	e.stopReverseLocked()
	coords := a.Coordinates
	e.draft = Draft{
		ID:           a.ID.Hex(),
		AddressText:  a.AddressText,
		HouseDetails: a.HouseDetails,
		Street:       a.Street,
		AddressType:  a.AddressType,
		Coordinates:  &coords,
		Favorite:     a.Favorite,
	}
	e.query = a.AddressText
	e.candidates = nil
	e.err = nil
	e.saved = nil
	e.state = LocationSelected
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.emit(snap)
}

// Type records the search box contents and schedules a search once typing
// pauses for the debounce interval.
func (e *Editor) Type(query string) error {
	return e.search(query, e.opts.Debounce)
}

// SearchNow searches for query without waiting for the debounce interval.
func (e *Editor) SearchNow(query string) error {
	return e.search(query, 0)
}

func (e *Editor) search(query string, delay time.Duration) error {
	e.mu.Lock()
	if e.state == Saving {
		e.mu.Unlock()
		return ErrSaving
	}
	e.stopSearchLocked()
	e.query = query
	e.candidates = nil
	e.err = nil

	if strings.TrimSpace(query) == "" {
		if e.draft.Coordinates != nil {
			e.state = LocationSelected
		} else {
			e.state = Idle
		}
		snap := e.snapshotLocked()
		e.mu.Unlock()
		e.emit(snap)
		return nil
	}

	e.state = Typing
	seq := e.searchSeq
	if delay > 0 {
		e.debounce = time.AfterFunc(delay, func() { e.runSearch(seq, query) })
	} else {
		go e.runSearch(seq, query)
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.emit(snap)
	return nil
}

func (e *Editor) runSearch(seq uint64, query string) {
	e.mu.Lock()
	if seq != e.searchSeq {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(e.base)
	e.cancelSearch = cancel
	e.mu.Unlock()

	list, err := e.searcher.SearchAddresses(ctx, query)
	cancel()

	e.mu.Lock()
	if seq != e.searchSeq {
		e.mu.Unlock()
		e.log.Debug("dropping superseded search result", zap.String("query", query))
		return
	}
	e.cancelSearch = nil
	switch {
	case err != nil:
		e.err = err
		e.candidates = nil
	case len(list) == 0:
		e.candidates = nil
	default:
		e.candidates = list
		e.state = CandidatesShown
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.emit(snap)
}

// Select takes candidate i: its coordinates and text replace the draft's and
// the candidate list is cleared.
func (e *Editor) Select(i int) error {
	e.mu.Lock()
	if e.state == Saving {
		e.mu.Unlock()
		return ErrSaving
	}
	if e.state != CandidatesShown || i < 0 || i >= len(e.candidates) {
		e.mu.Unlock()
		return ErrNoCandidate
	}
	c := e.candidates[i]
	e.stopSearchLocked()
	e.stopReverseLocked()

	coords := c.Coordinates
	e.draft.Coordinates = &coords
	e.draft.AddressText = c.Text
	e.draft.TextStale = false
	e.query = c.Text
	e.candidates = nil
	e.err = nil
	e.state = LocationSelected
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.emit(snap)
	return nil
}

// MoveMarker handles a map click or drag. The marker position is taken
// immediately and the text is re-derived in the background.
func (e *Editor) MoveMarker(at models.Coordinates) error {
	if err := at.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	if e.state == Saving {
		e.mu.Unlock()
		return ErrSaving
	}
	e.stopSearchLocked()
	e.stopReverseLocked()

	e.draft.Coordinates = &at
	e.draft.TextStale = true
	e.candidates = nil
	e.err = nil
	e.state = LocationSelected

	seq := e.reverseSeq
	ctx, cancel := context.WithCancel(e.base)
	e.cancelReverse = cancel
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.emit(snap)

	go e.runReverse(ctx, cancel, seq, at)
	return nil
}

func (e *Editor) runReverse(ctx context.Context, cancel context.CancelFunc, seq uint64, at models.Coordinates) {
	defer cancel()
	c, err := e.searcher.ReverseGeocode(ctx, at)

	e.mu.Lock()
	if seq != e.reverseSeq {
		e.mu.Unlock()
		return
	}
	e.cancelReverse = nil
	if err != nil {
		// Coordinates stay, text stays stale until the next move or a retry.
		e.err = err
	} else {
		e.draft.AddressText = c.Text
		e.draft.TextStale = false
		e.query = c.Text
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.emit(snap)
}

// RetryReverse repeats the reverse lookup for the current marker position.
func (e *Editor) RetryReverse() error {
	e.mu.Lock()
	at := e.draft.Coordinates
	e.mu.Unlock()
	if at == nil {
		return ErrNoLocation
	}
	return e.MoveMarker(*at)
}

// ToggleFavorite flips the flag locally. It is sent with the next save.
func (e *Editor) ToggleFavorite() error {
	return e.edit(func(d *Draft) { d.Favorite = !d.Favorite })
}

func (e *Editor) SetHouseDetails(v string) error {
	return e.edit(func(d *Draft) { d.HouseDetails = v })
}

func (e *Editor) SetStreet(v string) error {
	return e.edit(func(d *Draft) { d.Street = v })
}

func (e *Editor) SetAddressType(t models.AddressType) error {
	if !t.Valid() {
		return models.Invalid("addressType", "must be one of home, office, friends, family")
	}
	return e.edit(func(d *Draft) { d.AddressType = t })
}

func (e *Editor) edit(fn func(*Draft)) error {
	e.mu.Lock()
	if e.state == Saving {
		e.mu.Unlock()
		return ErrSaving
	}
	fn(&e.draft)
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.emit(snap)
	return nil
}

// Save persists the draft. It is not cancelled by ctx; it ends in Saved or
// SaveFailed within the save timeout. On success the redirect callback is
// scheduled.
func (e *Editor) Save(ctx context.Context) (*models.Address, error) {
	e.mu.Lock()
	if e.state == Saving {
		e.mu.Unlock()
		return nil, ErrSaving
	}
	if e.draft.Coordinates == nil {
		e.mu.Unlock()
		return nil, ErrNoLocation
	}
	e.stopSearchLocked()
	e.stopReverseLocked()
	e.stopRedirectLocked()
	e.state = Saving
	e.err = nil
	d := e.draft
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.emit(snap)

	a, err := e.run(ctx, func(ctx context.Context) (*models.Address, error) {
		return e.saver.SaveAddress(ctx, d)
	})

	e.mu.Lock()
	if err != nil {
		e.state = SaveFailed
		e.err = err
		snap = e.snapshotLocked()
		e.mu.Unlock()
		e.emit(snap)
		e.log.Debug("save failed", zap.Error(err))
		return nil, err
	}
	e.state = Saved
	e.saved = a
	coords := a.Coordinates
	e.draft.ID = a.ID.Hex()
	e.draft.AddressText = a.AddressText
	e.draft.TextStale = false
	e.draft.Coordinates = &coords
	e.draft.Favorite = a.Favorite
	e.scheduleRedirectLocked(a)
	snap = e.snapshotLocked()
	e.mu.Unlock()
	e.emit(snap)
	return a, nil
}

// Delete removes the loaded address and schedules the redirect callback.
// The editor reports Saving while the delete is in flight and rejects edits
// until it settles. A failed delete leaves the draft as it was.
func (e *Editor) Delete(ctx context.Context) error {
	e.mu.Lock()
	if e.state == Saving {
		e.mu.Unlock()
		return ErrSaving
	}
	id := e.draft.ID
	if id == "" {
		e.mu.Unlock()
		return ErrNotSaved
	}
	e.stopSearchLocked()
	e.stopReverseLocked()
	e.stopRedirectLocked()
	e.candidates = nil
	e.state = Saving
	e.err = nil
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.emit(snap)

	_, err := e.run(ctx, func(ctx context.Context) (*models.Address, error) {
		return nil, e.saver.DeleteAddress(ctx, id)
	})

	e.mu.Lock()
	if err != nil {
		e.state = LocationSelected
		if e.draft.Coordinates == nil {
			e.state = Idle
		}
		e.err = err
		snap := e.snapshotLocked()
		e.mu.Unlock()
		e.emit(snap)
		e.log.Debug("delete failed", zap.Error(err))
		return err
	}
	e.draft = Draft{AddressType: models.AddressTypeHome}
	e.query = ""
	e.saved = nil
	e.state = Idle
	e.scheduleRedirectLocked(nil)
	snap = e.snapshotLocked()
	e.mu.Unlock()
	e.emit(snap)
	return nil
}

// run calls fn detached from ctx's cancellation and bounded by the save
// timeout, returning even if fn ignores its context.
func (e *Editor) run(ctx context.Context, fn func(context.Context) (*models.Address, error)) (*models.Address, error) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.SaveTimeout)
	defer cancel()

	type result struct {
		a   *models.Address
		err error
	}
	done := make(chan result, 1)
	go func() {
		a, err := fn(runCtx)
		done <- result{a, err}
	}()

	select {
	case r := <-done:
		return r.a, r.err
	case <-runCtx.Done():
		return nil, runCtx.Err()
	}
}

func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Close stops timers and cancels lookups in flight.
func (e *Editor) Close() {
	e.mu.Lock()
	e.stopSearchLocked()
	e.stopReverseLocked()
	e.stopRedirectLocked()
	e.mu.Unlock()
	e.stop()
}

func (e *Editor) snapshotLocked() Snapshot {
	s := Snapshot{
		State: e.state,
		Query: e.query,
		Draft: e.draft,
		Err:   e.err,
		Saved: e.saved,
	}
	if e.draft.Coordinates != nil {
		c := *e.draft.Coordinates
		s.Draft.Coordinates = &c
	}
	if len(e.candidates) > 0 {
		s.Candidates = append([]geo.Candidate(nil), e.candidates...)
	}
	return s
}

func (e *Editor) emit(s Snapshot) {
	if e.opts.OnChange != nil {
		e.opts.OnChange(s)
	}
}

// stopSearchLocked supersedes every search issued so far.
func (e *Editor) stopSearchLocked() {
	e.searchSeq++
	if e.debounce != nil {
		e.debounce.Stop()
		e.debounce = nil
	}
	if e.cancelSearch != nil {
		e.cancelSearch()
		e.cancelSearch = nil
	}
}

func (e *Editor) stopReverseLocked() {
	e.reverseSeq++
	if e.cancelReverse != nil {
		e.cancelReverse()
		e.cancelReverse = nil
	}
}

func (e *Editor) stopRedirectLocked() {
	if e.redirect != nil {
		e.redirect.Stop()
		e.redirect = nil
	}
}

func (e *Editor) scheduleRedirectLocked(a *models.Address) {
	e.stopRedirectLocked()
	if e.opts.OnRedirect == nil {
		return
	}
	cb := e.opts.OnRedirect
	e.redirect = time.AfterFunc(e.opts.RedirectDelay, func() { cb(a) })
}
