// Package favorites keeps one movie's favorite status in step with the user's
// identity metadata and the favorites API, applying toggles optimistically and
// rolling them back when the server rejects them.
package favorites

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/pkg/types"
	"github.com/vasapolrittideah/movie-discovery-api/shared/provider"
)

const (
	DefaultSignInPath   = "/sign-in"
	DefaultErrorDisplay = 5 * time.Second
)

var (
	ErrToggleInFlight   = errors.New("favorite toggle already in flight")
	ErrSignInRequired   = errors.New("sign in required")
	ErrControllerClosed = errors.New("favorites controller closed")
)

// State is the toggle lifecycle: Idle until a toggle starts, Pending while the
// request is outstanding, then Confirmed or Reverted.
type State int

const (
	StateIdle State = iota
	StatePending
	StateConfirmed
	StateReverted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	case StateReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Session is the signed-in identity as seen by the client.
type Session interface {
	SignedIn() bool
	UserID() string
	Metadata() provider.PublicMetadata
	// Reload refreshes Metadata from the identity provider.
	Reload(ctx context.Context) error
}

// Store is the authoritative favorites API.
type Store interface {
	List(ctx context.Context) ([]types.Favorite, error)
	Toggle(ctx context.Context, req types.ToggleFavoriteRequest) (*types.ToggleFavoriteResponse, error)
}

type Navigator interface {
	Redirect(path string)
}

// Movie carries the fields stored with a new favorite.
type Movie struct {
	ID          string
	Title       string
	Overview    string
	ReleaseDate string
	VoteCount   *float64
	Image       string
}

func (m Movie) toggleRequest() types.ToggleFavoriteRequest {
	return types.ToggleFavoriteRequest{
		MovieID:     types.MovieID(m.ID),
		Title:       m.Title,
		Overview:    m.Overview,
		ReleaseDate: m.ReleaseDate,
		VoteCount:   m.VoteCount,
		Image:       m.Image,
	}
}

// Snapshot is what a view renders.
type Snapshot struct {
	MovieID    string
	Favorite   bool
	State      State
	Processing bool
	Err        error
}

type Options struct {
	SignInPath   string
	ErrorDisplay time.Duration
	// OnChange is called after every visible change, outside the controller lock.
	OnChange func(Snapshot)
	Logger   *zerolog.Logger
}

// Controller owns the favorite status of one movie for the current session.
type Controller struct {
	movie   Movie
	session Session
	store   Store
	nav     Navigator
	opts    Options
	logger  *zerolog.Logger

	mu          sync.Mutex
	favorite    bool
	state       State
	err         error
	errTimer    *time.Timer
	errSeq      uint64
	generation  uint64
	resolved    bool
	resolvedFor string
	closed      bool
}

func NewController(movie Movie, session Session, store Store, nav Navigator, opts Options) *Controller {
	if opts.SignInPath == "" {
		opts.SignInPath = DefaultSignInPath
	}
	if opts.ErrorDisplay <= 0 {
		opts.ErrorDisplay = DefaultErrorDisplay
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Controller{
		movie:   movie,
		session: session,
		store:   store,
		nav:     nav,
		opts:    opts,
		logger:  logger,
	}
}

// Resolve determines the favorite status. The metadata mirror answers first;
// when the mirror knows the internal user, the store is read and wins on
// conflict. A failed store read keeps the mirror answer. Resolution runs once
// per signed-in user; later calls are no-ops until the user changes.
func (c *Controller) Resolve(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	signedIn := c.session.SignedIn()
	userKey := ""
	if signedIn {
		userKey = c.session.UserID()
	}
	if (c.resolved && c.resolvedFor == userKey) || c.state == StatePending {
		c.mu.Unlock()
		return
	}
	if c.resolved {
		// A different user took over the session.
		c.clearErrorLocked()
		c.state = StateIdle
	}
	c.resolved = true
	c.resolvedFor = userKey

	if !signedIn {
		snap := c.setFavoriteLocked(false)
		c.mu.Unlock()
		c.emit(snap)
		return
	}

	metadata := c.session.Metadata()
	inMirror := metadata.HasFavorite(c.movie.ID)
	snap := c.setFavoriteLocked(inMirror)
	generation := c.generation
	c.mu.Unlock()
	c.emit(snap)

	if metadata.InternalUserID() == "" {
		return
	}

	favs, err := c.store.List(ctx)

	c.mu.Lock()
	if c.closed || c.generation != generation || c.resolvedFor != userKey {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.logger.Debug().Err(err).Str("movie_id", c.movie.ID).Msg("favorites read failed, keeping metadata status")
		return
	}

	inStore := containsMovie(favs, c.movie.ID)
	if inStore == c.favorite {
		c.mu.Unlock()
		return
	}
	snap = c.setFavoriteLocked(inStore)
	c.mu.Unlock()
	c.emit(snap)
}

// Toggle flips the status optimistically and asks the store to apply it. The
// store's reported action is final. On failure the previous status is
// restored and the error is shown for ErrorDisplay.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	if c.state == StatePending {
		c.mu.Unlock()
		return ErrToggleInFlight
	}
	if !c.session.SignedIn() {
		c.mu.Unlock()
		c.nav.Redirect(c.opts.SignInPath)
		return ErrSignInRequired
	}

	previous := c.favorite
	c.favorite = !previous
	c.state = StatePending
	c.clearErrorLocked()
	c.generation++
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)

	resp, err := c.store.Toggle(ctx, c.movie.toggleRequest())

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return err
	}

	if err != nil {
		c.favorite = previous
		c.state = StateReverted
		c.err = err
		c.errSeq++
		seq := c.errSeq
		c.errTimer = time.AfterFunc(c.opts.ErrorDisplay, func() { c.expireError(seq) })
		snap = c.snapshotLocked()
		c.mu.Unlock()

		c.logger.Warn().Err(err).Str("movie_id", c.movie.ID).Msg("favorite toggle failed, reverted")
		c.emit(snap)
		return err
	}

	c.favorite = resp.Action == types.ActionAdded
	c.state = StateConfirmed
	snap = c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)

	go c.reloadSession(context.WithoutCancel(ctx))

	return nil
}

// Snapshot returns the current view state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close detaches the controller. Responses that arrive afterwards are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.errTimer != nil {
		c.errTimer.Stop()
		c.errTimer = nil
	}
}

func (c *Controller) reloadSession(ctx context.Context) {
	if err := c.session.Reload(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("failed to reload session metadata")
	}
}

func (c *Controller) expireError(seq uint64) {
	c.mu.Lock()
	if c.closed || c.errSeq != seq || c.err == nil {
		c.mu.Unlock()
		return
	}
	c.err = nil
	c.errTimer = nil
	c.state = StateIdle
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

func (c *Controller) clearErrorLocked() {
	if c.errTimer != nil {
		c.errTimer.Stop()
		c.errTimer = nil
	}
	c.errSeq++
	c.err = nil
}

func (c *Controller) setFavoriteLocked(favorite bool) Snapshot {
	c.favorite = favorite
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		MovieID:    c.movie.ID,
		Favorite:   c.favorite,
		State:      c.state,
		Processing: c.state == StatePending,
		Err:        c.err,
	}
}

func (c *Controller) emit(snap Snapshot) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(snap)
	}
}

func containsMovie(favs []types.Favorite, movieID string) bool {
	for _, f := range favs {
		if f.MovieID == movieID {
			return true
		}
	}
	return false
}
