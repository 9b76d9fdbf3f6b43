package favorites

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/pkg/types"
	"github.com/vasapolrittideah/movie-discovery-api/shared/provider"
)

type fakeSession struct {
	mu       sync.Mutex
	signedIn bool
	userID   string
	metadata provider.PublicMetadata
	reloads  chan struct{}
}

func newSession(userID string, metadata provider.PublicMetadata) *fakeSession {
	return &fakeSession{
		signedIn: userID != "",
		userID:   userID,
		metadata: metadata,
		reloads:  make(chan struct{}, 8),
	}
}

func (s *fakeSession) SignedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signedIn
}

func (s *fakeSession) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *fakeSession) Metadata() provider.PublicMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata
}

func (s *fakeSession) Reload(context.Context) error {
	s.reloads <- struct{}{}
	return nil
}

func (s *fakeSession) switchUser(userID string, metadata provider.PublicMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signedIn = userID != ""
	s.userID = userID
	s.metadata = metadata
}

type fakeStore struct {
	mu          sync.Mutex
	favs        []types.Favorite
	listErr     error
	listCalls   int
	toggleCalls int
	toggle      func(req types.ToggleFavoriteRequest) (*types.ToggleFavoriteResponse, error)
}

func (s *fakeStore) List(context.Context) ([]types.Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	return s.favs, s.listErr
}

func (s *fakeStore) Toggle(_ context.Context, req types.ToggleFavoriteRequest) (*types.ToggleFavoriteResponse, error) {
	s.mu.Lock()
	s.toggleCalls++
	toggle := s.toggle
	s.mu.Unlock()
	return toggle(req)
}

func (s *fakeStore) calls() (list, toggle int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls, s.toggleCalls
}

func respond(action string) func(types.ToggleFavoriteRequest) (*types.ToggleFavoriteResponse, error) {
	return func(types.ToggleFavoriteRequest) (*types.ToggleFavoriteResponse, error) {
		return &types.ToggleFavoriteResponse{Success: true, Action: action}, nil
	}
}

type fakeNavigator struct {
	paths []string
}

func (n *fakeNavigator) Redirect(path string) { n.paths = append(n.paths, path) }

var fightClub = Movie{ID: "550", Title: "Fight Club", ReleaseDate: "1999-10-15"}

func TestController_ResolveSignedOut(t *testing.T) {
	store := &fakeStore{}
	c := NewController(fightClub, newSession("", nil), store, &fakeNavigator{}, Options{})

	c.Resolve(context.Background())

	assert.False(t, c.Snapshot().Favorite)
	list, _ := store.calls()
	assert.Zero(t, list)
}

func TestController_Resolve(t *testing.T) {
	tests := []struct {
		name      string
		metadata  provider.PublicMetadata
		storeFavs []types.Favorite
		listErr   error
		want      bool
		wantList  int
	}{
		{
			name:     "mirror only without internal id",
			metadata: provider.PublicMetadata{"favoriteMovieIds": []any{"550"}},
			want:     true,
			wantList: 0,
		},
		{
			name:     "numeric mirror ids",
			metadata: provider.PublicMetadata{"favoriteMovieIds": []any{float64(550)}},
			want:     true,
			wantList: 0,
		},
		{
			name: "store wins over stale mirror",
			metadata: provider.PublicMetadata{
				"internalUserId":   "64b7f0c2a1b2c3d4e5f60718",
				"favoriteMovieIds": []any{"550"},
			},
			storeFavs: []types.Favorite{{MovieID: "680"}},
			want:      false,
			wantList:  1,
		},
		{
			name:      "store adds what the mirror missed",
			metadata:  provider.PublicMetadata{"internalUserId": "64b7f0c2a1b2c3d4e5f60718"},
			storeFavs: []types.Favorite{{MovieID: "550"}},
			want:      true,
			wantList:  1,
		},
		{
			name: "failed store read keeps mirror status",
			metadata: provider.PublicMetadata{
				"internalUserId":   "64b7f0c2a1b2c3d4e5f60718",
				"favoriteMovieIds": []any{"550"},
			},
			listErr:  errors.New("connection refused"),
			want:     true,
			wantList: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{favs: tt.storeFavs, listErr: tt.listErr}
			c := NewController(fightClub, newSession("user_1", tt.metadata), store, &fakeNavigator{}, Options{})

			c.Resolve(context.Background())

			snap := c.Snapshot()
			assert.Equal(t, tt.want, snap.Favorite)
			assert.NoError(t, snap.Err)
			assert.Equal(t, StateIdle, snap.State)
			list, _ := store.calls()
			assert.Equal(t, tt.wantList, list)
		})
	}
}

func TestController_ResolveIsMemoisedPerUser(t *testing.T) {
	metadata := provider.PublicMetadata{"internalUserId": "64b7f0c2a1b2c3d4e5f60718"}
	session := newSession("user_1", metadata)
	store := &fakeStore{favs: []types.Favorite{{MovieID: "550"}}}
	c := NewController(fightClub, session, store, &fakeNavigator{}, Options{})

	c.Resolve(context.Background())
	c.Resolve(context.Background())
	list, _ := store.calls()
	assert.Equal(t, 1, list)

	session.switchUser("user_2", metadata)
	c.Resolve(context.Background())
	list, _ = store.calls()
	assert.Equal(t, 2, list)

	session.switchUser("", nil)
	c.Resolve(context.Background())
	assert.False(t, c.Snapshot().Favorite)
}

func TestController_ToggleSignedOutRedirects(t *testing.T) {
	store := &fakeStore{toggle: respond(types.ActionAdded)}
	nav := &fakeNavigator{}
	c := NewController(fightClub, newSession("", nil), store, nav, Options{SignInPath: "/sign-in"})

	err := c.Toggle(context.Background())

	require.ErrorIs(t, err, ErrSignInRequired)
	assert.Equal(t, []string{"/sign-in"}, nav.paths)
	_, toggles := store.calls()
	assert.Zero(t, toggles)
	assert.Equal(t, Snapshot{MovieID: "550", State: StateIdle}, c.Snapshot())
}

func TestController_ToggleConfirmsServerAction(t *testing.T) {
	session := newSession("user_1", nil)
	var got types.ToggleFavoriteRequest
	store := &fakeStore{toggle: func(req types.ToggleFavoriteRequest) (*types.ToggleFavoriteResponse, error) {
		got = req
		return &types.ToggleFavoriteResponse{Success: true, Action: types.ActionAdded}, nil
	}}
	c := NewController(fightClub, session, store, &fakeNavigator{}, Options{})

	require.NoError(t, c.Toggle(context.Background()))

	snap := c.Snapshot()
	assert.True(t, snap.Favorite)
	assert.Equal(t, StateConfirmed, snap.State)
	assert.False(t, snap.Processing)
	assert.Equal(t, types.MovieID("550"), got.MovieID)
	assert.Equal(t, "Fight Club", got.Title)

	select {
	case <-session.reloads:
	case <-time.After(time.Second):
		t.Fatal("session metadata was not reloaded")
	}
}

func TestController_ServerActionOverridesOptimisticGuess(t *testing.T) {
	store := &fakeStore{toggle: respond(types.ActionRemoved)}
	c := NewController(fightClub, newSession("user_1", nil), store, &fakeNavigator{}, Options{})

	var seen []Snapshot
	c.opts.OnChange = func(s Snapshot) { seen = append(seen, s) }

	require.NoError(t, c.Toggle(context.Background()))

	require.Len(t, seen, 2)
	assert.True(t, seen[0].Favorite, "optimistic flip")
	assert.True(t, seen[0].Processing)
	assert.False(t, seen[1].Favorite, "server said removed")
	assert.Equal(t, StateConfirmed, seen[1].State)
}

func TestController_ToggleRollsBackAndClearsError(t *testing.T) {
	failure := errors.New("favorites API error (500): Internal Server Error")
	store := &fakeStore{toggle: func(types.ToggleFavoriteRequest) (*types.ToggleFavoriteResponse, error) {
		return nil, failure
	}}
	c := NewController(fightClub, newSession("user_1", provider.PublicMetadata{
		"favoriteMovieIds": []any{"550"},
	}), store, &fakeNavigator{}, Options{ErrorDisplay: 20 * time.Millisecond})
	c.Resolve(context.Background())
	before := c.Snapshot().Favorite

	err := c.Toggle(context.Background())
	require.ErrorIs(t, err, failure)

	snap := c.Snapshot()
	assert.Equal(t, before, snap.Favorite)
	assert.Equal(t, StateReverted, snap.State)
	assert.ErrorIs(t, snap.Err, failure)

	require.Eventually(t, func() bool {
		return c.Snapshot().Err == nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateIdle, c.Snapshot().State)
	assert.Equal(t, before, c.Snapshot().Favorite)
}

func TestController_UserChangeResetsStateAndError(t *testing.T) {
	failure := errors.New("favorites API error (500): Internal Server Error")
	session := newSession("user_1", nil)
	store := &fakeStore{toggle: func(types.ToggleFavoriteRequest) (*types.ToggleFavoriteResponse, error) {
		return nil, failure
	}}
	c := NewController(fightClub, session, store, &fakeNavigator{}, Options{ErrorDisplay: time.Hour})
	c.Resolve(context.Background())

	require.ErrorIs(t, c.Toggle(context.Background()), failure)
	require.Equal(t, StateReverted, c.Snapshot().State)

	session.switchUser("user_2", provider.PublicMetadata{"favoriteMovieIds": []any{"550"}})
	c.Resolve(context.Background())

	snap := c.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.NoError(t, snap.Err)
	assert.True(t, snap.Favorite)
}

func TestController_ToggleIsNotReentrant(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	store := &fakeStore{toggle: func(types.ToggleFavoriteRequest) (*types.ToggleFavoriteResponse, error) {
		close(started)
		<-release
		return &types.ToggleFavoriteResponse{Success: true, Action: types.ActionAdded}, nil
	}}
	c := NewController(fightClub, newSession("user_1", nil), store, &fakeNavigator{}, Options{})

	done := make(chan error, 1)
	go func() { done <- c.Toggle(context.Background()) }()
	<-started

	snap := c.Snapshot()
	assert.True(t, snap.Processing)
	assert.True(t, snap.Favorite)
	assert.ErrorIs(t, c.Toggle(context.Background()), ErrToggleInFlight)

	close(release)
	require.NoError(t, <-done)
	_, toggles := store.calls()
	assert.Equal(t, 1, toggles)
}

func TestController_CloseDropsLateResponses(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	store := &fakeStore{toggle: func(types.ToggleFavoriteRequest) (*types.ToggleFavoriteResponse, error) {
		close(started)
		<-release
		return nil, errors.New("network down")
	}}

	var mu sync.Mutex
	changes := 0
	c := NewController(fightClub, newSession("user_1", nil), store, &fakeNavigator{}, Options{
		OnChange: func(Snapshot) {
			mu.Lock()
			changes++
			mu.Unlock()
		},
	})

	done := make(chan error, 1)
	go func() { done <- c.Toggle(context.Background()) }()
	<-started
	c.Close()
	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, changes, "only the optimistic flip was emitted")
	assert.Nil(t, c.Snapshot().Err)
	assert.ErrorIs(t, c.Toggle(context.Background()), ErrControllerClosed)
}
