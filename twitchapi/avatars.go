package twitchapi

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/onnwee/blindtest/game"
	"github.com/onnwee/blindtest/ledger"
)

// AvatarDebounce is how long the fetcher waits after a leaderboard change
// before looking up new players, so a burst of newcomers costs one call.
const AvatarDebounce = 2500 * time.Millisecond

// AvatarStore is where the fetcher reads players without avatars and writes
// the ones it finds.
type AvatarStore interface {
	MissingAvatars(limit int, skip func(id string) bool) []string
	SetAvatar(playerID, url string)
}

// UserLookup is the Helix call the fetcher needs.
type UserLookup interface {
	GetUsers(ctx context.Context, ids []string) ([]User, error)
}

// AvatarFetcher fills in profile images off the scoring path. It listens to
// leaderboard changes only.
type AvatarFetcher struct {
	game.ListenerFuncs

	store  AvatarStore
	users  UserLookup
	clock  clockwork.Clock
	logger *slog.Logger

	mu      sync.Mutex
	timer   clockwork.Timer
	tried   map[string]bool
	closed  bool
	running sync.WaitGroup
}

// NewAvatarFetcher returns a fetcher. A nil clock uses the real one.
func NewAvatarFetcher(store AvatarStore, users UserLookup, clock clockwork.Clock) *AvatarFetcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	f := &AvatarFetcher{
		store:  store,
		users:  users,
		clock:  clock,
		logger: slog.Default().With(slog.String("component", "avatars")),
		tried:  map[string]bool{},
	}
	f.OnLeaderboardChanged = func([]ledger.Player) { f.schedule() }
	return f
}

func (f *AvatarFetcher) schedule() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.timer != nil {
		return
	}
	f.running.Add(1)
	f.timer = f.clock.AfterFunc(AvatarDebounce, func() {
		defer f.running.Done()
		f.mu.Lock()
		f.timer = nil
		f.mu.Unlock()
		f.fetch(context.Background())
	})
}

// fetch looks up every player still missing an avatar, one Helix batch at
// a time. Ids Helix does not know are not asked for again.
func (f *AvatarFetcher) fetch(ctx context.Context) {
	for {
		f.mu.Lock()
		batch := f.store.MissingAvatars(MaxUsersPerRequest, func(id string) bool { return f.tried[id] })
		for _, id := range batch {
			f.tried[id] = true
		}
		f.mu.Unlock()
		if len(batch) == 0 {
			return
		}

		reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		users, err := f.users.GetUsers(reqCtx, batch)
		cancel()
		if err != nil {
			f.logger.Warn("avatar lookup failed", slog.Int("players", len(batch)), slog.Any("err", err))
			f.mu.Lock()
			for _, id := range batch {
				delete(f.tried, id)
			}
			f.mu.Unlock()
			return
		}
		for _, u := range users {
			if u.ProfileImageURL != "" {
				f.store.SetAvatar(u.ID, u.ProfileImageURL)
			}
		}
		f.logger.Debug("avatars fetched", slog.Int("asked", len(batch)), slog.Int("found", len(users)))
	}
}

// Close cancels a pending lookup and waits for a running one.
func (f *AvatarFetcher) Close() {
	f.mu.Lock()
	f.closed = true
	if f.timer != nil && f.timer.Stop() {
		f.running.Done()
	}
	f.timer = nil
	f.mu.Unlock()
	f.running.Wait()
}
