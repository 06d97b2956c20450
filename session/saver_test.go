package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyStore struct {
	mu       sync.Mutex
	failures []error
	attempts int
	saved    [][]byte
}

func (f *flakyStore) Load(ctx context.Context) ([]byte, error) { return nil, ErrNoState }

func (f *flakyStore) Save(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return err
	}
	f.saved = append(f.saved, data)
	return nil
}

func fastSaver(store Store) *Saver {
	s := NewSaver(store)
	s.InitialInterval = time.Millisecond
	return s
}

func TestSaverRetriesTransientErrors(t *testing.T) {
	store := &flakyStore{failures: []error{errors.New("connection reset by peer"), errors.New("i/o timeout")}}
	s := fastSaver(store)

	require.NoError(t, s.Save(context.Background(), []byte("a")))
	assert.Equal(t, 3, store.attempts)
	assert.Equal(t, [][]byte{[]byte("a")}, store.saved)
}

func TestSaverStopsOnFatalErrors(t *testing.T) {
	store := &flakyStore{failures: []error{errors.New("open state.db: permission denied")}}
	s := fastSaver(store)
	var reported error
	s.OnError = func(err error) { reported = err }

	err := s.Save(context.Background(), []byte("a"))
	require.Error(t, err)
	assert.Equal(t, 1, store.attempts)
	assert.Equal(t, err, reported)
}

func TestSaverGivesUpAfterMaxTries(t *testing.T) {
	store := &flakyStore{failures: []error{
		errors.New("connection refused"), errors.New("connection refused"), errors.New("connection refused"),
	}}
	s := fastSaver(store)
	s.MaxTries = 2
	require.Error(t, s.Save(context.Background(), []byte("a")))
	assert.Equal(t, 2, store.attempts)
}

func TestSaverSkipsStaleDocuments(t *testing.T) {
	store := &flakyStore{}
	s := fastSaver(store)

	s.Submit([]byte("old"))
	require.NoError(t, s.Save(context.Background(), []byte("new")))
	require.NoError(t, s.flush(context.Background()))

	assert.Equal(t, [][]byte{[]byte("new")}, store.saved)
}

func TestSaverRunFlushesOnShutdown(t *testing.T) {
	store := &MemoryStore{}
	s := fastSaver(store)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	s.Submit([]byte("one"))
	s.Submit([]byte("two"))
	cancel()
	<-done

	data, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestClassifyStoreError(t *testing.T) {
	assert.Equal(t, ErrorClassRetryable, ClassifyStoreError(errors.New("dial tcp: connection refused")))
	assert.Equal(t, ErrorClassFatal, ClassifyStoreError(context.Canceled))
	assert.Equal(t, ErrorClassFatal, ClassifyStoreError(errors.New("relation \"game_state\" does not exist")))
	assert.Equal(t, ErrorClassUnknown, ClassifyStoreError(errors.New("weird")))
	assert.Equal(t, ErrorClassUnknown, ClassifyStoreError(nil))
	assert.Equal(t, "fatal", ErrorClassFatal.String())
}

func TestMemoryStore(t *testing.T) {
	m := &MemoryStore{}
	_, err := m.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoState)
	require.NoError(t, m.Save(context.Background(), []byte("x")))
	data, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
	assert.Equal(t, 1, m.Saves())
}
