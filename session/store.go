package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boikhata/khata/jwt"
	"github.com/boikhata/khata/storage"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidSession is returned when a token and its claims are not set together.
	ErrInvalidSession = errors.New("session: token and user must be set together")
	// ErrStoreClosed is returned by operations on a closed Store.
	ErrStoreClosed = errors.New("session: store closed")
)

const (
	// DefaultKey is the storage key holding the persisted session.
	DefaultKey = "auth"

	defaultIOTimeout = 5 * time.Second
)

// Options configures a Store.
type Options struct {
	// Key is the storage key; DefaultKey when empty.
	Key string
	// WarnAfter bounds a rehydration wait before it is logged; DefaultWarnAfter when zero.
	WarnAfter time.Duration
	// IOTimeout bounds each backend call; five seconds when zero.
	IOTimeout time.Duration
	Logger    *zerolog.Logger
}

// Store is the single owner of the session.
//
// All methods are safe for concurrent use. Reads never block; writes are applied in memory
// immediately and persisted by a background writer that always writes the latest snapshot.
type Store struct {
	backend   storage.Backend
	key       string
	ioTimeout time.Duration
	log       *zerolog.Logger
	gate      *Gate

	mu          sync.RWMutex
	current     Session
	version     uint64
	subscribers map[int]chan Session
	nextSub     int

	// owned by the writer goroutine
	persisted uint64

	kick      chan struct{}
	flushes   chan chan error
	done      chan struct{}
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Open returns a Store and starts loading the persisted session from backend.
func Open(backend storage.Backend, opts Options) *Store {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.WarnAfter == 0 {
		opts.WarnAfter = DefaultWarnAfter
	}
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = defaultIOTimeout
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	log := opts.Logger.With().Str("component", "session").Str("key", opts.Key).Logger()

	s := &Store{
		backend:     backend,
		key:         opts.Key,
		ioTimeout:   opts.IOTimeout,
		log:         &log,
		gate:        newGate(opts.WarnAfter, &log),
		subscribers: make(map[int]chan Session),
		kick:        make(chan struct{}, 1),
		flushes:     make(chan chan error),
		done:        make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

// Session returns the current snapshot without waiting for rehydration.
func (s *Store) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Envelope returns the current snapshot with the rehydration marker.
func (s *Store) Envelope() Envelope {
	return Envelope{Session: s.Session(), Rehydrated: s.gate.Opened()}
}

// Rehydrated is closed once the persisted session has been loaded.
func (s *Store) Rehydrated() <-chan struct{} {
	return s.gate.Done()
}

// AwaitRehydration blocks until the persisted session has been loaded.
func (s *Store) AwaitRehydration(ctx context.Context) error {
	return s.gate.Wait(ctx)
}

// SetSession replaces token and user together.
func (s *Store) SetSession(token string, user jwt.Claims) error {
	if token == "" {
		return ErrInvalidSession
	}
	return s.apply(Session{Token: token, User: user.Clone()})
}

// ClearSession logs the session out.
func (s *Store) ClearSession() error {
	return s.apply(Session{})
}

func (s *Store) apply(next Session) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	s.mu.Lock()
	s.current = next
	s.version++
	s.publishLocked()
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
	return nil
}

// Subscribe returns a channel receiving the latest snapshot after every change, and a
// function that stops the subscription. Slow readers only ever see the newest snapshot.
func (s *Store) Subscribe() (<-chan Session, func()) {
	ch := make(chan Session, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) publishLocked() {
	for _, ch := range s.subscribers {
		snap := s.current.Clone()
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Flush waits until every mutation made before the call has been persisted.
func (s *Store) Flush(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	reply := make(chan error, 1)
	select {
	case s.flushes <- reply:
	case <-s.done:
		return ErrStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close persists pending mutations and stops the writer. It returns the error of the final
// write, if any.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		s.wg.Wait()
	})
	return s.closeErr
}

func (s *Store) run() {
	defer s.wg.Done()

	s.rehydrate()

	for {
		select {
		case <-s.kick:
			_ = s.persist()
		case reply := <-s.flushes:
			reply <- s.persist()
		case <-s.done:
			s.closeErr = s.persist()
			return
		}
	}
}

func (s *Store) rehydrate() {
	defer s.gate.open()

	ctx, cancel := context.WithTimeout(context.Background(), s.ioTimeout)
	defer cancel()

	data, err := s.backend.Load(ctx, s.key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.log.Debug().Msg("no persisted session")
		return
	case err != nil:
		s.log.Warn().Err(err).Msg("load persisted session failed; starting logged out")
		return
	}

	loaded, err := Decode(data)
	if err != nil {
		s.log.Warn().Err(err).Msg("discarding unreadable persisted session")
		if err := s.backend.Delete(ctx, s.key); err != nil {
			s.log.Warn().Err(err).Msg("delete unreadable persisted session failed")
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != 0 {
		// A login or logout raced ahead of the load; it wins.
		s.log.Debug().Msg("persisted session superseded by a newer mutation")
		return
	}
	s.current = loaded
	s.publishLocked()
	s.log.Debug().Bool("logged_in", loaded.LoggedIn()).Msg("session rehydrated")
}

func (s *Store) persist() error {
	s.mu.RLock()
	snap := s.current.Clone()
	version := s.version
	s.mu.RUnlock()

	if version == s.persisted {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.ioTimeout)
	defer cancel()

	var err error
	if snap.LoggedIn() {
		var data []byte
		data, err = Encode(snap)
		if err != nil {
			// An older session must not outlive one that cannot be written.
			if derr := s.backend.Delete(ctx, s.key); derr != nil {
				err = errors.Join(err, derr)
			}
		} else {
			err = s.backend.Save(ctx, s.key, data)
		}
	} else {
		err = s.backend.Delete(ctx, s.key)
	}
	if err != nil {
		s.log.Error().Err(err).Uint64("version", version).Msg("persist session failed")
		return err
	}

	s.persisted = version
	return nil
}
