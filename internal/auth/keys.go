package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/golang-jwt/jwt/v5"
)

// KeyProvider hands out the RSA public key used for local token validation.
type KeyProvider interface {
	Key() *rsa.PublicKey
}

// KeySource loads the validation key from a PEM file and can hot-reload it
// when the identity service rotates keys.
type KeySource struct {
	path string

	mu  sync.RWMutex
	key *rsa.PublicKey
}

// LoadKeyFile reads and parses the PEM-encoded RSA public key at path.
func LoadKeyFile(path string) (*KeySource, error) {
	source := &KeySource{path: path}
	if err := source.reload(); err != nil {
		return nil, err
	}
	return source, nil
}

// Key returns the currently loaded public key.
func (s *KeySource) Key() *rsa.PublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

func (s *KeySource) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("auth: read key file %s: %w", s.path, err)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return fmt.Errorf("auth: parse key file %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.key = key
	s.mu.Unlock()
	return nil
}

// KeyWatcher monitors the key file and swaps the parsed key on change. Stop
// must be called to release filesystem resources.
type KeyWatcher struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop halts the watcher and waits for the underlying goroutine to exit.
func (w *KeyWatcher) Stop() {
	if w == nil {
		return
	}
	w.once.Do(func() {
		w.cancel()
		<-w.done
	})
}

// Watch wires fsnotify around the key file. A rotation that leaves the file
// unparsable is logged and the previous key stays active.
func (s *KeySource) Watch(ctx context.Context, logger *slog.Logger) (*KeyWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	watchCtx, cancel := context.WithCancel(ctx)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("auth: watch key file: %w", err)
	}

	target := s.path
	if resolved, err := filepath.Abs(s.path); err == nil {
		target = resolved
	}
	target = filepath.Clean(target)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		cancel()
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("key watcher close failed", slog.Any("error", closeErr))
		}
		return nil, fmt.Errorf("auth: watch key dir: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Error("key watcher close failed", slog.Any("error", err))
			}
		}()

		const debounce = 25 * time.Millisecond
		var reloadTimer *time.Timer
		var reloadSignal <-chan time.Time

		for {
			select {
			case <-watchCtx.Done():
				return
			case <-reloadSignal:
				reloadSignal = nil
				if err := s.reload(); err != nil {
					logger.Error("key reload failed, keeping previous key", slog.Any("error", err))
					continue
				}
				logger.Info("validation key reloaded", slog.String("path", s.path))
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Chmod) == 0 {
					continue
				}
				if reloadTimer == nil {
					reloadTimer = time.NewTimer(debounce)
				} else {
					if !reloadTimer.Stop() {
						select {
						case <-reloadTimer.C:
						default:
						}
					}
					reloadTimer.Reset(debounce)
				}
				reloadSignal = reloadTimer.C
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("key watcher error", slog.Any("error", err))
			}
		}
	}()

	return &KeyWatcher{cancel: cancel, done: done}, nil
}

// StaticKey adapts an already-parsed key to the KeyProvider contract, for
// deployments that inline the key and for tests.
type StaticKey struct {
	PublicKey *rsa.PublicKey
}

// Key returns the wrapped key.
func (k StaticKey) Key() *rsa.PublicKey {
	return k.PublicKey
}
