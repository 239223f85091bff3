package server

import (
	"context"
	"crypto/tls"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// certReloader serves the most recently loaded key pair. Mounted secrets are
// swapped by replacing a symlink, so the parent directories are watched
// rather than the files themselves.
type certReloader struct {
	certPath string
	keyPath  string

	mu      sync.RWMutex
	current *tls.Certificate
}

func newCertReloader(certPath, keyPath string) (*certReloader, error) {
	r := &certReloader{certPath: certPath, keyPath: keyPath}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *certReloader) reload() error {
	pair, err := tls.LoadX509KeyPair(r.certPath, r.keyPath)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.current = &pair
	r.mu.Unlock()
	return nil
}

func (r *certReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, nil
}

func (r *certReloader) dirs() []string {
	certDir, keyDir := filepath.Dir(r.certPath), filepath.Dir(r.keyPath)
	if certDir == keyDir {
		return []string{certDir}
	}
	return []string{certDir, keyDir}
}

// watch blocks until ctx is done.
func (r *certReloader) watch(ctx context.Context) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		zap.L().Error("tls watcher unavailable, certificate rotation disabled", zap.Error(err))
		return
	}
	defer w.Close()

	for _, dir := range r.dirs() {
		if err := w.Add(dir); err != nil {
			zap.L().Error("tls watcher add", zap.String("dir", dir), zap.Error(err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := r.reload(); err != nil {
				// Half-written pairs are common mid-rotation; the next event retries.
				zap.L().Warn("tls reload skipped", zap.String("event", ev.String()), zap.Error(err))
				continue
			}
			zap.L().Info("tls certificate reloaded", zap.String("path", r.certPath))
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			zap.L().Error("tls watcher", zap.Error(err))
		}
	}
}
