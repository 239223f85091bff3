package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func writePair(t *testing.T, dir, cn string) (string, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPath := filepath.Join(dir, "tls.crt")
	keyPath := filepath.Join(dir, "tls.key")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certPath, keyPath
}

func commonName(t *testing.T, r *certReloader) string {
	t.Helper()
	c, err := r.GetCertificate(nil)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(c.Certificate[0])
	require.NoError(t, err)
	return leaf.Subject.CommonName
}

func TestCertReloader_MissingPairFails(t *testing.T) {
	dir := t.TempDir()
	_, err := newCertReloader(filepath.Join(dir, "tls.crt"), filepath.Join(dir, "tls.key"))
	require.Error(t, err)
}

func TestCertReloader_ReloadKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writePair(t, dir, "first")

	r, err := newCertReloader(certPath, keyPath)
	require.NoError(t, err)
	require.Equal(t, "first", commonName(t, r))

	require.NoError(t, os.WriteFile(keyPath, []byte("garbage"), 0o600))
	require.Error(t, r.reload())
	require.Equal(t, "first", commonName(t, r))

	writePair(t, dir, "second")
	require.NoError(t, r.reload())
	require.Equal(t, "second", commonName(t, r))
}

func TestCertReloader_WatchPicksUpRotation(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writePair(t, dir, "first")

	r, err := newCertReloader(certPath, keyPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.watch(ctx)
		close(done)
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	writePair(t, dir, "rotated")

	require.Eventually(t, func() bool {
		return commonName(t, r) == "rotated"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestCertReloader_Dirs(t *testing.T) {
	r := &certReloader{certPath: "/etc/tls/tls.crt", keyPath: "/etc/tls/tls.key"}
	require.Equal(t, []string{"/etc/tls"}, r.dirs())

	r = &certReloader{certPath: "/etc/crt/tls.crt", keyPath: "/etc/key/tls.key"}
	require.Equal(t, []string{"/etc/crt", "/etc/key"}, r.dirs())
}
