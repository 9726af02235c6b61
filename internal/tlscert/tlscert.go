// Package tlscert supplies the *tls.Config GetCertificate hook for the
// RTMPS listener. It is grounded on the teacher's rtmp_ssl.go
// SslCertificateLoader — a hand-rolled stat-and-reload loop guarding a
// *tls.Certificate behind a mutex — but delegates the stat/reload/mutex
// machinery itself to AgustinSRG/go-tls-certificate-loader, a dependency
// the teacher's go.mod already declares but whose own source never
// actually calls (see DESIGN.md).
package tlscert

import (
	"crypto/tls"

	certloader "github.com/AgustinSRG/go-tls-certificate-loader"

	"github.com/kaelstream/rtmp-hub/internal/logger"
)

// Loader watches a certificate/key pair on disk and reloads it in the
// background whenever either file changes, matching the teacher's
// RunReloadThread cadence (checkReloadSeconds between stat checks).
type Loader struct {
	inner *certloader.TlsCertificateLoader
}

// New loads certFile/keyFile for the first time and starts the
// background reload loop, checking for changes every checkReloadSeconds.
func New(certFile, keyFile string, checkReloadSeconds int) (*Loader, error) {
	inner := certloader.NewTlsCertificateLoader(checkReloadSeconds)
	if err := inner.LoadCertificate(certFile, keyFile); err != nil {
		return nil, err
	}
	logger.Info("tlscert: loaded certificate " + certFile)
	return &Loader{inner: inner}, nil
}

// GetCertificateFunc returns the tls.Config.GetCertificate hook serving
// whichever certificate was most recently loaded.
func (l *Loader) GetCertificateFunc() func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return l.inner.GetCertificateFunc()
}

// TLSConfig builds a *tls.Config for the RTMPS listener using this loader.
func (l *Loader) TLSConfig() *tls.Config {
	return &tls.Config{GetCertificate: l.GetCertificateFunc()}
}
