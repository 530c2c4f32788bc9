// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package websearch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"

	utls "github.com/refraction-networking/utls"
)

// TLSProfile selects the TLS ClientHello presented to the search engine.
type TLSProfile string

const (
	ProfileGo      TLSProfile = "go" // standard crypto/tls
	ProfileChrome  TLSProfile = "chrome"
	ProfileFirefox TLSProfile = "firefox"
	ProfileSafari  TLSProfile = "safari"
)

// NewTransport returns an http.RoundTripper presenting the given TLS
// fingerprint. The empty profile and "go" use a clone of
// http.DefaultTransport.
func NewTransport(p TLSProfile) (http.RoundTripper, error) {
	return newTransport(p, nil)
}

// newTransport is NewTransport with an explicit root pool; nil means the
// system roots.
func newTransport(p TLSProfile, rootCAs *x509.CertPool) (http.RoundTripper, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	var helloID utls.ClientHelloID
	switch p {
	case "", ProfileGo:
		if rootCAs != nil {
			transport.TLSClientConfig = &tls.Config{RootCAs: rootCAs}
		}
		return transport, nil
	case ProfileChrome:
		helloID = utls.HelloChrome_Auto
	case ProfileFirefox:
		helloID = utls.HelloFirefox_Auto
	case ProfileSafari:
		helloID = utls.HelloIOS_Auto
	default:
		return nil, fmt.Errorf("unknown tls profile %q", p)
	}

	if _, err := helloSpec(helloID); err != nil {
		return nil, fmt.Errorf("tls profile %q: %w", p, err)
	}

	dialer := &net.Dialer{}
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		// ApplyPreset mutates the spec's extensions, so each connection
		// gets its own.
		spec, err := helloSpec(helloID)
		if err != nil {
			_ = tcpConn.Close()
			return nil, err
		}
		uConn := utls.UClient(tcpConn, &utls.Config{ServerName: host, RootCAs: rootCAs}, utls.HelloCustom)
		if err := uConn.ApplyPreset(&spec); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("apply tls preset: %w", err)
		}
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("utls handshake: %w", err)
		}
		return uConn, nil
	}
	return transport, nil
}

// helloSpec builds a fresh ClientHelloSpec for id. http.Transport speaks
// HTTP/1.1 over a custom DialTLSContext, so the ALPN offer must not
// advertise h2.
func helloSpec(id utls.ClientHelloID) (utls.ClientHelloSpec, error) {
	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		return spec, err
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
	return spec, nil
}
