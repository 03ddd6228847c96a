package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"io"
	"math/big"
	"net"
	"testing"
	"time"

	ncerr "cmdshell/internal/errors"
	"cmdshell/util"
)

func TestTCPDialer_Connect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("hello from server\n")) //nolint:errcheck
	}()

	d := &TCPDialer{Timeout: 2 * time.Second}
	conn, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "hello from server\n" {
		t.Errorf("got %q", got)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestTCPDialer_ContextCancel(t *testing.T) {
	d := &TCPDialer{Timeout: 5 * time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Dial(ctx, "tcp", "127.0.0.1:1"); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

// startTLSEcho serves one echo connection over TLS with a self-signed
// certificate.
func startTLSEcho(t *testing.T) string {
	t.Helper()
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{selfSigned(t)},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				io.Copy(c, c) //nolint:errcheck
			}()
		}
	}()
	return ln.Addr().String()
}

func TestTLSDialer_Insecure(t *testing.T) {
	addr := startTLSEcho(t)
	d := NewTLSDialer(&TCPDialer{Timeout: 2 * time.Second}, true, 2*time.Second)

	conn, err := d.Dial(context.Background(), "tcp", addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck

	if _, ok := conn.(*tls.Conn); !ok {
		t.Fatalf("conn is %T, want *tls.Conn", conn)
	}
	io.WriteString(conn, "secret\n") //nolint:errcheck
	buf := make([]byte, 7)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "secret\n" {
		t.Errorf("echo = %q", buf)
	}
}

func TestTLSDialer_VerifiesByDefault(t *testing.T) {
	addr := startTLSEcho(t)
	d := NewTLSDialer(&TCPDialer{Timeout: 2 * time.Second}, false, 2*time.Second)

	_, err := d.Dial(context.Background(), "tcp", addr)
	var ne *ncerr.NetworkError
	if !errors.As(err, &ne) || ne.Op != "handshake" {
		t.Fatalf("Dial = %v, want handshake NetworkError", err)
	}
}

// fakeTunnel records calls and dials directly.
type fakeTunnel struct {
	connects int
	alive    bool
	closed   bool
}

func (f *fakeTunnel) Connect(context.Context) error { f.connects++; f.alive = true; return nil }
func (f *fakeTunnel) Close() error                  { f.closed = true; f.alive = false; return nil }
func (f *fakeTunnel) IsAlive() bool                 { return f.alive }
func (f *fakeTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

func TestSSHDialer_ConnectsLazilyAndReconnects(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	ft := &fakeTunnel{}
	d := &SSHDialer{tunnel: ft, target: "bastion:22", logger: util.NewLogger(0)}
	if ft.connects != 0 {
		t.Fatal("connected before Dial")
	}

	for i := 0; i < 2; i++ {
		c, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
		if err != nil {
			t.Fatalf("Dial: %v", err)
		}
		c.Close()
	}
	if ft.connects != 1 {
		t.Errorf("connects = %d, want 1", ft.connects)
	}

	ft.alive = false
	c, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial after tunnel death: %v", err)
	}
	c.Close()
	if ft.connects != 2 {
		t.Errorf("connects = %d, want a reconnect", ft.connects)
	}

	if err := d.Close(); err != nil || !ft.closed {
		t.Errorf("Close: err=%v closed=%v", err, ft.closed)
	}
}

func selfSigned(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "cmdshell test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}
