//go:build linux || darwin

package corosio

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"
)

func selfSignedTLSConfig(t *testing.T) *tls.Config {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
	return &tls.Config{Certificates: []tls.Certificate{cert}}
}

func TestTLSStreamHandshakeAndRoundTrip(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Close()

	serverConfig := selfSignedTLSConfig(t)
	clientConfig := &tls.Config{InsecureSkipVerify: true}

	ln, err := Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	addr := ln.LocalAddr().String()

	serverDone := make(chan error, 1)
	ln.Accept(StopToken{}).Then(ctx, func(conn *StreamSocket, err error) {
		if err != nil {
			serverDone <- err
			return
		}
		srv := NewTLSServer(ctx, conn, StopToken{}, serverConfig)
		srv.Handshake().Then(ctx, func(_ struct{}, err error) {
			if err != nil {
				serverDone <- err
				return
			}
			buf := make([]byte, 5)
			srv.Read(buf).Then(ctx, func(n int, err error) {
				if err != nil {
					serverDone <- err
					return
				}
				srv.Write(buf[:n]).Then(ctx, func(int, error) {
					serverDone <- nil
				})
			})
		})
	})

	clientDone := make(chan error, 1)
	Dial(ctx, StopToken{}, "tcp", addr).Then(ctx, func(conn *StreamSocket, err error) {
		if err != nil {
			clientDone <- err
			return
		}
		cli := NewTLSClient(ctx, conn, StopToken{}, clientConfig)
		cli.Handshake().Then(ctx, func(_ struct{}, err error) {
			if err != nil {
				clientDone <- err
				return
			}
			cli.Write([]byte("hello")).Then(ctx, func(int, error) {
				reply := make([]byte, 5)
				cli.Read(reply).Then(ctx, func(n int, err error) {
					if err != nil {
						clientDone <- err
						return
					}
					if string(reply[:n]) != "hello" {
						t.Errorf("got %q, want %q", reply[:n], "hello")
					}
					clientDone <- nil
				})
			})
		})
	})

	runCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go ctx.Run(runCtx)

	select {
	case err := <-serverDone:
		if err != nil {
			t.Errorf("server side: %v", err)
		}
	case <-time.After(4 * time.Second):
		t.Fatal("server side never completed")
	}
	select {
	case err := <-clientDone:
		if err != nil {
			t.Errorf("client side: %v", err)
		}
	case <-time.After(4 * time.Second):
		t.Fatal("client side never completed")
	}
	ctx.Stop()
}

func TestTLSStreamQueueSerializesOperations(t *testing.T) {
	ctx, err := NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Close()

	ts := &TLSStream{ctx: ctx}

	var order []int
	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		i := i
		ts.enqueue(func() {
			order = append(order, i)
			done <- struct{}{}
			ts.runNext()
		})
	}

	for i := 0; i < 3; i++ {
		<-done
	}
	for i, v := range order {
		if i != v {
			t.Fatalf("operations ran out of FIFO order: %v", order)
		}
	}
}
