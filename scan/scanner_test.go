package scan_test

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filegate/filegate/scan"
)

func writeTempFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scanme.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

// fakeClamd accepts INSTREAM sessions and answers each with reply. It
// records the bytes streamed by the last session.
type fakeClamd struct {
	listener net.Listener
	reply    string

	mu       sync.Mutex
	received []byte
}

func newFakeClamd(t *testing.T, reply string) *fakeClamd {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	srv := &fakeClamd{listener: ln, reply: reply}
	go srv.serve()
	return srv
}

func (f *fakeClamd) addr() string {
	return f.listener.Addr().String()
}

func (f *fakeClamd) serve() {
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeClamd) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	r := bufio.NewReader(conn)
	cmd, err := r.ReadString('\x00')
	if err != nil || cmd != "zINSTREAM\x00" {
		return
	}

	var body []byte
	prefix := make([]byte, 4)
	for {
		if _, err := io.ReadFull(r, prefix); err != nil {
			return
		}
		n := binary.BigEndian.Uint32(prefix)
		if n == 0 {
			break
		}
		chunk := make([]byte, n)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return
		}
		body = append(body, chunk...)
	}

	f.mu.Lock()
	f.received = body
	f.mu.Unlock()

	_, _ = conn.Write([]byte(f.reply + "\x00"))
}

func (f *fakeClamd) lastReceived() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.received
}

func TestNoopScanner(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, []byte("anything"))
	verdict, err := scan.NoopScanner{}.Scan(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, verdict.Clean)
	assert.Empty(t, verdict.Threats)
}

func TestClamdScanner(t *testing.T) {
	t.Parallel()

	t.Run("clean reply", func(t *testing.T) {
		t.Parallel()

		srv := newFakeClamd(t, "stream: OK")
		content := []byte("benign content")
		path := writeTempFile(t, content)

		s := scan.NewClamdScanner(srv.addr(), 5*time.Second)
		verdict, err := s.Scan(context.Background(), path)
		require.NoError(t, err)
		assert.True(t, verdict.Clean)
		assert.Equal(t, content, srv.lastReceived())
	})

	t.Run("threat reply", func(t *testing.T) {
		t.Parallel()

		srv := newFakeClamd(t, "stream: Eicar-Test-Signature FOUND")
		path := writeTempFile(t, []byte("payload"))

		s := scan.NewClamdScanner(srv.addr(), 5*time.Second)
		verdict, err := s.Scan(context.Background(), path)
		require.NoError(t, err)
		assert.False(t, verdict.Clean)
		assert.Equal(t, []string{"Eicar-Test-Signature"}, verdict.Threats)
	})

	t.Run("engine error reply", func(t *testing.T) {
		t.Parallel()

		srv := newFakeClamd(t, "stream: INSTREAM size limit exceeded. ERROR")
		path := writeTempFile(t, []byte("payload"))

		s := scan.NewClamdScanner(srv.addr(), 5*time.Second)
		_, err := s.Scan(context.Background(), path)
		assert.ErrorIs(t, err, scan.ErrScannerUnavailable)
	})

	t.Run("daemon unreachable", func(t *testing.T) {
		t.Parallel()

		path := writeTempFile(t, []byte("payload"))
		s := scan.NewClamdScanner("127.0.0.1:1", time.Second)
		_, err := s.Scan(context.Background(), path)
		assert.ErrorIs(t, err, scan.ErrScannerUnavailable)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		s := scan.NewClamdScanner("127.0.0.1:1", time.Second)
		_, err := s.Scan(context.Background(), filepath.Join(t.TempDir(), "gone"))
		assert.ErrorIs(t, err, scan.ErrScannerUnavailable)
	})

	t.Run("large file streamed in chunks", func(t *testing.T) {
		t.Parallel()

		srv := newFakeClamd(t, "stream: OK")
		content := make([]byte, 100*1024)
		for i := range content {
			content[i] = byte(i % 251)
		}
		path := writeTempFile(t, content)

		s := scan.NewClamdScanner(srv.addr(), 5*time.Second)
		verdict, err := s.Scan(context.Background(), path)
		require.NoError(t, err)
		assert.True(t, verdict.Clean)
		assert.Equal(t, content, srv.lastReceived())
	})
}

// countingScanner records how many times it was invoked.
type countingScanner struct {
	mu      sync.Mutex
	calls   int
	verdict scan.Verdict
	err     error
}

func (c *countingScanner) Scan(_ context.Context, _ string) (scan.Verdict, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.verdict, c.err
}

func (c *countingScanner) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestCachedScanner(t *testing.T) {
	t.Parallel()

	t.Run("redis failure falls through to inner scanner", func(t *testing.T) {
		t.Parallel()

		// A client pointed at a closed port fails every command; the
		// cache must degrade to a pass-through.
		client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
		t.Cleanup(func() { _ = client.Close() })

		inner := &countingScanner{verdict: scan.Verdict{Clean: true}}
		s := scan.NewCachedScanner(inner, client, time.Minute, nil)

		path := writeTempFile(t, []byte("content"))
		verdict, err := s.Scan(context.Background(), path)
		require.NoError(t, err)
		assert.True(t, verdict.Clean)
		assert.Equal(t, 1, inner.callCount())

		// A second scan still reaches the engine since nothing was cached.
		_, err = s.Scan(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, 2, inner.callCount())
	})

	t.Run("inner scanner error is propagated", func(t *testing.T) {
		t.Parallel()

		client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
		t.Cleanup(func() { _ = client.Close() })

		wantErr := errors.New("engine down")
		inner := &countingScanner{err: wantErr}
		s := scan.NewCachedScanner(inner, client, time.Minute, nil)

		path := writeTempFile(t, []byte("content"))
		_, err := s.Scan(context.Background(), path)
		assert.ErrorIs(t, err, wantErr)
	})
}
