package scan

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

// ErrScannerUnavailable is returned when the scan engine cannot be
// reached or the session fails before a verdict is produced.
var ErrScannerUnavailable = errors.New("scan: engine unavailable")

const clamdChunkSize = 32 * 1024

// ClamdScanner scans files through a clamd daemon over TCP using the
// INSTREAM command. Every scan is bounded by the configured timeout.
type ClamdScanner struct {
	addr    string
	timeout time.Duration
}

// NewClamdScanner creates a scanner talking to clamd at addr
// (host:port). A non-positive timeout defaults to 30 seconds.
func NewClamdScanner(addr string, timeout time.Duration) *ClamdScanner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClamdScanner{addr: addr, timeout: timeout}
}

// Scan implements Scanner. The file content is streamed to clamd in
// length-prefixed chunks; the daemon's single-line reply is parsed into
// a Verdict. Engine and transport failures are reported as
// ErrScannerUnavailable, never as a verdict.
func (s *ClamdScanner) Scan(ctx context.Context, path string) (Verdict, error) {
	f, err := os.Open(path)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrScannerUnavailable, err)
	}
	defer func() { _ = f.Close() }()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrScannerUnavailable, err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write([]byte("zINSTREAM\x00")); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrScannerUnavailable, err)
	}

	if err := streamChunks(conn, f); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrScannerUnavailable, err)
	}

	reply, err := bufio.NewReader(conn).ReadString('\x00')
	if err != nil && err != io.EOF {
		return Verdict{}, fmt.Errorf("%w: %v", ErrScannerUnavailable, err)
	}

	return parseReply(reply)
}

// streamChunks sends the file as length-prefixed chunks terminated by a
// zero-length chunk, per the clamd INSTREAM protocol.
func streamChunks(conn net.Conn, r io.Reader) error {
	buf := make([]byte, clamdChunkSize)
	prefix := make([]byte, 4)

	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			binary.BigEndian.PutUint32(prefix, uint32(n))
			if _, err := conn.Write(prefix); err != nil {
				return err
			}
			if _, err := conn.Write(buf[:n]); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}

	binary.BigEndian.PutUint32(prefix, 0)
	_, err := conn.Write(prefix)
	return err
}

// parseReply interprets a clamd reply line such as "stream: OK" or
// "stream: Eicar-Test-Signature FOUND".
func parseReply(reply string) (Verdict, error) {
	reply = strings.Trim(reply, "\x00\n ")
	_, result, ok := strings.Cut(reply, ": ")
	if !ok {
		return Verdict{}, fmt.Errorf("%w: unexpected reply %q", ErrScannerUnavailable, reply)
	}

	switch {
	case result == "OK":
		return Verdict{Clean: true}, nil
	case strings.HasSuffix(result, " FOUND"):
		threat := strings.TrimSuffix(result, " FOUND")
		return Verdict{Clean: false, Threats: []string{threat}}, nil
	default:
		return Verdict{}, fmt.Errorf("%w: engine error %q", ErrScannerUnavailable, reply)
	}
}
