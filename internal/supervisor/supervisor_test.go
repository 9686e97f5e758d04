package supervisor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/emerald-hwsd/internal/process"
	"github.com/nerrad567/emerald-hwsd/internal/protocol"
)

type safeBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *safeBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := strings.TrimRight(b.sb.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

type fakeChild struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (c *fakeChild) WriteLine(line []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.lines = append(c.lines, string(line))
	return nil
}

func newTestSupervisor(child Child) (*Supervisor, *safeBuffer) {
	buf := &safeBuffer{}
	s := New(protocol.NewWriter(buf))
	if child != nil {
		s.Attach(child)
	}
	return s, buf
}

func assertLines(t *testing.T, got []string, want ...string) {
	t.Helper()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("output =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestForward_PassesResponseThrough(t *testing.T) {
	child := &fakeChild{}
	s, buf := newTestSupervisor(child)

	if err := s.Forward([]byte(`{"id":1,"cmd":"discover"}`)); err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if s.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", s.Pending())
	}
	if len(child.lines) != 1 || child.lines[0] != `{"id":1,"cmd":"discover"}` {
		t.Errorf("child got %v", child.lines)
	}

	s.HandleResponse([]byte(`{"id":1,"ok":true,"result":[]}` + "\n"))

	if s.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", s.Pending())
	}
	assertLines(t, buf.Lines(), `{"id":1,"ok":true,"result":[]}`)
}

func TestForward_BlankLineIgnored(t *testing.T) {
	child := &fakeChild{}
	s, buf := newTestSupervisor(child)

	if err := s.Forward([]byte("   ")); err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if s.Pending() != 0 || len(child.lines) != 0 || len(buf.Lines()) != 0 {
		t.Errorf("blank line was forwarded or answered")
	}
}

func TestForward_NoChild(t *testing.T) {
	s, buf := newTestSupervisor(nil)

	if err := s.Forward([]byte(`{"id":"a","cmd":"status","hws_id":"X"}`)); err != nil {
		t.Fatalf("Forward() error = %v", err)
	}

	if s.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", s.Pending())
	}
	assertLines(t, buf.Lines(), `{"id":"a","ok":false,"error":"daemon not running"}`)
	if s.Stats().Rejected != 1 {
		t.Errorf("Stats().Rejected = %d, want 1", s.Stats().Rejected)
	}
}

func TestForward_ChildWriteFails(t *testing.T) {
	s, buf := newTestSupervisor(&fakeChild{err: process.ErrNotRunning})

	if err := s.Forward([]byte(`{"id":3,"cmd":"turn_on","hws_id":"X"}`)); err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	assertLines(t, buf.Lines(), `{"id":3,"ok":false,"error":"daemon not running"}`)
}

func TestHandleExit_FailsPendingInOrder(t *testing.T) {
	s, buf := newTestSupervisor(&fakeChild{})

	for _, line := range []string{
		`{"id":1,"cmd":"status","hws_id":"A"}`,
		`{"id":2,"cmd":"turn_off","hws_id":"A"}`,
		`not json`,
	} {
		if err := s.Forward([]byte(line)); err != nil {
			t.Fatalf("Forward(%s) error = %v", line, err)
		}
	}

	s.HandleResponse([]byte(`{"id":1,"ok":true,"result":{}}`))
	s.HandleExit(errors.New("exit status 1"))

	assertLines(t, buf.Lines(),
		`{"id":1,"ok":true,"result":{}}`,
		`{"id":2,"ok":false,"error":"daemon exited"}`,
		`{"id":null,"ok":false,"error":"daemon exited"}`,
	)
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", s.Pending())
	}

	stats := s.Stats()
	if stats.Forwarded != 3 || stats.Answered != 1 || stats.Exited != 2 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestHandleExit_NothingPending(t *testing.T) {
	s, buf := newTestSupervisor(&fakeChild{})
	s.HandleExit(nil)
	if len(buf.Lines()) != 0 {
		t.Errorf("output = %v, want none", buf.Lines())
	}
}

type lineSource struct {
	lines []string
	err   error
}

func (r *lineSource) ReadLine() ([]byte, error) {
	if len(r.lines) == 0 {
		return nil, r.err
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return []byte(line), nil
}

func TestRun_ForwardsUntilEOF(t *testing.T) {
	child := &fakeChild{}
	s, _ := newTestSupervisor(child)

	r := protocol.NewReader(strings.NewReader("{\"id\":1,\"cmd\":\"discover\"}\n\n{\"id\":2,\"cmd\":\"status\",\"hws_id\":\"A\"}\n"))
	if err := s.Run(context.Background(), r); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(child.lines) != 2 {
		t.Errorf("child got %d lines, want 2", len(child.lines))
	}
	if s.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", s.Pending())
	}
}

func TestRun_ReadError(t *testing.T) {
	s, _ := newTestSupervisor(&fakeChild{})
	readErr := errors.New("stdin broken")

	err := s.Run(context.Background(), &lineSource{err: readErr})
	if !errors.Is(err, readErr) {
		t.Errorf("Run() error = %v, want %v", err, readErr)
	}
}

func TestRun_Cancelled(t *testing.T) {
	s, _ := newTestSupervisor(&fakeChild{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, &lineSource{lines: []string{`{"id":1,"cmd":"discover"}`}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestSupervisor_WithProcessManager(t *testing.T) {
	s, buf := newTestSupervisor(nil)

	// Answers the first request, then exits after reading the second.
	script := `read a; echo '{"id":1,"ok":true,"result":null}'; read b; exit 0`
	mgr := process.NewManager(process.Config{
		Name:            "fake-daemon",
		Binary:          "/bin/sh",
		Args:            []string{"-c", script},
		GracefulTimeout: 2 * time.Second,
		OnStdoutLine:    s.HandleResponse,
		OnStop:          s.HandleExit,
	})
	s.Attach(mgr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := s.Forward([]byte(`{"id":1,"cmd":"discover"}`)); err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if err := s.Forward([]byte(`{"id":2,"cmd":"status","hws_id":"A"}`)); err != nil {
		t.Fatalf("Forward() error = %v", err)
	}

	select {
	case <-mgr.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("child did not exit")
	}

	assertLines(t, buf.Lines(),
		`{"id":1,"ok":true,"result":null}`,
		`{"id":2,"ok":false,"error":"daemon exited"}`,
	)

	if err := s.Forward([]byte(`{"id":3,"cmd":"discover"}`)); err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	lines := buf.Lines()
	if got := lines[len(lines)-1]; got != `{"id":3,"ok":false,"error":"daemon not running"}` {
		t.Errorf("last line = %s, want daemon not running", got)
	}
}
