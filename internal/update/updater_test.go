package update

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/device-control/dcc/internal/coordinate"
	"github.com/device-control/dcc/internal/firmware"
)

// fakeRestarter records restart requests instead of rebooting.
type fakeRestarter struct {
	mu     sync.Mutex
	called bool
}

func (f *fakeRestarter) Restart() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = true
	return nil
}

func (f *fakeRestarter) wasCalled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.called
}

// fakeStore lets tests fail individual pipeline steps.
type fakeStore struct {
	beginErr    error
	finalizeErr error
	finished    bool
	activateErr error
	aborted     bool
	written     int64
}

func (f *fakeStore) Begin(size int64) error { return f.beginErr }
func (f *fakeStore) Write(p []byte) (int, error) {
	f.written += int64(len(p))
	return len(p), nil
}
func (f *fakeStore) Finalize() error { return f.finalizeErr }
func (f *fakeStore) IsFinished() bool { return f.finished }
func (f *fakeStore) Abort() { f.aborted = true }
func (f *fakeStore) Activate() error { return f.activateErr }

type auditRecord struct {
	action  string
	outcome string
}

type fakeAudit struct {
	mu      sync.Mutex
	records []auditRecord
}

func (f *fakeAudit) LogAction(action, target string, params map[string]interface{}, outcome string, latency time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, auditRecord{action: action, outcome: outcome})
}

func newTestUpdater(t *testing.T, store SlotStore) (*Updater, *coordinate.Coordinator, *fakeRestarter) {
	t.Helper()
	coord := coordinate.New(time.Millisecond, 50*time.Millisecond)
	restarter := &fakeRestarter{}
	updater := NewUpdater(coord, store, restarter, 0, nil, nil, nil)
	return updater, coord, restarter
}

func newSlotStore(t *testing.T, capacity int64) *firmware.Store {
	t.Helper()
	store, err := firmware.Open(t.TempDir(), capacity)
	if err != nil {
		t.Fatalf("failed to open slot store: %v", err)
	}
	return store
}

func TestPerformUpdateSuccess(t *testing.T) {
	image := bytes.Repeat([]byte{0x5A}, 2048)
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(image)
	}))
	defer remote.Close()

	store := newSlotStore(t, 1<<20)
	updater, coord, restarter := newTestUpdater(t, store)

	session := updater.PerformUpdate(context.Background(), remote.URL+"/fw.bin")

	if !session.Outcome.OK {
		t.Fatalf("expected success, got abort: %q", session.Outcome.Reason)
	}
	if session.ExpectedLength != int64(len(image)) || session.BytesWritten != int64(len(image)) {
		t.Errorf("length accounting: expected %d/%d, got %d/%d",
			len(image), len(image), session.ExpectedLength, session.BytesWritten)
	}
	if !restarter.wasCalled() {
		t.Error("restart must be issued on success")
	}
	// Flags stay set on success: the process is expected to end.
	if !coord.Updating() {
		t.Error("isUpdating must not be cleared on the success path")
	}
	if got := store.ActiveSlot().Name; got != "slot-b" {
		t.Errorf("new image not activated: active slot %q", got)
	}
}

func TestPerformUpdateMissingURL(t *testing.T) {
	updater, coord, restarter := newTestUpdater(t, newSlotStore(t, 1<<20))

	session := updater.PerformUpdate(context.Background(), "")

	if session.Outcome.OK {
		t.Fatal("expected abort")
	}
	if session.Outcome.Reason != "Missing 'url' parameter" {
		t.Errorf("reason: got %q", session.Outcome.Reason)
	}
	// Input errors never engage the coordinator.
	if coord.Updating() || coord.ShouldStop() {
		t.Error("flags must be untouched on input error")
	}
	if restarter.wasCalled() {
		t.Error("restart must not be issued")
	}
}

func TestPerformUpdateRemoteError(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer remote.Close()

	store := newSlotStore(t, 1<<20)
	updater, coord, restarter := newTestUpdater(t, store)

	session := updater.PerformUpdate(context.Background(), remote.URL+"/fw.bin")

	if session.Outcome.OK {
		t.Fatal("expected abort")
	}
	if session.Outcome.Reason != "HTTP GET failed, code 404" {
		t.Errorf("reason: got %q", session.Outcome.Reason)
	}
	// Atomicity: idle restored, prior image untouched.
	if coord.Updating() || coord.ShouldStop() {
		t.Error("flags must return to idle after abort")
	}
	if restarter.wasCalled() {
		t.Error("restart must not be issued on abort")
	}
	if got := store.ActiveSlot().Name; got != "slot-a" {
		t.Errorf("active slot changed on abort: %q", got)
	}
}

func TestPerformUpdateUnknownLength(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Flushing before the handler returns forces chunked encoding.
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		w.Write([]byte("chunk"))
	}))
	defer remote.Close()

	updater, coord, _ := newTestUpdater(t, newSlotStore(t, 1<<20))

	session := updater.PerformUpdate(context.Background(), remote.URL)

	if session.Outcome.Reason != "Content-Length is invalid" {
		t.Errorf("reason: got %q", session.Outcome.Reason)
	}
	if coord.Updating() {
		t.Error("flags must return to idle after abort")
	}
}

func TestPerformUpdateInsufficientSpace(t *testing.T) {
	image := bytes.Repeat([]byte{1}, 512)
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(image)
	}))
	defer remote.Close()

	updater, coord, _ := newTestUpdater(t, newSlotStore(t, 100))

	session := updater.PerformUpdate(context.Background(), remote.URL)

	if session.Outcome.Reason != "Not enough space for OTA" {
		t.Errorf("reason: got %q", session.Outcome.Reason)
	}
	if coord.Updating() {
		t.Error("flags must return to idle after abort")
	}
}

func TestPerformUpdateShortWrite(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(1000))
		w.Write(bytes.Repeat([]byte{1}, 100))
	}))
	defer remote.Close()

	store := newSlotStore(t, 1<<20)
	updater, coord, _ := newTestUpdater(t, store)

	session := updater.PerformUpdate(context.Background(), remote.URL)

	if session.Outcome.OK {
		t.Fatal("expected abort on truncated transfer")
	}
	if session.Outcome.Reason != "Written 100 / 1000" {
		t.Errorf("reason: got %q", session.Outcome.Reason)
	}
	if coord.Updating() {
		t.Error("flags must return to idle after abort")
	}
	if store.IsFinished() {
		t.Error("truncated image must not be committed")
	}
}

// faultStore accepts the stream but fails the write that completes
// the expected size, so the copy errors with all bytes accounted for.
type faultStore struct {
	fakeStore
	expected int64
}

func (f *faultStore) Begin(size int64) error {
	f.expected = size
	return nil
}

func (f *faultStore) Write(p []byte) (int, error) {
	f.written += int64(len(p))
	if f.written >= f.expected {
		return len(p), errors.New("device I/O error")
	}
	return len(p), nil
}

func TestPerformUpdateCopyErrorAtFullLength(t *testing.T) {
	image := bytes.Repeat([]byte{1}, 64)
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(image)
	}))
	defer remote.Close()

	store := &faultStore{}
	updater, coord, _ := newTestUpdater(t, store)

	session := updater.PerformUpdate(context.Background(), remote.URL)

	if session.Outcome.OK {
		t.Fatal("expected abort")
	}
	// With every byte written the length report would claim success;
	// the underlying error is what aborted the attempt.
	if session.Outcome.Reason != "download failed: device I/O error" {
		t.Errorf("reason: got %q", session.Outcome.Reason)
	}
	if !store.aborted {
		t.Error("store must be aborted on copy error")
	}
	if coord.Updating() {
		t.Error("flags must return to idle after abort")
	}
}

func TestPerformUpdateSurvivesClientDisconnect(t *testing.T) {
	image := bytes.Repeat([]byte{3}, 256)
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(image)
	}))
	defer remote.Close()

	store := newSlotStore(t, 1<<20)
	updater, coord, restarter := newTestUpdater(t, store)

	// The behavior task is mid-phase and yields a moment later.
	coord.SetBusy(true)
	go func() {
		time.Sleep(25 * time.Millisecond)
		coord.SetBusy(false)
	}()

	// The client departs right after the ack; its context is already
	// cancelled when the pipeline runs.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	session := updater.PerformUpdate(ctx, remote.URL)
	elapsed := time.Since(start)

	if !session.Outcome.OK {
		t.Fatalf("expected success, got abort: %q", session.Outcome.Reason)
	}
	// The handshake must run its course: busy-clear time, not the
	// instant the context died.
	if elapsed < 25*time.Millisecond {
		t.Errorf("handshake cut short by client disconnect: %v", elapsed)
	}
	if !restarter.wasCalled() {
		t.Error("restart must be issued")
	}
}

func TestPerformUpdateFinalizeFailure(t *testing.T) {
	image := bytes.Repeat([]byte{1}, 64)
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(image)
	}))
	defer remote.Close()

	store := &fakeStore{finalizeErr: errors.New("commit rejected")}
	updater, coord, restarter := newTestUpdater(t, store)

	session := updater.PerformUpdate(context.Background(), remote.URL)

	if session.Outcome.OK {
		t.Fatal("expected abort")
	}
	if session.Outcome.Reason != "finalize failed: commit rejected" {
		t.Errorf("reason: got %q", session.Outcome.Reason)
	}
	if !store.aborted {
		t.Error("store must be aborted after finalize failure")
	}
	if coord.Updating() || restarter.wasCalled() {
		t.Error("abort must restore idle without restarting")
	}
}

func TestPerformUpdateIncompleteAfterFinalize(t *testing.T) {
	image := bytes.Repeat([]byte{1}, 64)
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(image)
	}))
	defer remote.Close()

	store := &fakeStore{finished: false}
	updater, _, _ := newTestUpdater(t, store)

	session := updater.PerformUpdate(context.Background(), remote.URL)

	if session.Outcome.Reason != "Update not finished" {
		t.Errorf("reason: got %q", session.Outcome.Reason)
	}
}

func TestPerformUpdateSingleFlight(t *testing.T) {
	updater, coord, _ := newTestUpdater(t, newSlotStore(t, 1<<20))

	if !coord.Engage() {
		t.Fatal("setup engage failed")
	}

	session := updater.PerformUpdate(context.Background(), "http://example.invalid/fw.bin")

	if session.Outcome.Reason != "update already in progress" {
		t.Errorf("reason: got %q", session.Outcome.Reason)
	}
	// The losing attempt must not release the winner's flags.
	if !coord.Updating() {
		t.Error("in-flight update's flags were cleared")
	}
}

func TestPerformUpdateProceedsPastHandshakeCap(t *testing.T) {
	image := bytes.Repeat([]byte{7}, 128)
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(image)
	}))
	defer remote.Close()

	store := newSlotStore(t, 1<<20)
	updater, coord, restarter := newTestUpdater(t, store)

	// A misbehaving behavior task that never clears its busy flag.
	coord.SetBusy(true)

	start := time.Now()
	session := updater.PerformUpdate(context.Background(), remote.URL)
	elapsed := time.Since(start)

	if !session.Outcome.OK {
		t.Fatalf("update must proceed at cap expiry, got abort: %q", session.Outcome.Reason)
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("update finished before handshake cap: %v", elapsed)
	}
	if !restarter.wasCalled() {
		t.Error("restart must be issued")
	}
}

func TestPerformUpdateAuditsOutcome(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer remote.Close()

	coord := coordinate.New(time.Millisecond, 50*time.Millisecond)
	sink := &fakeAudit{}
	updater := NewUpdater(coord, newSlotStore(t, 1<<20), &fakeRestarter{}, 0, nil, sink, nil)

	updater.PerformUpdate(context.Background(), remote.URL)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.records) != 1 || sink.records[0].action != "otaUpdate" || sink.records[0].outcome != "FAILURE" {
		t.Errorf("unexpected audit records: %+v", sink.records)
	}
}
