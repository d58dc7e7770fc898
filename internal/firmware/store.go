package firmware

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Slot states recorded in the manifest.
const (
	StateEmpty   = "empty"
	StateWriting = "writing"
	StateValid   = "valid"
	StateActive  = "active"
)

const (
	slotA        = "slot-a"
	slotB        = "slot-b"
	manifestName = "manifest.bin"
)

var (
	// ErrNotEnoughSpace means the image exceeds the spare slot capacity.
	ErrNotEnoughSpace = errors.New("not enough space")

	// ErrWriteInProgress means Begin was called while a write window is open.
	ErrWriteInProgress = errors.New("write already in progress")

	// ErrNoWindow means Write/Finalize was called without Begin.
	ErrNoWindow = errors.New("no write window open")
)

// Slot is one image slot's manifest entry.
type Slot struct {
	Name     string `msgpack:"name"`
	State    string `msgpack:"state"`
	Length   int64  `msgpack:"length"`
	SHA256   string `msgpack:"sha256"`
	Sequence uint64 `msgpack:"sequence"`
}

type manifest struct {
	Active string           `msgpack:"active"`
	Slots  map[string]*Slot `msgpack:"slots"`
}

// Store manages the two slots under a data directory.
type Store struct {
	mu       sync.Mutex
	dir      string
	capacity int64
	manifest manifest
	window   *writeWindow
}

type writeWindow struct {
	slot     string
	file     *os.File
	hasher   hash.Hash
	expected int64
	written  int64
}

// Open loads or initializes the slot store at dir. Capacity bounds
// the size of any single image.
func Open(dir string, capacity int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	s := &Store{dir: dir, capacity: capacity}

	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	switch {
	case err == nil:
		if err := msgpack.Unmarshal(data, &s.manifest); err != nil {
			return nil, fmt.Errorf("corrupt manifest: %w", err)
		}
	case os.IsNotExist(err):
		s.manifest = manifest{
			Active: slotA,
			Slots: map[string]*Slot{
				slotA: {Name: slotA, State: StateActive},
				slotB: {Name: slotB, State: StateEmpty},
			},
		}
		if err := s.persistManifestLocked(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	// A slot left in "writing" state is a crashed transfer.
	for _, slot := range s.manifest.Slots {
		if slot.State == StateWriting {
			slot.State = StateEmpty
		}
	}

	return s, nil
}

// Capacity returns the per-image size limit.
func (s *Store) Capacity() int64 {
	return s.capacity
}

// ActiveSlot returns a copy of the active slot's manifest entry.
func (s *Store) ActiveSlot() Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.manifest.Slots[s.manifest.Active]
}

// Begin opens the spare slot as a write window sized for an incoming
// image. The size must be known up front; that is why unknown-length
// sources are rejected upstream.
func (s *Store) Begin(size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.window != nil {
		return ErrWriteInProgress
	}
	if size <= 0 || size > s.capacity {
		return ErrNotEnoughSpace
	}

	spare := s.spareNameLocked()
	file, err := os.OpenFile(s.slotPath(spare), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open slot %s: %w", spare, err)
	}

	slot := s.manifest.Slots[spare]
	slot.State = StateWriting
	slot.Length = 0
	slot.SHA256 = ""
	if err := s.persistManifestLocked(); err != nil {
		file.Close()
		return err
	}

	s.window = &writeWindow{
		slot:     spare,
		file:     file,
		hasher:   sha256.New(),
		expected: size,
	}
	return nil
}

// Write streams image bytes into the open window.
func (s *Store) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.window == nil {
		return 0, ErrNoWindow
	}
	n, err := s.window.file.Write(p)
	s.window.written += int64(n)
	s.window.hasher.Write(p[:n])
	if err != nil {
		return n, fmt.Errorf("slot write failed: %w", err)
	}
	return n, nil
}

// BytesWritten reports how much of the image has been streamed in.
func (s *Store) BytesWritten() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.window == nil {
		return 0
	}
	return s.window.written
}

// Finalize commits the window: it syncs the slot file and records the
// digest, length, and valid state in the manifest.
func (s *Store) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.window
	if w == nil {
		return ErrNoWindow
	}

	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return fmt.Errorf("slot sync failed: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("slot close failed: %w", err)
	}

	slot := s.manifest.Slots[w.slot]
	slot.State = StateValid
	slot.Length = w.written
	slot.SHA256 = hex.EncodeToString(w.hasher.Sum(nil))
	s.window = nil

	return s.persistManifestLocked()
}

// IsFinished re-checks the committed spare slot against the slot file
// on disk: valid state, recorded digest, and a file of the recorded
// length must all be present.
func (s *Store) IsFinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	spare := s.spareNameLocked()
	slot := s.manifest.Slots[spare]
	if slot.State != StateValid || slot.SHA256 == "" {
		return false
	}
	info, err := os.Stat(s.slotPath(spare))
	if err != nil {
		return false
	}
	return info.Size() == slot.Length
}

// Abort discards an open window, removing the partial image. The
// active slot is untouched.
func (s *Store) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.window
	if w == nil {
		return
	}
	w.file.Close()
	os.Remove(s.slotPath(w.slot))

	slot := s.manifest.Slots[w.slot]
	slot.State = StateEmpty
	slot.Length = 0
	slot.SHA256 = ""
	s.window = nil

	// Best effort: an abort must not fail.
	_ = s.persistManifestLocked()
}

// Activate flips the active slot to the finalized spare. This is the
// single point where the running image designation changes.
func (s *Store) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	spare := s.spareNameLocked()
	slot := s.manifest.Slots[spare]
	if slot.State != StateValid {
		return fmt.Errorf("slot %s not valid (state %s)", spare, slot.State)
	}

	prev := s.manifest.Slots[s.manifest.Active]
	prev.State = StateValid
	slot.State = StateActive
	slot.Sequence = prev.Sequence + 1
	s.manifest.Active = spare

	return s.persistManifestLocked()
}

func (s *Store) spareNameLocked() string {
	if s.manifest.Active == slotA {
		return slotB
	}
	return slotA
}

func (s *Store) slotPath(name string) string {
	return filepath.Join(s.dir, name+".img")
}

// persistManifestLocked writes the manifest via temp file + rename so
// a crash never leaves a torn manifest.
func (s *Store) persistManifestLocked() error {
	data, err := msgpack.Marshal(&s.manifest)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	path := filepath.Join(s.dir, manifestName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit manifest: %w", err)
	}
	return nil
}
