package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/device-control/dcc/internal/coordinate"
	"github.com/device-control/dcc/internal/firmware"
	"github.com/device-control/dcc/internal/telemetry"
)

// Updater executes OTA attempts. All blocking work (fetch, slot
// write, finalize) runs inline in the calling context; only the
// network path initiates updates, so there is no cross-context
// contention during the write itself.
type Updater struct {
	client    *http.Client
	coord     *coordinate.Coordinator
	store     SlotStore
	restarter Restarter
	hub       *telemetry.Hub
	audit     AuditSink
	log       *zap.Logger

	settleDelay time.Duration
}

// NewUpdater wires an updater to its collaborators. The HTTP client
// carries no overall timeout: a hung remote stalls the control path
// until the transport's own timeout fires, matching the handshake-only
// timeout policy. hub and audit may be nil.
func NewUpdater(coord *coordinate.Coordinator, store SlotStore, restarter Restarter, settleDelay time.Duration, hub *telemetry.Hub, audit AuditSink, log *zap.Logger) *Updater {
	if log == nil {
		log = zap.NewNop()
	}
	return &Updater{
		client:      &http.Client{},
		coord:       coord,
		store:       store,
		restarter:   restarter,
		hub:         hub,
		audit:       audit,
		log:         log,
		settleDelay: settleDelay,
	}
}

// PerformUpdate runs one complete update attempt from url. The
// returned session carries the terminal outcome; on success the
// restart request has already been issued when this returns.
func (u *Updater) PerformUpdate(ctx context.Context, url string) *Session {
	start := time.Now()
	session := &Session{
		ID:        uuid.NewString(),
		SourceURL: url,
	}

	if url == "" {
		// Input errors are rejected before the coordinator is engaged.
		session.Outcome = Aborted("Missing 'url' parameter")
		return session
	}

	if !u.coord.Engage() {
		session.Outcome = Aborted("update already in progress")
		u.log.Warn("OTA rejected", zap.String("reason", session.Outcome.Reason), zap.String("url", url))
		return session
	}

	// Once engaged, the attempt runs to success or abort with no
	// externally triggerable interruption: the request context is
	// detached so a departing client can cut short neither the stop
	// handshake nor the transfer.
	ctx = context.WithoutCancel(ctx)

	u.publish(telemetry.EventUpdateStarted, map[string]interface{}{
		"sessionId": session.ID,
		"url":       url,
	})
	u.log.Info("Waiting for behavior task to stop", zap.String("sessionId", session.ID))

	quiesce := u.coord.AwaitQuiesce(ctx)
	if quiesce == coordinate.TimedOut {
		// Deliberate availability-over-safety choice: an update must
		// not be blockable indefinitely by a misbehaving task.
		u.log.Warn("Behavior task did not stop in time, proceeding anyway")
	} else {
		u.log.Info("Behavior task stopped, proceeding with OTA")
	}
	u.publish(telemetry.EventBehaviorStopped, map[string]interface{}{
		"sessionId": session.ID,
		"handshake": quiesce.String(),
	})

	time.Sleep(u.settleDelay)

	outcome := u.execute(ctx, session)
	session.Outcome = outcome

	if !outcome.OK {
		u.coord.Release()
		u.logOutcome(session, "FAILURE", time.Since(start))
		u.publish(telemetry.EventUpdateAborted, map[string]interface{}{
			"sessionId": session.ID,
			"reason":    outcome.Reason,
		})
		u.log.Error("OTA failed", zap.String("sessionId", session.ID), zap.String("reason", outcome.Reason))
		return session
	}

	u.logOutcome(session, "SUCCESS", time.Since(start))
	u.publish(telemetry.EventUpdateCompleted, map[string]interface{}{
		"sessionId":    session.ID,
		"bytesWritten": session.BytesWritten,
	})
	u.log.Info("OTA success, rebooting", zap.String("sessionId", session.ID), zap.Int64("bytes", session.BytesWritten))

	if err := u.restarter.Restart(); err != nil {
		// The image is already activated; the device will run it on
		// the next boot even if this restart request failed.
		u.log.Error("restart request failed", zap.Error(err))
	}
	return session
}

// execute runs the fetch-and-flash phase. Each precondition failure
// is a distinct abort reason, checked in order.
func (u *Updater) execute(ctx context.Context, session *Session) Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, session.SourceURL, nil)
	if err != nil {
		return Aborted(fmt.Sprintf("invalid URL: %v", err))
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return Aborted(fmt.Sprintf("HTTP GET failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Aborted(fmt.Sprintf("HTTP GET failed, code %d", resp.StatusCode))
	}

	length := resp.ContentLength
	if length <= 0 {
		// Chunked or unknown-length sources are unsupported: the slot
		// store sizes the write window up front.
		return Aborted("Content-Length is invalid")
	}
	session.ExpectedLength = length

	if err := u.store.Begin(length); err != nil {
		if errors.Is(err, firmware.ErrNotEnoughSpace) {
			return Aborted("Not enough space for OTA")
		}
		return Aborted(fmt.Sprintf("slot reservation failed: %v", err))
	}

	written, copyErr := io.Copy(storeWriter{u.store}, resp.Body)
	session.BytesWritten = written
	if written != length {
		u.store.Abort()
		return Aborted(fmt.Sprintf("Written %d / %d", written, length))
	}
	if copyErr != nil {
		u.store.Abort()
		return Aborted(fmt.Sprintf("download failed: %v", copyErr))
	}

	if err := u.store.Finalize(); err != nil {
		u.store.Abort()
		return Aborted(fmt.Sprintf("finalize failed: %v", err))
	}

	if !u.store.IsFinished() {
		return Aborted("Update not finished")
	}

	if err := u.store.Activate(); err != nil {
		return Aborted(fmt.Sprintf("activate failed: %v", err))
	}

	return Success
}

func (u *Updater) publish(eventType string, data map[string]interface{}) {
	if u.hub != nil {
		u.hub.PublishType(eventType, data)
	}
}

func (u *Updater) logOutcome(session *Session, outcome string, latency time.Duration) {
	if u.audit == nil {
		return
	}
	u.audit.LogAction("otaUpdate", session.SourceURL, map[string]interface{}{
		"sessionId":      session.ID,
		"expectedLength": session.ExpectedLength,
		"bytesWritten":   session.BytesWritten,
		"reason":         session.Outcome.Reason,
	}, outcome, latency)
}

// storeWriter adapts the SlotStore to io.Writer for streaming.
type storeWriter struct {
	store SlotStore
}

func (w storeWriter) Write(p []byte) (int, error) {
	return w.store.Write(p)
}
