package detector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrymomot/devicekit/pkg/logger"
	"github.com/dmitrymomot/devicekit/pkg/source"
)

// UpdateResult describes a published database.
type UpdateResult struct {
	SnapshotID  string
	DataVersion string
	Fingerprint string
	Bytes       int64
	Duration    time.Duration
}

// UpdaterState is a point-in-time view of the updater.
type UpdaterState struct {
	State       LifecycleState
	Enabled     bool // a source is configured
	Interval    time.Duration
	Source      string
	LastAttempt time.Time
	LastSuccess time.Time
	LastError   error
	InFlight    bool
	SnapshotID  string
	Fingerprint string
}

// Updater replaces the engine's database with newer files from a source,
// either on demand with RunOnce or periodically between Start and Stop.
//
// Runs are serialized. Start and Stop are serialized with each other but
// never wait on a run except to join the loop on Stop.
type Updater struct {
	engine       *Engine
	source       source.Source
	interval     time.Duration
	fetchTimeout time.Duration
	maxSize      int64
	now          func() time.Time
	logger       *slog.Logger

	lc    lifecycle
	ctlMu sync.Mutex // Start, Stop, halt
	stop  chan struct{}
	done  chan struct{}

	runMu sync.Mutex // one run at a time

	stateMu     sync.Mutex
	fingerprint string
	active      time.Duration
	lastAttempt time.Time
	lastSuccess time.Time
	lastErr     error
	inFlight    bool
}

func newUpdater(e *Engine) *Updater {
	name := ""
	if e.opts.source != nil {
		name = e.opts.source.String()
	}
	return &Updater{
		engine:       e,
		source:       e.opts.source,
		interval:     e.opts.interval,
		fetchTimeout: e.opts.fetchTimeout,
		maxSize:      e.opts.maxDownloadSize,
		now:          e.opts.now,
		logger:       e.logger.With(logger.Component("updater"), logger.Source(name)),
	}
}

// Start launches the periodic loop. interval <= 0 uses the configured
// interval.
func (u *Updater) Start(interval time.Duration) error {
	u.ctlMu.Lock()
	defer u.ctlMu.Unlock()

	if u.engine.closed.Load() {
		return ErrEngineClosed
	}
	if u.source == nil {
		return ErrNoSource
	}
	if interval <= 0 {
		interval = u.interval
	}
	if interval <= 0 {
		return ErrInvalidInterval
	}
	if err := u.lc.fire(eventStart); err != nil {
		return fmt.Errorf("%w: %w", ErrAlreadyRunning, err)
	}

	u.stop = make(chan struct{})
	u.done = make(chan struct{})
	u.stateMu.Lock()
	u.active = interval
	u.stateMu.Unlock()

	go u.loop(interval, u.stop, u.done)

	u.logger.Info("updater started", slog.Duration("interval", interval))
	return nil
}

// Stop ends the loop and waits for it to exit. A run in progress is allowed
// to finish; it is not cancelled.
func (u *Updater) Stop() error {
	u.ctlMu.Lock()
	defer u.ctlMu.Unlock()
	return u.stopLocked()
}

func (u *Updater) stopLocked() error {
	if err := u.lc.fire(eventStop); err != nil {
		return fmt.Errorf("%w: %w", ErrNotRunning, err)
	}

	close(u.stop)
	<-u.done

	u.stateMu.Lock()
	u.active = 0
	u.stateMu.Unlock()

	if err := u.lc.fire(eventStopped); err != nil {
		// Only Stop moves out of StateStopping, under ctlMu.
		u.logger.Error("updater lifecycle out of sync", logger.Error(err))
		return err
	}
	u.logger.Info("updater stopped")
	return nil
}

// halt stops the loop if it runs; used by Engine.Close.
func (u *Updater) halt() {
	u.ctlMu.Lock()
	defer u.ctlMu.Unlock()
	if u.lc.current() == StateRunning {
		_ = u.stopLocked()
	}
}

func (u *Updater) loop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			u.cycle()
		}
	}
}

func (u *Updater) cycle() {
	res, err := u.RunOnce(context.Background())
	switch {
	case err == nil:
		u.logger.Info("device database updated",
			logger.SnapshotID(res.SnapshotID),
			logger.DataVersion(res.DataVersion),
			slog.Int64("bytes", res.Bytes),
			logger.Duration(res.Duration))
	case errors.Is(err, ErrAlreadyCurrent):
		u.logger.Debug("device database already current")
	case errors.Is(err, ErrEngineClosed):
	default:
		u.logger.Error("device database update failed", logger.Error(err))
	}
}

// RunOnce fetches the source's file, validates it by loading it, moves it
// over the root path and makes it the current snapshot. Lookups keep using
// the previous snapshot until the swap. On any failure the current
// snapshot and the root file stay untouched.
func (u *Updater) RunOnce(ctx context.Context) (UpdateResult, error) {
	u.runMu.Lock()
	defer u.runMu.Unlock()

	if u.engine.closed.Load() {
		return UpdateResult{}, ErrEngineClosed
	}
	if u.source == nil {
		return UpdateResult{}, ErrNoSource
	}

	start := u.now()
	u.stateMu.Lock()
	u.inFlight = true
	u.lastAttempt = start
	u.stateMu.Unlock()

	res, err := u.run(ctx)

	u.stateMu.Lock()
	u.inFlight = false
	switch {
	case err == nil:
		res.Duration = u.now().Sub(start)
		u.lastSuccess = u.now()
		u.lastErr = nil
	case errors.Is(err, ErrAlreadyCurrent):
		u.lastErr = nil
	default:
		u.lastErr = err
	}
	u.stateMu.Unlock()

	return res, err
}

func (u *Updater) run(ctx context.Context) (UpdateResult, error) {
	if u.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.fetchTimeout)
		defer cancel()
	}

	payload, err := u.source.Fetch(ctx, u.currentFingerprint())
	if errors.Is(err, source.ErrNotModified) {
		return UpdateResult{}, fmt.Errorf("%w: %w", ErrAlreadyCurrent, err)
	}
	if err != nil {
		return UpdateResult{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer func() { _ = payload.Body.Close() }()

	if payload.Size > u.maxSize {
		return UpdateResult{}, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFetchFailed, payload.Size, u.maxSize)
	}

	root := u.engine.rootPath
	tmp, err := os.CreateTemp(filepath.Dir(root), "."+filepath.Base(root)+".*.download")
	if err != nil {
		return UpdateResult{}, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	tmpPath := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmpPath)
		}
	}()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), io.LimitReader(payload.Body, u.maxSize+1))
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return UpdateResult{}, fmt.Errorf("%w: download: %w", ErrFetchFailed, err)
	}
	if n > u.maxSize {
		return UpdateResult{}, fmt.Errorf("%w: download exceeds limit of %d bytes", ErrFetchFailed, u.maxSize)
	}

	digest := hex.EncodeToString(h.Sum(nil))
	cur := u.engine.current.Load()
	if cur != nil && cur.digest == digest {
		u.setFingerprint(payload.Fingerprint)
		return UpdateResult{}, fmt.Errorf("%w: content unchanged", ErrAlreadyCurrent)
	}

	snap, err := u.engine.load(ctx, tmpPath, digest)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	if u.engine.closed.Load() {
		snap.release()
		return UpdateResult{}, ErrEngineClosed
	}
	if err := os.Rename(tmpPath, root); err != nil {
		snap.release()
		return UpdateResult{}, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	renamed = true

	old := u.engine.current.Swap(snap)
	if old != nil {
		old.release()
	}
	u.setFingerprint(payload.Fingerprint)

	return UpdateResult{
		SnapshotID:  snap.id,
		DataVersion: snap.info.DataVersion,
		Fingerprint: payload.Fingerprint,
		Bytes:       n,
	}, nil
}

func (u *Updater) currentFingerprint() string {
	u.stateMu.Lock()
	defer u.stateMu.Unlock()
	return u.fingerprint
}

func (u *Updater) setFingerprint(fp string) {
	u.stateMu.Lock()
	u.fingerprint = fp
	u.stateMu.Unlock()
}

// Status returns the updater's current state.
func (u *Updater) Status() UpdaterState {
	st := UpdaterState{
		State:   u.lc.current(),
		Enabled: u.source != nil,
	}
	if u.source != nil {
		st.Source = u.source.String()
	}

	u.stateMu.Lock()
	st.Interval = u.active
	if st.Interval == 0 {
		st.Interval = u.interval
	}
	st.LastAttempt = u.lastAttempt
	st.LastSuccess = u.lastSuccess
	st.LastError = u.lastErr
	st.InFlight = u.inFlight
	st.Fingerprint = u.fingerprint
	u.stateMu.Unlock()

	if s := u.engine.current.Load(); s != nil {
		st.SnapshotID = s.id
	}
	return st
}
