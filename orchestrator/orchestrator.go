// Package orchestrator sequences one translation task from file selection to
// artifact download: encoding, record creation, the remote trigger, the
// realtime watch and terminal handling. It owns all user-visible status,
// progress and error state. One orchestrator drives at most one task at a
// time; retries are explicit resubmissions, each with a fresh task id.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aligoek/gpdf2/encoder"
	"github.com/aligoek/gpdf2/events"
	"github.com/aligoek/gpdf2/identity"
	"github.com/aligoek/gpdf2/models"
	"github.com/aligoek/gpdf2/remote"
	"github.com/aligoek/gpdf2/store"
	"github.com/aligoek/gpdf2/subscription"
	"github.com/aligoek/gpdf2/validation"
)

type State string

const (
	StateIdle           State = "idle"
	StateEncoding       State = "encoding"
	StateCreating       State = "creating"
	StateTriggering     State = "triggering"
	StateAwaitingRemote State = "awaiting_remote"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

var (
	// ErrSubmitInFlight rejects a submit while a previous task has not
	// reached a terminal state.
	ErrSubmitInFlight = errors.New("a task is already in flight")

	// ErrNoIdentity is the precondition failure when no principal has been
	// resolved yet.
	ErrNoIdentity = errors.New("identity not available")

	// ErrStoreConsistency reports that the active task record disappeared
	// from the store while awaiting the remote service.
	ErrStoreConsistency = errors.New("task record disappeared from store")

	// ErrNotCompleted rejects a download before the task completed.
	ErrNotCompleted = errors.New("no completed translation to download")
)

// Deps are the collaborators handed to the orchestrator at construction.
// They live from process start to shutdown and are injected rather than
// reached through globals.
type Deps struct {
	Store       store.Store
	Remote      *remote.Client
	Identity    identity.Provider
	Events      events.Producer // optional
	Logger      *zap.Logger
	MaxFileSize int64
}

type SubmitRequest struct {
	FilePath       string
	FileName       string // display name; defaults to base of FilePath
	MediaType      string // declared media type of the selection
	TargetLanguage string
}

type Orchestrator struct {
	deps Deps
	subs *subscription.Manager

	ctx      context.Context
	shutdown context.CancelFunc

	mu             sync.Mutex
	state          State
	taskID         string
	ownerID        string
	fileName       string
	targetLanguage string
	progress       float64
	content        string
	lastErr        error
}

func New(deps Deps) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		deps:     deps,
		subs:     subscription.NewManager(deps.Store, deps.Logger),
		ctx:      ctx,
		shutdown: cancel,
		state:    StateIdle,
	}
}

// Submit runs a new translation task end to end up to the point where the
// remote service owns it, returning the generated task id. It is rejected
// while a previous task is still in flight.
func (o *Orchestrator) Submit(ctx context.Context, req *SubmitRequest) (string, error) {
	if !models.IsSupportedLanguage(req.TargetLanguage) {
		return "", validation.ErrUnsupportedLanguage
	}

	principal, err := o.deps.Identity.Resolve(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoIdentity, err)
	}
	if principal.ID == "" {
		return "", ErrNoIdentity
	}

	fileName := req.FileName
	if fileName == "" {
		fileName = filepath.Base(req.FilePath)
	}

	o.mu.Lock()
	switch o.state {
	case StateIdle, StateCompleted, StateFailed:
	default:
		o.mu.Unlock()
		return "", ErrSubmitInFlight
	}
	// A new submission supersedes whatever was watched before.
	o.subs.Cancel()
	from := o.state
	o.state = StateEncoding
	o.taskID = ""
	o.ownerID = principal.ID
	o.fileName = fileName
	o.targetLanguage = req.TargetLanguage
	o.progress = 0
	o.content = ""
	o.lastErr = nil
	o.mu.Unlock()
	o.publish("", principal.ID, from, StateEncoding, "")

	encoded, err := encoder.EncodeFile(ctx, req.FilePath, req.MediaType, o.deps.MaxFileSize, func(fraction float64) {
		o.surfaceProgress(fraction * 100)
	})
	if err != nil {
		o.fail(StateEncoding, err)
		return "", err
	}

	taskID := uuid.New().String()
	rec := &models.TaskRecord{
		TaskID:         taskID,
		OwnerID:        principal.ID,
		FileName:       fileName,
		TargetLanguage: req.TargetLanguage,
		Status:         models.StatusProcessing,
		Progress:       0,
		CreatedAt:      time.Now().UTC(),
	}

	o.mu.Lock()
	o.taskID = taskID
	o.state = StateCreating
	o.progress = 0
	o.mu.Unlock()
	o.publish(taskID, principal.ID, StateEncoding, StateCreating, "")

	if err := o.deps.Store.Create(ctx, rec); err != nil {
		o.fail(StateCreating, err)
		return "", err
	}

	o.setState(StateCreating, StateTriggering, "")

	startReq := &remote.StartRequest{
		TaskID:         taskID,
		UserID:         principal.ID,
		FileName:       fileName,
		PDFContent:     encoded,
		TargetLanguage: req.TargetLanguage,
	}
	if err := o.deps.Remote.Start(ctx, startReq); err != nil {
		// Best effort: never leave the record permanently processing. The
		// cleanup's own failure is logged, not surfaced.
		if cleanupErr := o.deps.Store.MarkFailed(ctx, principal.ID, taskID, err.Error()); cleanupErr != nil {
			o.deps.Logger.Warn("Failed to mark task record failed after trigger error",
				zap.String("task_id", taskID),
				zap.Error(cleanupErr),
			)
		}
		o.fail(StateTriggering, err)
		return "", err
	}

	o.setState(StateTriggering, StateAwaitingRemote, "")

	if err := o.subs.Subscribe(o.ctx, principal.ID, taskID, o.onSnapshot(taskID)); err != nil {
		o.fail(StateAwaitingRemote, err)
		return "", err
	}

	o.deps.Logger.Info("Task handed off to remote service",
		zap.String("task_id", taskID),
		zap.String("owner_id", principal.ID),
		zap.String("target_language", req.TargetLanguage),
	)
	return taskID, nil
}

// Resubmit retries after a terminal state. It is a plain Submit: a fresh
// task id and record, never an in-place mutation of the old one.
func (o *Orchestrator) Resubmit(ctx context.Context, req *SubmitRequest) (string, error) {
	return o.Submit(ctx, req)
}

// onSnapshot returns the notify callback for one specific task id, so late
// deliveries for a superseded task can never touch current state.
func (o *Orchestrator) onSnapshot(taskID string) subscription.NotifyFunc {
	return func(snap store.Snapshot) {
		o.mu.Lock()
		if o.state != StateAwaitingRemote || o.taskID != taskID {
			// Already terminal (or superseded): terminal side effects ran
			// exactly once, duplicates are dropped here.
			o.mu.Unlock()
			return
		}

		switch {
		case snap.Err != nil:
			err := fmt.Errorf("store subscription failed: %w", snap.Err)
			o.state = StateFailed
			o.lastErr = err
			o.mu.Unlock()
			o.subs.Cancel()
			o.publish(taskID, o.ownerID, StateAwaitingRemote, StateFailed, err.Error())

		case snap.Absent:
			o.state = StateFailed
			o.lastErr = ErrStoreConsistency
			o.mu.Unlock()
			o.subs.Cancel()
			o.publish(taskID, o.ownerID, StateAwaitingRemote, StateFailed, ErrStoreConsistency.Error())

		case snap.Record.Status == models.StatusCompleted:
			o.content = snap.Record.JoinedContent()
			o.progress = 100
			o.state = StateCompleted
			o.mu.Unlock()
			o.subs.Cancel()
			o.publish(taskID, o.ownerID, StateAwaitingRemote, StateCompleted, "")

		case snap.Record.Status == models.StatusFailed:
			msg := snap.Record.ErrorMessage
			if msg == "" {
				msg = "remote processing failed"
			}
			err := errors.New(msg)
			o.state = StateFailed
			o.lastErr = err
			o.mu.Unlock()
			o.subs.Cancel()
			o.publish(taskID, o.ownerID, StateAwaitingRemote, StateFailed, msg)

		default:
			// Still processing. The store does not enforce monotonic
			// progress, so regressions are clamped.
			if snap.Record.Progress > o.progress {
				o.progress = snap.Record.Progress
			}
			o.mu.Unlock()
		}
	}
}

// Download retrieves the rendered artifact for the completed task. A failure
// leaves the task completed; the user may retry without resubmitting.
func (o *Orchestrator) Download(ctx context.Context) (*remote.Artifact, error) {
	o.mu.Lock()
	if o.state != StateCompleted {
		o.mu.Unlock()
		return nil, ErrNotCompleted
	}
	req := &remote.ArtifactRequest{
		TranslatedContent: o.content,
		OriginalFileName:  o.fileName,
		TargetLanguage:    o.targetLanguage,
	}
	o.mu.Unlock()

	artifact, err := o.deps.Remote.RetrieveArtifact(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("artifact retrieval failed: %w", err)
	}
	return artifact, nil
}

// Close tears the orchestrator down, cancelling any active subscription.
func (o *Orchestrator) Close() {
	o.shutdown()
	o.subs.Cancel()
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) TaskID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.taskID
}

// Progress is the user-visible percentage in [0,100] for the current phase.
func (o *Orchestrator) Progress() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress
}

// Content is the joined translated text, available once completed.
func (o *Orchestrator) Content() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.content
}

func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

func (o *Orchestrator) surfaceProgress(pct float64) {
	o.mu.Lock()
	if pct > o.progress {
		o.progress = pct
	}
	o.mu.Unlock()
}

func (o *Orchestrator) setState(from, to State, detail string) {
	o.mu.Lock()
	o.state = to
	taskID, ownerID := o.taskID, o.ownerID
	o.mu.Unlock()
	o.publish(taskID, ownerID, from, to, detail)
}

func (o *Orchestrator) fail(from State, err error) {
	o.mu.Lock()
	o.state = StateFailed
	o.lastErr = err
	taskID, ownerID := o.taskID, o.ownerID
	o.mu.Unlock()

	o.deps.Logger.Error("Task failed",
		zap.String("task_id", taskID),
		zap.String("phase", string(from)),
		zap.Error(err),
	)
	o.publish(taskID, ownerID, from, StateFailed, err.Error())
}

func (o *Orchestrator) publish(taskID, ownerID string, from, to State, detail string) {
	o.deps.Logger.Info("State transition",
		zap.String("task_id", taskID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	if o.deps.Events == nil {
		return
	}
	event := &events.TransitionEvent{
		TaskID:     taskID,
		OwnerID:    ownerID,
		FromState:  string(from),
		ToState:    string(to),
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	}
	if err := o.deps.Events.PublishTransition(o.ctx, event); err != nil {
		o.deps.Logger.Warn("Failed to publish transition event",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
	}
}
