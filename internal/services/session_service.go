package services

import (
	"strings"
	"time"

	"github.com/mediarank/mediarank/internal/models"
)

// SessionStore abstracts persistence for token resolution and the
// completion transition. MarkAccessed and MarkCompleted must be single
// conditional statements against the store, never read-then-write.
type SessionStore interface {
	GetSessionByToken(token string) (*models.Session, error)
	GetTest(id int64) (*models.Test, error)
	// MarkAccessed sets accessed_at only while it is null and reports
	// whether this call was the first touch.
	MarkAccessed(sessionID int64, at time.Time) (bool, error)
	// MarkCompleted sets completed_at only while it is null; false
	// means a concurrent caller won the transition.
	MarkCompleted(sessionID int64, at time.Time) (bool, error)
}

// SessionContext is a resolved live session.
type SessionContext struct {
	SessionID   int64
	TestID      int64
	Email       string
	FirstAccess bool
}

// TokenResolver is the gate every respondent-facing write path calls
// before attempting a mutation.
type TokenResolver interface {
	Resolve(token string, meta *RequestMeta) (*SessionContext, error)
}

// SessionGate resolves inbound one-time tokens and owns the terminal,
// at-most-once completion transition.
type SessionGate struct {
	store    SessionStore
	activity ActivityRecorder
	now      func() time.Time
}

func NewSessionGate(store SessionStore, activity ActivityRecorder) *SessionGate {
	return &SessionGate{
		store:    store,
		activity: activity,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Resolve distinguishes three rejections the caller renders
// differently: an unknown token (not_found), a used-up session (gone)
// and a closed test (forbidden). On first successful resolution it
// stamps accessed_at; the stamp is informational telemetry, so two
// racing first accesses may both observe FirstAccess (see the
// completion gate for the strict contract).
func (g *SessionGate) Resolve(token string, meta *RequestMeta) (*SessionContext, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, NewNotFoundError("no such link")
	}
	sess, err := g.store.GetSessionByToken(token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, NewNotFoundError("no such link")
	}
	if sess.CompletedAt != nil {
		return nil, NewGoneError("link already used")
	}
	t, err := g.store.GetTest(sess.TestID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, NewNotFoundError("no such link")
	}
	if t.Status == models.TestStatusClosed {
		return nil, NewForbiddenError("test closed")
	}
	first, err := g.store.MarkAccessed(sess.ID, g.now())
	if err != nil {
		return nil, err
	}
	if first {
		g.activity.Record(ActionAccessTest, nil, sess.Email, EntityTest, sess.TestID, AccessTestDetails{
			SessionID: sess.ID,
		}, meta)
	}
	return &SessionContext{
		SessionID:   sess.ID,
		TestID:      sess.TestID,
		Email:       sess.Email,
		FirstAccess: first,
	}, nil
}

// Complete seals the session. First writer wins: the conditional write
// succeeds exactly once per session regardless of double submits or
// retried requests, and every later caller gets already_completed,
// whether it lost the race or retried after the fact. The server does
// not verify that every media item was rated; completion is a
// client-asserted action it merely seals.
func (g *SessionGate) Complete(token string, meta *RequestMeta) error {
	ctx, err := g.Resolve(token, meta)
	if err != nil {
		if CodeOf(err) == ErrorGone {
			return NewAlreadyCompletedError("session already completed")
		}
		return err
	}
	ok, err := g.store.MarkCompleted(ctx.SessionID, g.now())
	if err != nil {
		return err
	}
	if !ok {
		return NewAlreadyCompletedError("session already completed")
	}
	g.activity.Record(ActionCompleteTest, nil, ctx.Email, EntityTest, ctx.TestID, CompleteTestDetails{
		SessionID: ctx.SessionID,
	}, meta)
	return nil
}

var _ TokenResolver = (*SessionGate)(nil)
