package services

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mediarank/mediarank/internal/models"
)

// TestStore abstracts persistence for the test lifecycle and its
// session grants.
type TestStore interface {
	InsertTest(t *models.Test, categoryID int64) (*models.Test, error)
	GetTest(id int64) (*models.Test, error)
	ListTests() ([]*models.Test, error)
	// CloseTest flips status to closed only while it is still open and
	// reports whether a transition happened.
	CloseTest(id int64) (bool, error)
	DeleteTest(id int64) (bool, error)

	GetCategory(id int64) (*models.Category, error)

	InsertSession(sess *models.Session) (*models.Session, error)
	GetSession(id int64) (*models.Session, error)
	GetSessionByEmail(testID int64, email string) (*models.Session, error)
	ListSessions(testID int64) ([]*models.Session, error)
	DeleteSession(id, testID int64) (bool, error)
}

// TestService owns the open/closed state machine of a test and the
// granting and revocation of respondent sessions.
type TestService struct {
	store    TestStore
	activity ActivityRecorder
	now      func() time.Time
	newToken func() string
}

func NewTestService(store TestStore, activity ActivityRecorder) *TestService {
	return &TestService{
		store:    store,
		activity: activity,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: uuid.NewString,
	}
}

// Create registers a new open test bound to one category. The category
// reference must resolve; the media set itself may still change as the
// media subsystem reassigns files.
func (s *TestService) Create(actor Actor, name, description string, categoryID int64, loopMedia *bool, meta *RequestMeta) (*models.Test, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewInvalidError("test name required")
	}
	cat, err := s.store.GetCategory(categoryID)
	if err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, NewInvalidError("category does not exist")
	}
	loop := true
	if loopMedia != nil {
		loop = *loopMedia
	}
	t := &models.Test{
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedBy:   actor.Username,
		Status:      models.TestStatusOpen,
		LoopMedia:   loop,
		CreatedAt:   s.now(),
	}
	created, err := s.store.InsertTest(t, categoryID)
	if err != nil {
		return nil, err
	}
	s.activity.Record(ActionCreateTest, &actor, "", EntityTest, created.ID, CreateTestDetails{
		Name:        created.Name,
		Description: created.Description,
		CategoryID:  categoryID,
		LoopMedia:   created.LoopMedia,
	}, meta)
	return created, nil
}

func (s *TestService) Get(id int64) (*models.Test, error) {
	t, err := s.store.GetTest(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, NewNotFoundError("test not found")
	}
	return t, nil
}

func (s *TestService) List() ([]*models.Test, error) {
	return s.store.ListTests()
}

// Close seals the test. Only the owning admin or a super admin may
// close it, and only a genuine open->closed transition succeeds; a
// repeat call reports already_closed so the audit trail records real
// transitions only.
func (s *TestService) Close(actor Actor, id int64, meta *RequestMeta) (*models.Test, error) {
	t, err := s.store.GetTest(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, NewNotFoundError("test not found")
	}
	if !s.canManage(actor, t) {
		return nil, NewForbiddenError("not the test owner")
	}
	closed, err := s.store.CloseTest(id)
	if err != nil {
		return nil, err
	}
	if !closed {
		return nil, NewAlreadyClosedError("test already closed")
	}
	t.Status = models.TestStatusClosed
	s.activity.Record(ActionCloseTest, &actor, "", EntityTest, t.ID, CloseTestDetails{Name: t.Name}, meta)
	return t, nil
}

// Delete removes the test and cascades to its sessions and ratings.
func (s *TestService) Delete(actor Actor, id int64, meta *RequestMeta) error {
	t, err := s.store.GetTest(id)
	if err != nil {
		return err
	}
	if t == nil {
		return NewNotFoundError("test not found")
	}
	if !s.canManage(actor, t) {
		return NewForbiddenError("not the test owner")
	}
	ok, err := s.store.DeleteTest(id)
	if err != nil {
		return err
	}
	if !ok {
		return NewNotFoundError("test not found")
	}
	s.activity.Record(ActionDeleteTest, &actor, "", EntityTest, id, DeleteTestDetails{
		Name:      t.Name,
		CreatedBy: t.CreatedBy,
	}, meta)
	return nil
}

func (s *TestService) canManage(actor Actor, t *models.Test) bool {
	return actor.SuperAdmin || (t.CreatedBy != "" && t.CreatedBy == actor.Username)
}

// Grant invites a respondent: it mints an unguessable one-time token
// bound to (test, email). A closed test grants no new sessions.
func (s *TestService) Grant(actor Actor, testID int64, email string, meta *RequestMeta) (*models.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, NewInvalidError("email required")
	}
	t, err := s.store.GetTest(testID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, NewNotFoundError("test not found")
	}
	if t.Status == models.TestStatusClosed {
		return nil, NewForbiddenError("test closed")
	}
	existing, err := s.store.GetSessionByEmail(testID, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewConflictError("respondent already invited")
	}
	sess := &models.Session{
		TestID: testID,
		Email:  email,
		Token:  s.newToken(),
	}
	created, err := s.store.InsertSession(sess)
	if err != nil {
		return nil, err
	}
	s.activity.Record(ActionAddTestUser, &actor, "", EntityTestUser, created.ID, AddTestUserDetails{
		TestID: testID,
		Email:  email,
	}, meta)
	return created, nil
}

func (s *TestService) Sessions(testID int64) ([]*models.Session, error) {
	t, err := s.store.GetTest(testID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, NewNotFoundError("test not found")
	}
	return s.store.ListSessions(testID)
}

// Revoke deletes a session grant. Revocation is blocked once the
// respondent completed or the parent test closed; a closed or deleted
// test removes its sessions through the cascade instead.
func (s *TestService) Revoke(actor Actor, testID, sessionID int64, meta *RequestMeta) error {
	t, err := s.store.GetTest(testID)
	if err != nil {
		return err
	}
	if t == nil {
		return NewNotFoundError("test not found")
	}
	if t.Status == models.TestStatusClosed {
		return NewForbiddenError("test closed")
	}
	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		return err
	}
	if sess == nil || sess.TestID != testID {
		return NewNotFoundError("test user not found")
	}
	if sess.CompletedAt != nil {
		return NewForbiddenError("session already completed")
	}
	ok, err := s.store.DeleteSession(sessionID, testID)
	if err != nil {
		return err
	}
	if !ok {
		return NewNotFoundError("test user not found")
	}
	s.activity.Record(ActionDeleteTestUser, &actor, "", EntityTestUser, sessionID, DeleteTestUserDetails{
		TestID: testID,
		Email:  sess.Email,
	}, meta)
	return nil
}
