package services

import (
	"testing"
	"time"

	"github.com/mediarank/mediarank/internal/models"
)

type recordedCall struct {
	action string
	actor  *Actor
	email  string
	entity string
	id     int64
}

type stubRecorder struct {
	calls []recordedCall
}

func (r *stubRecorder) Record(action string, actor *Actor, respondentEmail, entityType string, entityID int64, details any, meta *RequestMeta) {
	r.calls = append(r.calls, recordedCall{action, actor, respondentEmail, entityType, entityID})
}

func (r *stubRecorder) actions() []string {
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.action)
	}
	return out
}

type stubTestStore struct {
	tests      map[int64]*models.Test
	categories map[int64]*models.Category
	sessions   map[int64]*models.Session
	nextID     int64
}

func newStubTestStore() *stubTestStore {
	return &stubTestStore{
		tests:      map[int64]*models.Test{},
		categories: map[int64]*models.Category{},
		sessions:   map[int64]*models.Session{},
		nextID:     1,
	}
}

func (s *stubTestStore) take() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *stubTestStore) InsertTest(t *models.Test, categoryID int64) (*models.Test, error) {
	copy := *t
	copy.ID = s.take()
	s.tests[copy.ID] = &copy
	out := copy
	return &out, nil
}

func (s *stubTestStore) GetTest(id int64) (*models.Test, error) {
	if t, ok := s.tests[id]; ok {
		copy := *t
		return &copy, nil
	}
	return nil, nil
}

func (s *stubTestStore) ListTests() ([]*models.Test, error) {
	out := []*models.Test{}
	for _, t := range s.tests {
		copy := *t
		out = append(out, &copy)
	}
	return out, nil
}

func (s *stubTestStore) CloseTest(id int64) (bool, error) {
	t, ok := s.tests[id]
	if !ok || t.Status != models.TestStatusOpen {
		return false, nil
	}
	t.Status = models.TestStatusClosed
	return true, nil
}

func (s *stubTestStore) DeleteTest(id int64) (bool, error) {
	if _, ok := s.tests[id]; !ok {
		return false, nil
	}
	delete(s.tests, id)
	for sid, sess := range s.sessions {
		if sess.TestID == id {
			delete(s.sessions, sid)
		}
	}
	return true, nil
}

func (s *stubTestStore) GetCategory(id int64) (*models.Category, error) {
	if c, ok := s.categories[id]; ok {
		copy := *c
		return &copy, nil
	}
	return nil, nil
}

func (s *stubTestStore) InsertSession(sess *models.Session) (*models.Session, error) {
	copy := *sess
	copy.ID = s.take()
	s.sessions[copy.ID] = &copy
	out := copy
	return &out, nil
}

func (s *stubTestStore) GetSession(id int64) (*models.Session, error) {
	if sess, ok := s.sessions[id]; ok {
		copy := *sess
		return &copy, nil
	}
	return nil, nil
}

func (s *stubTestStore) GetSessionByEmail(testID int64, email string) (*models.Session, error) {
	for _, sess := range s.sessions {
		if sess.TestID == testID && sess.Email == email {
			copy := *sess
			return &copy, nil
		}
	}
	return nil, nil
}

func (s *stubTestStore) ListSessions(testID int64) ([]*models.Session, error) {
	out := []*models.Session{}
	for _, sess := range s.sessions {
		if sess.TestID == testID {
			copy := *sess
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (s *stubTestStore) DeleteSession(id, testID int64) (bool, error) {
	sess, ok := s.sessions[id]
	if !ok || sess.TestID != testID {
		return false, nil
	}
	delete(s.sessions, id)
	return true, nil
}

func newTestService(store *stubTestStore, rec *stubRecorder) *TestService {
	svc := NewTestService(store, rec)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	svc.newToken = func() string { return "tok-fixed" }
	return svc
}

func TestCreateTestDefaultsLoopMedia(t *testing.T) {
	store := newStubTestStore()
	store.categories[7] = &models.Category{ID: 7, Name: "voices", MediaType: "audio"}
	rec := &stubRecorder{}
	svc := newTestService(store, rec)
	actor := Actor{Username: "alice"}

	created, err := svc.Create(actor, "March batch", "", 7, nil, nil)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.Status != models.TestStatusOpen {
		t.Fatalf("status = %q, want open", created.Status)
	}
	if !created.LoopMedia {
		t.Fatalf("loop_media should default to true")
	}
	if created.CreatedBy != "alice" {
		t.Fatalf("created_by = %q, want alice", created.CreatedBy)
	}
	if len(rec.calls) != 1 || rec.calls[0].action != ActionCreateTest {
		t.Fatalf("recorded actions = %v, want [create_test]", rec.actions())
	}

	off := false
	created, err = svc.Create(actor, "No loop", "", 7, &off, nil)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.LoopMedia {
		t.Fatalf("loop_media should honor explicit false")
	}
}

func TestCreateTestValidation(t *testing.T) {
	store := newStubTestStore()
	rec := &stubRecorder{}
	svc := newTestService(store, rec)
	actor := Actor{Username: "alice"}

	if _, err := svc.Create(actor, "  ", "", 1, nil, nil); CodeOf(err) != ErrorInvalid {
		t.Fatalf("blank name: got %v, want invalid", err)
	}
	if _, err := svc.Create(actor, "x", "", 99, nil, nil); CodeOf(err) != ErrorInvalid {
		t.Fatalf("missing category: got %v, want invalid", err)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("rejected creates must not be recorded, got %v", rec.actions())
	}
}

func TestCloseTestOwnership(t *testing.T) {
	store := newStubTestStore()
	store.tests[1] = &models.Test{ID: 1, Name: "t", CreatedBy: "alice", Status: models.TestStatusOpen}
	rec := &stubRecorder{}
	svc := newTestService(store, rec)

	if _, err := svc.Close(Actor{Username: "bob"}, 1, nil); CodeOf(err) != ErrorForbidden {
		t.Fatalf("non-owner close: got %v, want forbidden", err)
	}

	closed, err := svc.Close(Actor{Username: "alice"}, 1, nil)
	if err != nil {
		t.Fatalf("owner close returned error: %v", err)
	}
	if closed.Status != models.TestStatusClosed {
		t.Fatalf("status = %q, want closed", closed.Status)
	}

	if _, err := svc.Close(Actor{Username: "alice"}, 1, nil); CodeOf(err) != ErrorAlreadyClosed {
		t.Fatalf("second close: got %v, want already_closed", err)
	}
	if len(rec.calls) != 1 || rec.calls[0].action != ActionCloseTest {
		t.Fatalf("only the real transition is recorded, got %v", rec.actions())
	}

	store.tests[2] = &models.Test{ID: 2, Name: "t2", CreatedBy: "alice", Status: models.TestStatusOpen}
	if _, err := svc.Close(Actor{Username: "root", SuperAdmin: true}, 2, nil); err != nil {
		t.Fatalf("super admin close returned error: %v", err)
	}

	if _, err := svc.Close(Actor{Username: "alice"}, 42, nil); CodeOf(err) != ErrorNotFound {
		t.Fatalf("unknown test: got %v, want not_found", err)
	}
}

func TestGrantSession(t *testing.T) {
	store := newStubTestStore()
	store.tests[1] = &models.Test{ID: 1, Name: "t", CreatedBy: "alice", Status: models.TestStatusOpen}
	rec := &stubRecorder{}
	svc := newTestService(store, rec)
	actor := Actor{Username: "alice"}

	sess, err := svc.Grant(actor, 1, "p@example.com", nil)
	if err != nil {
		t.Fatalf("Grant returned error: %v", err)
	}
	if sess.Token != "tok-fixed" {
		t.Fatalf("token = %q, want injected token", sess.Token)
	}
	if sess.AccessedAt != nil || sess.CompletedAt != nil {
		t.Fatalf("fresh session must be untouched: %+v", sess)
	}

	if _, err := svc.Grant(actor, 1, "p@example.com", nil); CodeOf(err) != ErrorConflict {
		t.Fatalf("duplicate email: got %v, want conflict", err)
	}
	if _, err := svc.Grant(actor, 1, "", nil); CodeOf(err) != ErrorInvalid {
		t.Fatalf("blank email: got %v, want invalid", err)
	}

	store.tests[1].Status = models.TestStatusClosed
	if _, err := svc.Grant(actor, 1, "q@example.com", nil); CodeOf(err) != ErrorForbidden {
		t.Fatalf("grant on closed test: got %v, want forbidden", err)
	}
}

func TestRevokeSession(t *testing.T) {
	store := newStubTestStore()
	store.tests[1] = &models.Test{ID: 1, Name: "t", CreatedBy: "alice", Status: models.TestStatusOpen}
	done := time.Now()
	store.sessions[10] = &models.Session{ID: 10, TestID: 1, Email: "p@example.com"}
	store.sessions[11] = &models.Session{ID: 11, TestID: 1, Email: "done@example.com", CompletedAt: &done}
	rec := &stubRecorder{}
	svc := newTestService(store, rec)
	actor := Actor{Username: "alice"}

	if err := svc.Revoke(actor, 1, 11, nil); CodeOf(err) != ErrorForbidden {
		t.Fatalf("revoking a completed session: got %v, want forbidden", err)
	}
	if err := svc.Revoke(actor, 1, 99, nil); CodeOf(err) != ErrorNotFound {
		t.Fatalf("unknown session: got %v, want not_found", err)
	}
	if err := svc.Revoke(actor, 1, 10, nil); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	if _, ok := store.sessions[10]; ok {
		t.Fatalf("session should be deleted")
	}
	if len(rec.calls) != 1 || rec.calls[0].action != ActionDeleteTestUser {
		t.Fatalf("recorded actions = %v, want [delete_test_user]", rec.actions())
	}

	store.tests[1].Status = models.TestStatusClosed
	store.sessions[12] = &models.Session{ID: 12, TestID: 1, Email: "r@example.com"}
	if err := svc.Revoke(actor, 1, 12, nil); CodeOf(err) != ErrorForbidden {
		t.Fatalf("revoke on closed test: got %v, want forbidden", err)
	}
}

func TestDeleteTestCascades(t *testing.T) {
	store := newStubTestStore()
	store.tests[1] = &models.Test{ID: 1, Name: "t", CreatedBy: "alice", Status: models.TestStatusOpen}
	store.sessions[10] = &models.Session{ID: 10, TestID: 1, Email: "p@example.com"}
	rec := &stubRecorder{}
	svc := newTestService(store, rec)

	if err := svc.Delete(Actor{Username: "bob"}, 1, nil); CodeOf(err) != ErrorForbidden {
		t.Fatalf("non-owner delete: got %v, want forbidden", err)
	}
	if err := svc.Delete(Actor{Username: "alice"}, 1, nil); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if len(store.sessions) != 0 {
		t.Fatalf("sessions should cascade away, %d left", len(store.sessions))
	}
	if err := svc.Delete(Actor{Username: "alice"}, 1, nil); CodeOf(err) != ErrorNotFound {
		t.Fatalf("second delete: got %v, want not_found", err)
	}
}
