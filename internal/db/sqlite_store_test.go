package db

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mediarank/mediarank/internal/models"
	"github.com/mediarank/mediarank/internal/services"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	sqlDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// A pooled second connection would see a different empty in-memory
	// database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := RunMigrations(sqlDB, ""); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	store, err := NewSQLiteStore(sqlDB)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func seedCategoryWithMedia(t *testing.T, store *SQLiteStore) (*models.Category, *models.MediaFile) {
	t.Helper()
	cat, err := store.InsertCategory(&models.Category{
		Name:      "clips",
		MediaType: "audio",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("insert category: %v", err)
	}
	mf, err := store.InsertMediaFile(&models.MediaFile{
		Filename:   "a.wav",
		FilePath:   "/data/a.wav",
		MediaType:  "audio",
		MimeType:   "audio/wav",
		UploadedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("insert media: %v", err)
	}
	if err := store.SetMediaCategories(mf.ID, []int64{cat.ID}); err != nil {
		t.Fatalf("assign category: %v", err)
	}
	return cat, mf
}

func seedTest(t *testing.T, store *SQLiteStore, categoryID int64) *models.Test {
	t.Helper()
	created, err := store.InsertTest(&models.Test{
		Name:      "listening test",
		CreatedBy: "alice",
		Status:    models.TestStatusOpen,
		LoopMedia: true,
		CreatedAt: time.Now().UTC(),
	}, categoryID)
	if err != nil {
		t.Fatalf("insert test: %v", err)
	}
	return created
}

func seedSession(t *testing.T, store *SQLiteStore, testID int64, email, token string) *models.Session {
	t.Helper()
	sess, err := store.InsertSession(&models.Session{TestID: testID, Email: email, Token: token})
	if err != nil {
		t.Fatalf("insert session: %v", err)
	}
	return sess
}

func TestUpsertRatingOverwritesInPlace(t *testing.T) {
	store := newTestStore(t)
	cat, mf := seedCategoryWithMedia(t, store)
	test := seedTest(t, store, cat.ID)
	sess := seedSession(t, store, test.ID, "p@example.com", "tok-1")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	good := "good"
	first, err := store.UpsertRating(&models.Rating{
		SessionID: sess.ID, MediaFileID: mf.ID, Stars: 4.0, Comment: &good, RatedAt: base,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	second, err := store.UpsertRating(&models.Rating{
		SessionID: sess.ID, MediaFileID: mf.ID, Stars: 4.5, RatedAt: base.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("overwrite must reuse the row: ids %d vs %d", first.ID, second.ID)
	}
	if second.Stars != 4.5 {
		t.Fatalf("stars = %v, want 4.5", second.Stars)
	}
	if second.Comment != nil {
		t.Fatalf("comment should be cleared, got %q", *second.Comment)
	}
	if !second.RatedAt.After(first.RatedAt) {
		t.Fatalf("rated_at must advance: %v vs %v", second.RatedAt, first.RatedAt)
	}

	ratings, err := store.ListRatingsBySession(sess.ID)
	if err != nil {
		t.Fatalf("list ratings: %v", err)
	}
	if len(ratings) != 1 {
		t.Fatalf("rows = %d, want 1", len(ratings))
	}
}

func TestMarkCompletedAtMostOnce(t *testing.T) {
	store := newTestStore(t)
	cat, _ := seedCategoryWithMedia(t, store)
	test := seedTest(t, store, cat.ID)
	sess := seedSession(t, store, test.ID, "p@example.com", "tok-1")

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ok, err := store.MarkCompleted(sess.ID, now)
	if err != nil || !ok {
		t.Fatalf("first completion: ok=%v err=%v", ok, err)
	}
	ok, err = store.MarkCompleted(sess.ID, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second completion: %v", err)
	}
	if ok {
		t.Fatalf("second completion must lose")
	}
	got, err := store.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(now) {
		t.Fatalf("completed_at = %v, want first timestamp %v", got.CompletedAt, now)
	}
}

func TestMarkAccessedFirstTouchOnly(t *testing.T) {
	store := newTestStore(t)
	cat, _ := seedCategoryWithMedia(t, store)
	test := seedTest(t, store, cat.ID)
	sess := seedSession(t, store, test.ID, "p@example.com", "tok-1")

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if ok, err := store.MarkAccessed(sess.ID, now); err != nil || !ok {
		t.Fatalf("first access: ok=%v err=%v", ok, err)
	}
	if ok, err := store.MarkAccessed(sess.ID, now.Add(time.Hour)); err != nil || ok {
		t.Fatalf("repeat access: ok=%v err=%v", ok, err)
	}
}

func TestCloseTestConditional(t *testing.T) {
	store := newTestStore(t)
	cat, _ := seedCategoryWithMedia(t, store)
	test := seedTest(t, store, cat.ID)

	if ok, err := store.CloseTest(test.ID); err != nil || !ok {
		t.Fatalf("close: ok=%v err=%v", ok, err)
	}
	if ok, err := store.CloseTest(test.ID); err != nil || ok {
		t.Fatalf("repeat close must report no transition: ok=%v err=%v", ok, err)
	}
	got, err := store.GetTest(test.ID)
	if err != nil {
		t.Fatalf("get test: %v", err)
	}
	if got.Status != models.TestStatusClosed {
		t.Fatalf("status = %q, want closed", got.Status)
	}
}

func TestDeleteTestCascadesToSessionsAndRatings(t *testing.T) {
	store := newTestStore(t)
	cat, mf := seedCategoryWithMedia(t, store)
	test := seedTest(t, store, cat.ID)
	sess := seedSession(t, store, test.ID, "p@example.com", "tok-1")
	if _, err := store.UpsertRating(&models.Rating{
		SessionID: sess.ID, MediaFileID: mf.ID, Stars: 3.0, RatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	ok, err := store.DeleteTest(test.ID)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if got, _ := store.GetSession(sess.ID); got != nil {
		t.Fatalf("session survived the cascade: %+v", got)
	}
	ratings, err := store.ListRatingsBySession(sess.ID)
	if err != nil {
		t.Fatalf("list ratings: %v", err)
	}
	if len(ratings) != 0 {
		t.Fatalf("ratings survived the cascade: %d", len(ratings))
	}
}

func TestInsertSessionDuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	cat, _ := seedCategoryWithMedia(t, store)
	test := seedTest(t, store, cat.ID)
	seedSession(t, store, test.ID, "p@example.com", "tok-1")

	_, err := store.InsertSession(&models.Session{TestID: test.ID, Email: "p@example.com", Token: "tok-2"})
	if services.CodeOf(err) != services.ErrorConflict {
		t.Fatalf("duplicate invite: got %v, want conflict", err)
	}
}

func TestMediaInTestMembership(t *testing.T) {
	store := newTestStore(t)
	cat, mf := seedCategoryWithMedia(t, store)
	test := seedTest(t, store, cat.ID)

	stray, err := store.InsertMediaFile(&models.MediaFile{
		Filename: "b.wav", FilePath: "/data/b.wav", MediaType: "audio",
		MimeType: "audio/wav", UploadedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("insert media: %v", err)
	}

	if ok, err := store.MediaInTest(test.ID, mf.ID); err != nil || !ok {
		t.Fatalf("member media: ok=%v err=%v", ok, err)
	}
	if ok, err := store.MediaInTest(test.ID, stray.ID); err != nil || ok {
		t.Fatalf("uncategorized media must not be a member: ok=%v err=%v", ok, err)
	}

	media, err := store.MediaForTest(test.ID)
	if err != nil {
		t.Fatalf("media for test: %v", err)
	}
	if len(media) != 1 || media[0].ID != mf.ID {
		t.Fatalf("media for test = %+v, want just %d", media, mf.ID)
	}
}

func TestAggregateRatings(t *testing.T) {
	store := newTestStore(t)
	cat, mf := seedCategoryWithMedia(t, store)
	unrated, err := store.InsertMediaFile(&models.MediaFile{
		Filename: "b.wav", FilePath: "/data/b.wav", MediaType: "audio",
		MimeType: "audio/wav", UploadedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("insert media: %v", err)
	}
	if err := store.SetMediaCategories(unrated.ID, []int64{cat.ID}); err != nil {
		t.Fatalf("assign category: %v", err)
	}
	test := seedTest(t, store, cat.ID)
	s1 := seedSession(t, store, test.ID, "a@example.com", "tok-1")
	s2 := seedSession(t, store, test.ID, "b@example.com", "tok-2")

	now := time.Now().UTC()
	for _, r := range []*models.Rating{
		{SessionID: s1.ID, MediaFileID: mf.ID, Stars: 3.0, RatedAt: now},
		{SessionID: s2.ID, MediaFileID: mf.ID, Stars: 4.5, RatedAt: now},
	} {
		if _, err := store.UpsertRating(r); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	agg, err := store.AggregateRatings(test.ID)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(agg) != 1 {
		t.Fatalf("aggregates = %d, want 1 (unrated media omitted)", len(agg))
	}
	if agg[0].MediaFile.ID != mf.ID {
		t.Fatalf("aggregate media = %d, want %d", agg[0].MediaFile.ID, mf.ID)
	}
	if agg[0].MeanStars != 3.75 || agg[0].RatingCount != 2 {
		t.Fatalf("mean=%v count=%d, want 3.75/2", agg[0].MeanStars, agg[0].RatingCount)
	}

	individual, err := store.ListTestRatings(test.ID)
	if err != nil {
		t.Fatalf("individual: %v", err)
	}
	if len(individual) != 2 {
		t.Fatalf("individual rows = %d, want 2", len(individual))
	}
}

func TestListActivityFilters(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	entries := []*models.ActivityEntry{
		{AdminUsername: "alice", Action: "create_test", EntityType: "test", EntityID: 1, Timestamp: base},
		{AdminUsername: "alice", Action: "close_test", EntityType: "test", EntityID: 1, Timestamp: base.Add(1 * time.Hour)},
		{RespondentEmail: "p@example.com", Action: "submit_rating", EntityType: "rating", EntityID: 9, Timestamp: base.Add(2 * time.Hour)},
		{AdminUsername: "bob", Action: "create_test", EntityType: "test", EntityID: 2, Timestamp: base.Add(3 * time.Hour)},
	}
	for _, e := range entries {
		if err := store.InsertActivity(e); err != nil {
			t.Fatalf("insert activity: %v", err)
		}
	}

	got, total, err := store.ListActivity(services.ActivityFilter{AdminUsername: "alice"}, 50, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(got) != 2 {
		t.Fatalf("alice: total=%d rows=%d, want 2/2", total, len(got))
	}
	if got[0].Action != "close_test" {
		t.Fatalf("newest first: got %q", got[0].Action)
	}

	got, total, err = store.ListActivity(services.ActivityFilter{RespondentEmail: "p@example.com"}, 50, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || got[0].Action != "submit_rating" {
		t.Fatalf("respondent filter: total=%d first=%+v", total, got[0])
	}

	// [from, to): the lower bound is included, the upper excluded.
	from := base.Add(1 * time.Hour)
	to := base.Add(3 * time.Hour)
	got, total, err = store.ListActivity(services.ActivityFilter{From: &from, To: &to}, 50, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 {
		t.Fatalf("range total = %d, want 2", total)
	}
	for _, e := range got {
		if e.Timestamp.Before(from) || !e.Timestamp.Before(to) {
			t.Fatalf("entry %q at %v escapes [%v, %v)", e.Action, e.Timestamp, from, to)
		}
	}

	got, total, err = store.ListActivity(services.ActivityFilter{}, 2, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 4 {
		t.Fatalf("paging total = %d, want the whole filtered set", total)
	}
	if len(got) != 2 {
		t.Fatalf("page rows = %d, want 2", len(got))
	}
}

func TestActivitySurvivesSubjectDeletion(t *testing.T) {
	store := newTestStore(t)
	cat, _ := seedCategoryWithMedia(t, store)
	test := seedTest(t, store, cat.ID)

	if err := store.InsertActivity(&models.ActivityEntry{
		AdminUsername: "alice", Action: "create_test", EntityType: "test",
		EntityID: test.ID, Timestamp: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("insert activity: %v", err)
	}
	if _, err := store.DeleteTest(test.ID); err != nil {
		t.Fatalf("delete test: %v", err)
	}

	_, total, err := store.ListActivity(services.ActivityFilter{EntityType: "test"}, 50, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 {
		t.Fatalf("audit entry lost with its subject: total=%d", total)
	}
}

func TestFindAdminRoundTrip(t *testing.T) {
	store := newTestStore(t)
	if err := store.UpsertAdmin("alice", []byte("hash-1"), true); err != nil {
		t.Fatalf("upsert admin: %v", err)
	}
	// Second upsert replaces the credential in place.
	if err := store.UpsertAdmin("alice", []byte("hash-2"), false); err != nil {
		t.Fatalf("re-upsert admin: %v", err)
	}
	admin, err := store.FindAdminByUsername("alice")
	if err != nil {
		t.Fatalf("find admin: %v", err)
	}
	if admin == nil || string(admin.PasswordHash) != "hash-2" || admin.SuperAdmin {
		t.Fatalf("unexpected admin: %+v", admin)
	}
	missing, err := store.FindAdminByUsername("nobody")
	if err != nil {
		t.Fatalf("find missing admin: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown admin")
	}
}
