package services

import (
	"math"
	"time"

	"github.com/mediarank/mediarank/internal/models"
)

// RatingStore abstracts rating persistence. UpsertRating must be a
// single conflict-aware statement keyed on (session, media file):
// rapid successive writes for the same item must each fully apply with
// the last one winning, which a read-then-write sequence cannot
// guarantee.
type RatingStore interface {
	MediaInTest(testID, mediaFileID int64) (bool, error)
	UpsertRating(r *models.Rating) (*models.Rating, error)
	ListRatingsBySession(sessionID int64) ([]*models.Rating, error)
}

// RatingService is the write path of a live session.
type RatingService struct {
	gate     TokenResolver
	store    RatingStore
	activity ActivityRecorder
	now      func() time.Time
}

func NewRatingService(gate TokenResolver, store RatingStore, activity ActivityRecorder) *RatingService {
	return &RatingService{
		gate:     gate,
		store:    store,
		activity: activity,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Submit upserts the respondent's rating for one media file. Gate
// errors propagate unchanged. Every call is logged, overwrites
// included; the audit trail reconstructs respondent behavior over
// time, not just final state.
func (s *RatingService) Submit(token string, mediaFileID int64, stars float64, comment *string, meta *RequestMeta) (*models.Rating, error) {
	ctx, err := s.gate.Resolve(token, meta)
	if err != nil {
		return nil, err
	}
	if err := validateStars(stars); err != nil {
		return nil, err
	}
	ok, err := s.store.MediaInTest(ctx.TestID, mediaFileID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewInvalidError("media file is not part of this test")
	}
	rating, err := s.store.UpsertRating(&models.Rating{
		SessionID:   ctx.SessionID,
		MediaFileID: mediaFileID,
		Stars:       stars,
		Comment:     comment,
		RatedAt:     s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.activity.Record(ActionSubmitRating, nil, ctx.Email, EntityRating, rating.ID, SubmitRatingDetails{
		TestID:      ctx.TestID,
		MediaFileID: mediaFileID,
		Stars:       stars,
		HasComment:  comment != nil,
	}, meta)
	return rating, nil
}

// ListForToken returns the respondent's own ratings, gate-checked so a
// completed session reports gone rather than leaking data.
func (s *RatingService) ListForToken(token string, meta *RequestMeta) ([]*models.Rating, error) {
	ctx, err := s.gate.Resolve(token, meta)
	if err != nil {
		return nil, err
	}
	return s.store.ListRatingsBySession(ctx.SessionID)
}

// validateStars accepts values in [0, 5] at 0.5 granularity.
func validateStars(stars float64) error {
	if stars < 0 || stars > 5 {
		return NewInvalidError("stars must be between 0 and 5")
	}
	doubled := stars * 2
	if math.Abs(doubled-math.Round(doubled)) > 1e-9 {
		return NewInvalidError("stars must be in 0.5 increments")
	}
	return nil
}
