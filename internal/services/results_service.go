package services

import "github.com/mediarank/mediarank/internal/models"

// ResultsStore is the read-only fan-in over ratings used for admin
// review. Aggregates are always recomputed from current rows; ratings
// mutate in place, so any cache would silently misreport respondent
// intent.
type ResultsStore interface {
	GetTest(id int64) (*models.Test, error)
	// AggregateRatings returns per-media mean and count over all
	// sessions of the test. Media files without ratings are omitted.
	AggregateRatings(testID int64) ([]*MediaAggregate, error)
	ListTestRatings(testID int64) ([]*IndividualRating, error)
}

type MediaAggregate struct {
	MediaFile   models.MediaFile `json:"media_file"`
	MeanStars   float64          `json:"average_stars"`
	RatingCount int64            `json:"total_ratings"`
}

type IndividualRating struct {
	Rating    models.Rating    `json:"rating"`
	Email     string           `json:"user_email"`
	MediaFile models.MediaFile `json:"media_file"`
}

type TestResults struct {
	Test       *models.Test        `json:"test"`
	Aggregated []*MediaAggregate   `json:"aggregated"`
	Individual []*IndividualRating `json:"individual"`
}

type ResultsService struct {
	store ResultsStore
}

func NewResultsService(store ResultsStore) *ResultsService {
	return &ResultsService{store: store}
}

// Results assembles the admin review view for one test. Closed tests
// stay readable.
func (s *ResultsService) Results(testID int64) (*TestResults, error) {
	t, err := s.store.GetTest(testID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, NewNotFoundError("test not found")
	}
	agg, err := s.store.AggregateRatings(testID)
	if err != nil {
		return nil, err
	}
	individual, err := s.store.ListTestRatings(testID)
	if err != nil {
		return nil, err
	}
	return &TestResults{Test: t, Aggregated: agg, Individual: individual}, nil
}
