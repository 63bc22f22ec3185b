package services

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/mediarank/mediarank/internal/models"
)

// Closed action vocabulary for the activity log. Log consumers key the
// shape of the details payload off these tags.
const (
	ActionLogin                 = "login"
	ActionCreateTest            = "create_test"
	ActionCloseTest             = "close_test"
	ActionDeleteTest            = "delete_test"
	ActionAddTestUser           = "add_test_user"
	ActionDeleteTestUser        = "delete_test_user"
	ActionAccessTest            = "access_test"
	ActionSubmitRating          = "submit_rating"
	ActionCompleteTest          = "complete_test"
	ActionCreateCategory        = "create_category"
	ActionDeleteCategory        = "delete_category"
	ActionUpdateMediaCategories = "update_media_categories"
)

// Entity type tags recorded alongside actions.
const (
	EntityTest     = "test"
	EntityTestUser = "test_user"
	EntityRating   = "rating"
	EntityCategory = "category"
	EntityMedia    = "media"
	EntityAdmin    = "admin"
)

// Details payloads, one closed shape per action tag. They serialize to
// the opaque details column; never reuse a shape across actions.
type (
	CreateTestDetails struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		CategoryID  int64  `json:"category_id"`
		LoopMedia   bool   `json:"loop_media"`
	}

	CloseTestDetails struct {
		Name string `json:"name"`
	}

	DeleteTestDetails struct {
		Name      string `json:"name"`
		CreatedBy string `json:"created_by,omitempty"`
	}

	AddTestUserDetails struct {
		TestID int64  `json:"test_id"`
		Email  string `json:"email"`
	}

	DeleteTestUserDetails struct {
		TestID int64  `json:"test_id"`
		Email  string `json:"email"`
	}

	AccessTestDetails struct {
		SessionID int64 `json:"test_user_id"`
	}

	SubmitRatingDetails struct {
		TestID      int64   `json:"test_id"`
		MediaFileID int64   `json:"media_file_id"`
		Stars       float64 `json:"stars"`
		HasComment  bool    `json:"has_comment"`
	}

	CompleteTestDetails struct {
		SessionID int64 `json:"test_user_id"`
	}

	CreateCategoryDetails struct {
		Name      string `json:"name"`
		MediaType string `json:"media_type"`
	}

	DeleteCategoryDetails struct {
		Name string `json:"name"`
	}

	UpdateMediaCategoriesDetails struct {
		MediaFileID int64   `json:"media_file_id"`
		CategoryIDs []int64 `json:"category_ids"`
	}
)

// Actor identifies the authenticated admin performing a state-changing
// call. Ownership checks receive it explicitly; there is no ambient
// current-admin state.
type Actor struct {
	Username   string
	SuperAdmin bool
}

// RequestMeta is optional network/agent metadata captured at the
// transport boundary and threaded into audit records.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// ActivityRecorder is the write-append sink every other service invokes
// on every state change. Implementations must never fail the primary
// operation they accompany.
type ActivityRecorder interface {
	Record(action string, actor *Actor, respondentEmail, entityType string, entityID int64, details any, meta *RequestMeta)
}

type ActivityStore interface {
	InsertActivity(e *models.ActivityEntry) error
	ListActivity(f ActivityFilter, limit, offset int) ([]*models.ActivityEntry, int, error)
}

// ActivityFilter narrows Query results; fields combine with AND. The
// time range is inclusive-exclusive [From, To).
type ActivityFilter struct {
	AdminUsername   string
	RespondentEmail string
	Action          string
	EntityType      string
	From            *time.Time
	To              *time.Time
}

type ActivityPage struct {
	Entries []*models.ActivityEntry `json:"logs"`
	Total   int                     `json:"total"`
	Limit   int                     `json:"limit"`
	Offset  int                     `json:"offset"`
}

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

type ActivityService struct {
	store  ActivityStore
	logger *zap.Logger
	now    func() time.Time
}

func NewActivityService(store ActivityStore, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Record appends one audit entry. It is fire-and-forget: storage or
// serialization failures degrade to operational telemetry so that an
// unavailable audit trail cannot block the operation being logged.
func (s *ActivityService) Record(action string, actor *Actor, respondentEmail, entityType string, entityID int64, details any, meta *RequestMeta) {
	entry := &models.ActivityEntry{
		RespondentEmail: respondentEmail,
		Action:          action,
		EntityType:      entityType,
		EntityID:        entityID,
		Timestamp:       s.now(),
	}
	if actor != nil {
		entry.AdminUsername = actor.Username
	}
	if meta != nil {
		entry.IPAddress = meta.IP
		entry.UserAgent = meta.UserAgent
	}
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			s.logger.Warn("activity details marshal failed",
				zap.String("action", action), zap.Error(err))
		} else {
			entry.Details = string(b)
		}
	}
	if err := s.store.InsertActivity(entry); err != nil {
		s.logger.Warn("activity append failed",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.Int64("entity_id", entityID),
			zap.Error(err))
	}
}

// Query returns a filtered, newest-first page of the audit trail.
// Total reflects the whole filtered set, not the page.
func (s *ActivityService) Query(f ActivityFilter, limit, offset int) (*ActivityPage, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	if offset < 0 {
		offset = 0
	}
	entries, total, err := s.store.ListActivity(f, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ActivityPage{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

var _ ActivityRecorder = (*ActivityService)(nil)
