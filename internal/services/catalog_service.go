package services

import (
	"strings"
	"time"

	"github.com/mediarank/mediarank/internal/models"
)

var validMediaTypes = map[string]bool{
	"audio": true,
	"video": true,
	"image": true,
	"text":  true,
}

// CatalogStore abstracts the category and media-catalog rows the
// lifecycle engine consumes. Media bytes live in the excluded storage
// subsystem; only catalog metadata is managed here.
type CatalogStore interface {
	InsertCategory(c *models.Category) (*models.Category, error)
	GetCategoryByName(name string) (*models.Category, error)
	GetCategory(id int64) (*models.Category, error)
	ListCategories() ([]*models.Category, error)
	DeleteCategory(id int64) (bool, error)

	ListMedia() ([]*models.MediaFileWithCategories, error)
	GetMediaFile(id int64) (*models.MediaFile, error)
	SetMediaCategories(mediaFileID int64, categoryIDs []int64) error
	MediaForTest(testID int64) ([]*models.MediaFile, error)
}

type CatalogService struct {
	store    CatalogStore
	activity ActivityRecorder
	now      func() time.Time
}

func NewCatalogService(store CatalogStore, activity ActivityRecorder) *CatalogService {
	return &CatalogService{
		store:    store,
		activity: activity,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *CatalogService) CreateCategory(actor Actor, name, mediaType string, meta *RequestMeta) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewInvalidError("category name required")
	}
	if !validMediaTypes[mediaType] {
		return nil, NewInvalidError("media_type must be one of audio, video, image, text")
	}
	existing, err := s.store.GetCategoryByName(name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewConflictError("category name already exists")
	}
	created, err := s.store.InsertCategory(&models.Category{
		Name:      name,
		MediaType: mediaType,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.activity.Record(ActionCreateCategory, &actor, "", EntityCategory, created.ID, CreateCategoryDetails{
		Name:      created.Name,
		MediaType: created.MediaType,
	}, meta)
	return created, nil
}

func (s *CatalogService) ListCategories() ([]*models.Category, error) {
	return s.store.ListCategories()
}

func (s *CatalogService) DeleteCategory(actor Actor, id int64, meta *RequestMeta) error {
	cat, err := s.store.GetCategory(id)
	if err != nil {
		return err
	}
	if cat == nil {
		return NewNotFoundError("category not found")
	}
	ok, err := s.store.DeleteCategory(id)
	if err != nil {
		return err
	}
	if !ok {
		return NewNotFoundError("category not found")
	}
	s.activity.Record(ActionDeleteCategory, &actor, "", EntityCategory, id, DeleteCategoryDetails{
		Name: cat.Name,
	}, meta)
	return nil
}

func (s *CatalogService) ListMedia() ([]*models.MediaFileWithCategories, error) {
	return s.store.ListMedia()
}

// UpdateMediaCategories replaces a media file's category assignment.
func (s *CatalogService) UpdateMediaCategories(actor Actor, mediaFileID int64, categoryIDs []int64, meta *RequestMeta) error {
	mf, err := s.store.GetMediaFile(mediaFileID)
	if err != nil {
		return err
	}
	if mf == nil {
		return NewNotFoundError("media file not found")
	}
	for _, cid := range categoryIDs {
		cat, err := s.store.GetCategory(cid)
		if err != nil {
			return err
		}
		if cat == nil {
			return NewInvalidError("category does not exist")
		}
	}
	if err := s.store.SetMediaCategories(mediaFileID, categoryIDs); err != nil {
		return err
	}
	s.activity.Record(ActionUpdateMediaCategories, &actor, "", EntityMedia, mediaFileID, UpdateMediaCategoriesDetails{
		MediaFileID: mediaFileID,
		CategoryIDs: categoryIDs,
	}, meta)
	return nil
}

// MediaForTest lists the media files a test's category set currently
// resolves to; the respondent UI rates exactly these.
func (s *CatalogService) MediaForTest(testID int64) ([]*models.MediaFile, error) {
	return s.store.MediaForTest(testID)
}
