package models

import "time"

// Test status values. A test transitions open -> closed exactly once.
const (
	TestStatusOpen   = "open"
	TestStatusClosed = "closed"
)

// Admin is an administrator account. The password hash never serializes.
type Admin struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"-"`
	SuperAdmin   bool      `json:"is_super_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// Category groups media files by kind (audio, video, image, text).
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	MediaType string    `json:"media_type"`
	CreatedAt time.Time `json:"created_at"`
}

// MediaFile is a rateable media item. Binary storage and serving are
// owned by the media subsystem; this is the catalog row the rating
// engine references.
type MediaFile struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	FilePath   string    `json:"file_path"`
	MediaType  string    `json:"media_type"`
	MimeType   string    `json:"mime_type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// MediaFileWithCategories pairs a media file with its category set.
type MediaFileWithCategories struct {
	MediaFile
	Categories []*Category `json:"categories"`
}

// Test is a named bundle of media drawn from categories, rated by
// invited respondents.
type Test struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	Status      string    `json:"status"`
	LoopMedia   bool      `json:"loop_media"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session is one respondent's single-use grant of access to a test.
// CompletedAt set implies AccessedAt set; once CompletedAt is set the
// session is permanently terminal.
type Session struct {
	ID          int64      `json:"id"`
	TestID      int64      `json:"test_id"`
	Email       string     `json:"email"`
	Token       string     `json:"one_time_token"`
	AccessedAt  *time.Time `json:"accessed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Rating is one respondent's stars+comment for one media file. At most
// one row exists per (session, media file); later submissions overwrite
// in place and advance RatedAt.
type Rating struct {
	ID          int64     `json:"id"`
	SessionID   int64     `json:"session_id"`
	MediaFileID int64     `json:"media_file_id"`
	Stars       float64   `json:"stars"`
	Comment     *string   `json:"comment"`
	RatedAt     time.Time `json:"rated_at"`
}

// ActivityEntry is one append-only audit record. It references its
// subject by bare id so it survives deletion of the subject.
type ActivityEntry struct {
	ID              int64     `json:"id"`
	AdminUsername   string    `json:"admin_username,omitempty"`
	RespondentEmail string    `json:"respondent_email,omitempty"`
	Action          string    `json:"action"`
	EntityType      string    `json:"entity_type,omitempty"`
	EntityID        int64     `json:"entity_id,omitempty"`
	Details         string    `json:"details,omitempty"`
	IPAddress       string    `json:"ip_address,omitempty"`
	UserAgent       string    `json:"user_agent,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}
