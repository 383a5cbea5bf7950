package learner

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Profile is the long-lived learner record. Level and Data are written by independent jobs
// and must be updated column-by-column, never as a whole row.
type Profile struct {
	UserID    string         `gorm:"type:text;primaryKey" json:"user_id"`
	Level     *string        `gorm:"type:text" json:"level"`
	Data      datatypes.JSON `gorm:"column:profile_data;not null" json:"profile_data"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Profile) TableName() string { return "user_profiles" }

type Example struct {
	Wrong   string `json:"wrong"`
	Correct string `json:"correct"`
}

type WeakPoint struct {
	Pattern  string    `json:"pattern"`
	Examples []Example `json:"examples"`
}

type QuickReviewItem struct {
	Chinese string `json:"chinese"`
	English string `json:"english"`
}

// ProfileData is the typed view of Profile.Data.
type ProfileData struct {
	PersonalFacts []string               `json:"personal_facts"`
	WeakPoints    map[string][]WeakPoint `json:"weak_points"`
	CommonErrors  []string               `json:"common_errors"`
	ProgressNotes string                 `json:"progress_notes"`
	QuickReview   []QuickReviewItem      `json:"quick_review"`
}

// Weak-point dimensions tracked on the profile. Vocabulary is reviewed but not tracked.
var WeakPointDimensions = []string{"grammar", "naturalness", "sentence_structure"}

func DefaultProfileData() ProfileData {
	wp := make(map[string][]WeakPoint, len(WeakPointDimensions))
	for _, d := range WeakPointDimensions {
		wp[d] = []WeakPoint{}
	}
	return ProfileData{
		PersonalFacts: []string{},
		WeakPoints:    wp,
		CommonErrors:  []string{},
		QuickReview:   []QuickReviewItem{},
	}
}

// DecodeData tolerates empty or malformed payloads by falling back to defaults for
// missing pieces.
func DecodeData(raw []byte) ProfileData {
	d := DefaultProfileData()
	if len(raw) == 0 {
		return d
	}
	_ = json.Unmarshal(raw, &d)
	if d.WeakPoints == nil {
		d.WeakPoints = DefaultProfileData().WeakPoints
	}
	if d.PersonalFacts == nil {
		d.PersonalFacts = []string{}
	}
	if d.CommonErrors == nil {
		d.CommonErrors = []string{}
	}
	if d.QuickReview == nil {
		d.QuickReview = []QuickReviewItem{}
	}
	return d
}

func (d ProfileData) Encode() (datatypes.JSON, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// NeedsReview is true once any weak-point pattern has collected three or more examples.
func (d ProfileData) NeedsReview() bool {
	for _, patterns := range d.WeakPoints {
		for _, p := range patterns {
			if len(p.Examples) >= 3 {
				return true
			}
		}
	}
	return false
}
