package types

import "time"

// Profile holds the optional professional metadata owned by a single user.
// Text fields are nullable: an upsert that omits a field stores NULL.
type Profile struct {
	// ID is the unique identifier of the profile.
	ID int `json:"id" db:"id"`

	// UserID references the owning user. At most one profile exists per user.
	UserID int `json:"user_id" db:"user_id"`

	Address            *string `json:"address" db:"address"`
	Profession         *string `json:"profession" db:"profession"`
	AboutMe            *string `json:"about_me" db:"about_me"`
	Skills             *string `json:"skills" db:"skills"`
	LinkedInProfileURL *string `json:"linkedin_profile_url" db:"linkedin_profile_url"`
	TwitterProfileURL  *string `json:"twitter_profile_url" db:"twitter_profile_url"`

	// Image references. Filepath is the path the frontend fetches the asset
	// from, e.g. "eRepo/profile_photo-<hex>.png".
	ProfilePhotoFilename *string `json:"profile_photo_filename" db:"profile_photo_filename"`
	ProfilePhotoFilepath *string `json:"profile_photo_filepath" db:"profile_photo_filepath"`
	CoverPhotoFilename   *string `json:"cover_photo_filename" db:"cover_photo_filename"`
	CoverPhotoFilepath   *string `json:"cover_photo_filepath" db:"cover_photo_filepath"`

	// Audit emails. Updates are only allowed for the creating email.
	CreatedByEmail string `json:"created_by_email" db:"created_by_email"`
	UpdatedByEmail string `json:"updated_by_email" db:"updated_by_email"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProfileFields are the text fields replaced wholesale by an upsert.
type ProfileFields struct {
	Address            *string
	Profession         *string
	AboutMe            *string
	Skills             *string
	LinkedInProfileURL *string
	TwitterProfileURL  *string
}

// Apply overwrites every text field of p with the values in f, including
// nil values.
func (f ProfileFields) Apply(p *Profile) {
	p.Address = f.Address
	p.Profession = f.Profession
	p.AboutMe = f.AboutMe
	p.Skills = f.Skills
	p.LinkedInProfileURL = f.LinkedInProfileURL
	p.TwitterProfileURL = f.TwitterProfileURL
}
