package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mouldconnect/apiserver/types"
)

const profileColumns = `id, user_id, address, profession, about_me, skills,
		linkedin_profile_url, twitter_profile_url,
		profile_photo_filename, profile_photo_filepath, cover_photo_filename, cover_photo_filepath,
		created_by_email, updated_by_email, created_at, updated_at`

// ProfileRepository handles persistence for profiles.
type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetByUserID(ctx context.Context, userID int) (types.Profile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE user_id = $1`
	var p types.Profile
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&p.ID,
		&p.UserID,
		&p.Address,
		&p.Profession,
		&p.AboutMe,
		&p.Skills,
		&p.LinkedInProfileURL,
		&p.TwitterProfileURL,
		&p.ProfilePhotoFilename,
		&p.ProfilePhotoFilepath,
		&p.CoverPhotoFilename,
		&p.CoverPhotoFilepath,
		&p.CreatedByEmail,
		&p.UpdatedByEmail,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Profile{}, ErrNotFound
		}
		return types.Profile{}, fmt.Errorf("get profile for user %d: %w", userID, err)
	}
	return p, nil
}

func (r *ProfileRepository) Create(ctx context.Context, p types.Profile) (types.Profile, error) {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	const query = `
		INSERT INTO profiles (user_id, address, profession, about_me, skills,
			linkedin_profile_url, twitter_profile_url,
			profile_photo_filename, profile_photo_filepath, cover_photo_filename, cover_photo_filepath,
			created_by_email, updated_by_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		p.UserID,
		p.Address,
		p.Profession,
		p.AboutMe,
		p.Skills,
		p.LinkedInProfileURL,
		p.TwitterProfileURL,
		p.ProfilePhotoFilename,
		p.ProfilePhotoFilepath,
		p.CoverPhotoFilename,
		p.CoverPhotoFilepath,
		p.CreatedByEmail,
		p.UpdatedByEmail,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&p.ID); err != nil {
		return types.Profile{}, translate(err)
	}
	return p, nil
}

// Update replaces every mutable column of the profile identified by p.ID.
func (r *ProfileRepository) Update(ctx context.Context, p types.Profile) (types.Profile, error) {
	p.UpdatedAt = time.Now()

	const query = `
		UPDATE profiles
		SET address = $1,
			profession = $2,
			about_me = $3,
			skills = $4,
			linkedin_profile_url = $5,
			twitter_profile_url = $6,
			profile_photo_filename = $7,
			profile_photo_filepath = $8,
			cover_photo_filename = $9,
			cover_photo_filepath = $10,
			updated_by_email = $11,
			updated_at = $12
		WHERE id = $13`
	result, err := r.db.ExecContext(
		ctx,
		query,
		p.Address,
		p.Profession,
		p.AboutMe,
		p.Skills,
		p.LinkedInProfileURL,
		p.TwitterProfileURL,
		p.ProfilePhotoFilename,
		p.ProfilePhotoFilepath,
		p.CoverPhotoFilename,
		p.CoverPhotoFilepath,
		p.UpdatedByEmail,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return types.Profile{}, translate(err)
	}
	if err := expectAffected(result); err != nil {
		return types.Profile{}, err
	}
	return p, nil
}
