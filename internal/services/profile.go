package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mouldconnect/apiserver/internal/storage"
	"github.com/mouldconnect/apiserver/internal/store"
	"github.com/mouldconnect/apiserver/types"
)

const (
	FieldProfilePhoto = "profile_photo"
	FieldCoverPhoto   = "cover_photo"

	msgUpdateOwnProfile = "Forbidden: You can only update your own profile."
	msgViewOwnProfile   = "Forbidden: You can only view your own profile."
	msgMissingEmail     = "Authentication required: User email not found."
	msgProfileOwner     = "You are not authorized to update this profile (email mismatch)."
	msgFileTooLarge     = "File size too large."
	msgImageType        = "Only JPG, JPEG, and PNG image files are allowed!"
)

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID int) (types.Profile, error)
	Create(ctx context.Context, profile types.Profile) (types.Profile, error)
	Update(ctx context.Context, profile types.Profile) (types.Profile, error)
}

// ObjectStore keeps uploaded images.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Image is an uploaded file as received from the client.
type Image struct {
	Filename string
	Data     []byte
}

// UpsertProfileInput is a full replacement of the profile's text fields plus
// optional image changes.
type UpsertProfileInput struct {
	TargetUserID int
	ActorUserID  int
	ActorEmail   string
	Fields       types.ProfileFields

	ProfilePhoto       *Image
	CoverPhoto         *Image
	RemoveProfilePhoto bool
	RemoveCoverPhoto   bool
}

type UpsertProfileResult struct {
	Profile types.Profile
	Created bool
}

// ProfileService implements the profile upsert and read flows.
type ProfileService struct {
	repo    ProfileRepository
	objects ObjectStore
	events  EventPublisher
	logger  *slog.Logger
}

func NewProfileService(repo ProfileRepository, objects ObjectStore, events EventPublisher, logger *slog.Logger) *ProfileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{repo: repo, objects: objects, events: events, logger: logger}
}

// Get returns the acting user's profile, or nil when none exists yet.
func (s *ProfileService) Get(ctx context.Context, targetUserID, actorUserID int) (*types.Profile, error) {
	if targetUserID != actorUserID {
		return nil, forbidden(msgViewOwnProfile)
	}
	profile, err := s.repo.GetByUserID(ctx, targetUserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// preparedImage is an image that passed type and size checks.
type preparedImage struct {
	field       string
	data        []byte
	contentType string
	ext         string
}

// imageChange is the outcome for one image slot: a freshly stored key, a
// removal, or nothing.
type imageChange struct {
	newKey string
	remove bool
}

// Upsert creates or replaces the acting user's profile. New images are
// stored only after every check passed. Objects that are no longer
// referenced are deleted best-effort once the row is written.
func (s *ProfileService) Upsert(ctx context.Context, in UpsertProfileInput) (UpsertProfileResult, error) {
	if in.TargetUserID != in.ActorUserID {
		return UpsertProfileResult{}, forbidden(msgUpdateOwnProfile)
	}
	if in.ActorEmail == "" {
		return UpsertProfileResult{}, unauthenticated(msgMissingEmail)
	}
	if err := firstViolation(validateProfileFields(in.Fields)); err != nil {
		return UpsertProfileResult{}, err
	}

	images, err := prepareImages(in)
	if err != nil {
		return UpsertProfileResult{}, err
	}

	existing, found, err := s.lookup(ctx, in)
	if err != nil {
		return UpsertProfileResult{}, err
	}

	changes, stored, err := s.storeImages(ctx, in, images)
	if err != nil {
		return UpsertProfileResult{}, err
	}

	var (
		result   UpsertProfileResult
		obsolete []string
	)
	if found {
		result.Profile, obsolete, err = s.update(ctx, existing, in, changes)
	} else {
		result, obsolete, err = s.create(ctx, in, changes)
	}
	if err != nil {
		s.discard(ctx, stored)
		return UpsertProfileResult{}, err
	}
	s.discard(ctx, obsolete)

	eventType := types.EventProfileUpdated
	if result.Created {
		eventType = types.EventProfileCreated
	}
	if s.events != nil {
		s.events.Publish(ctx, types.AccountEvent{
			Type:   eventType,
			UserID: result.Profile.UserID,
			Email:  in.ActorEmail,
		})
	}
	return result, nil
}

// lookup loads the current profile and enforces that only its creator may
// change it.
func (s *ProfileService) lookup(ctx context.Context, in UpsertProfileInput) (types.Profile, bool, error) {
	existing, err := s.repo.GetByUserID(ctx, in.TargetUserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Profile{}, false, nil
		}
		return types.Profile{}, false, err
	}
	if existing.CreatedByEmail != in.ActorEmail {
		return types.Profile{}, false, forbidden(msgProfileOwner)
	}
	return existing, true, nil
}

func (s *ProfileService) create(ctx context.Context, in UpsertProfileInput, changes map[string]imageChange) (UpsertProfileResult, []string, error) {
	profile := types.Profile{
		UserID:         in.TargetUserID,
		CreatedByEmail: in.ActorEmail,
		UpdatedByEmail: in.ActorEmail,
	}
	in.Fields.Apply(&profile)
	applyImages(&profile, changes)

	created, err := s.repo.Create(ctx, profile)
	if err == nil {
		return UpsertProfileResult{Profile: created, Created: true}, nil, nil
	}

	var dup *store.DuplicateError
	if !errors.As(err, &dup) || dup.Field != "user_id" {
		return UpsertProfileResult{}, nil, profileStoreError(err)
	}

	// A concurrent request created the profile first; update it instead.
	existing, found, err := s.lookup(ctx, in)
	if err != nil {
		return UpsertProfileResult{}, nil, err
	}
	if !found {
		return UpsertProfileResult{}, nil, fmt.Errorf("profile for user %d vanished after duplicate insert", in.TargetUserID)
	}
	updated, obsolete, err := s.update(ctx, existing, in, changes)
	return UpsertProfileResult{Profile: updated}, obsolete, err
}

func (s *ProfileService) update(ctx context.Context, existing types.Profile, in UpsertProfileInput, changes map[string]imageChange) (types.Profile, []string, error) {
	profile := existing
	in.Fields.Apply(&profile)
	profile.UpdatedByEmail = in.ActorEmail
	obsolete := applyImages(&profile, changes)

	updated, err := s.repo.Update(ctx, profile)
	if err != nil {
		return types.Profile{}, nil, profileStoreError(err)
	}
	return updated, obsolete, nil
}

func (s *ProfileService) storeImages(ctx context.Context, in UpsertProfileInput, images []preparedImage) (map[string]imageChange, []string, error) {
	changes := map[string]imageChange{
		FieldProfilePhoto: {remove: in.RemoveProfilePhoto},
		FieldCoverPhoto:   {remove: in.RemoveCoverPhoto},
	}

	var stored []string
	for _, img := range images {
		key := storage.NewImageKey(img.field, img.ext)
		if err := s.objects.Put(ctx, key, bytes.NewReader(img.data), int64(len(img.data)), img.contentType); err != nil {
			s.discard(ctx, stored)
			return nil, nil, fmt.Errorf("store %s: %w", img.field, err)
		}
		stored = append(stored, key)
		changes[img.field] = imageChange{newKey: key}
	}
	return changes, stored, nil
}

// discard deletes objects best-effort. Failures are logged only.
func (s *ProfileService) discard(ctx context.Context, keys []string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.objects.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.WarnContext(ctx, "delete image failed", slog.String("key", key), slog.Any("err", err))
			continue
		}
		s.logger.DebugContext(ctx, "deleted image", slog.String("key", key))
	}
}

func prepareImages(in UpsertProfileInput) ([]preparedImage, error) {
	var images []preparedImage
	for _, candidate := range []struct {
		field string
		image *Image
	}{
		{FieldProfilePhoto, in.ProfilePhoto},
		{FieldCoverPhoto, in.CoverPhoto},
	} {
		if candidate.image == nil {
			continue
		}
		if len(candidate.image.Data) > storage.MaxImageBytes {
			return nil, invalid(msgFileTooLarge, Violation{Field: candidate.field, Message: msgFileTooLarge})
		}
		contentType, ext, err := storage.DetectImage(candidate.image.Data)
		if err != nil {
			return nil, invalid(msgImageType, Violation{Field: candidate.field, Message: msgImageType})
		}
		images = append(images, preparedImage{
			field:       candidate.field,
			data:        candidate.image.Data,
			contentType: contentType,
			ext:         ext,
		})
	}
	return images, nil
}

// imageSlot points at the filename/filepath pair of one image on a profile.
type imageSlot struct {
	filename **string
	filepath **string
}

func slotFor(p *types.Profile, field string) imageSlot {
	if field == FieldCoverPhoto {
		return imageSlot{filename: &p.CoverPhotoFilename, filepath: &p.CoverPhotoFilepath}
	}
	return imageSlot{filename: &p.ProfilePhotoFilename, filepath: &p.ProfilePhotoFilepath}
}

func (s imageSlot) currentKey() string {
	if *s.filepath == nil {
		return ""
	}
	return storage.KeyFromPublicPath(**s.filepath)
}

// applyImages writes image changes onto p and returns the keys of objects
// that are no longer referenced. A new file wins over a removal flag.
func applyImages(p *types.Profile, changes map[string]imageChange) []string {
	var obsolete []string
	for _, field := range []string{FieldProfilePhoto, FieldCoverPhoto} {
		change := changes[field]
		slot := slotFor(p, field)
		switch {
		case change.newKey != "":
			if old := slot.currentKey(); old != "" {
				obsolete = append(obsolete, old)
			}
			filename, filepath := change.newKey, storage.PublicPath(change.newKey)
			*slot.filename = &filename
			*slot.filepath = &filepath
		case change.remove:
			if old := slot.currentKey(); old != "" {
				obsolete = append(obsolete, old)
			}
			*slot.filename = nil
			*slot.filepath = nil
		}
	}
	return obsolete
}

func profileStoreError(err error) error {
	if errors.Is(err, store.ErrInvalidInput) {
		return invalid(msgInvalidInput)
	}
	return err
}
