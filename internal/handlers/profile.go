package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mouldconnect/apiserver/internal/services"
	"github.com/mouldconnect/apiserver/internal/storage"
	"github.com/mouldconnect/apiserver/types"
)

const (
	// Two images at their size cap plus the text fields.
	maxProfileBody     = 2*storage.MaxImageBytes + 1<<20
	maxMultipartMemory = 8 << 20

	formFieldAddress      = "address"
	formFieldProfession   = "profession"
	formFieldAboutMe      = "about_me"
	formFieldSkills       = "skills"
	formFieldLinkedIn     = "linkedin_profile_url"
	formFieldTwitter      = "twitter_profile_url"
	formFieldProfileGone  = "profile_photo_removed"
	formFieldCoverGone    = "cover_photo_removed"
	msgFileTooLarge       = "File size too large."
	msgProfileCreated     = "Profile created successfully"
	msgProfileUpdated     = "Profile updated successfully"
	msgProfileNotFound    = "Profile not found, please create one."
	msgInvalidProfileForm = "Invalid form data"
)

// ProfileAccounts reads and upserts profiles.
type ProfileAccounts interface {
	Get(ctx context.Context, targetUserID, actorUserID int) (*types.Profile, error)
	Upsert(ctx context.Context, in services.UpsertProfileInput) (services.UpsertProfileResult, error)
}

// ProfileHandler provides the profile endpoints.
type ProfileHandler struct {
	profiles ProfileAccounts
	logger   *slog.Logger
}

func NewProfileHandler(profiles ProfileAccounts, logger *slog.Logger) *ProfileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// ProfileRouter registers profile routes. Every route requires a bearer token.
func ProfileRouter(r chi.Router, handler *ProfileHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/{userID}", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", handler.GetProfile)
		r.Put("/", handler.UpsertProfile)
	})
}

// ProfileResponse wraps a profile; Profile is null when none exists.
type ProfileResponse struct {
	Message string         `json:"message,omitempty"`
	Profile *types.Profile `json:"profile"`
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	caller, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	profile, err := h.profiles.Get(r.Context(), pathUserID(r), caller.UserID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if profile == nil {
		writeJSON(w, http.StatusOK, ProfileResponse{Message: msgProfileNotFound})
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{Profile: profile})
}

// UpsertProfile accepts multipart/form-data with the text fields and up to
// one profile_photo and one cover_photo. URL-encoded bodies without files
// are accepted too.
func (h *ProfileHandler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	caller, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxProfileBody)
	in, err := parseProfileForm(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, msgFileTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, msgInvalidProfileForm)
		return
	}
	in.TargetUserID = pathUserID(r)
	in.ActorUserID = caller.UserID
	in.ActorEmail = caller.Email

	res, err := h.profiles.Upsert(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	if res.Created {
		writeJSON(w, http.StatusCreated, ProfileResponse{Message: msgProfileCreated, Profile: &res.Profile})
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{Message: msgProfileUpdated, Profile: &res.Profile})
}

func parseProfileForm(r *http.Request) (services.UpsertProfileInput, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return services.UpsertProfileInput{}, err
		}
		if err := r.ParseForm(); err != nil {
			return services.UpsertProfileInput{}, err
		}
	}

	in := services.UpsertProfileInput{
		Fields: types.ProfileFields{
			Address:            optionalFormValue(r, formFieldAddress),
			Profession:         optionalFormValue(r, formFieldProfession),
			AboutMe:            optionalFormValue(r, formFieldAboutMe),
			Skills:             optionalFormValue(r, formFieldSkills),
			LinkedInProfileURL: optionalFormValue(r, formFieldLinkedIn),
			TwitterProfileURL:  optionalFormValue(r, formFieldTwitter),
		},
		RemoveProfilePhoto: r.PostFormValue(formFieldProfileGone) == "true",
		RemoveCoverPhoto:   r.PostFormValue(formFieldCoverGone) == "true",
	}

	var err error
	if in.ProfilePhoto, err = formImage(r.MultipartForm, services.FieldProfilePhoto); err != nil {
		return services.UpsertProfileInput{}, err
	}
	if in.CoverPhoto, err = formImage(r.MultipartForm, services.FieldCoverPhoto); err != nil {
		return services.UpsertProfileInput{}, err
	}
	return in, nil
}

// optionalFormValue returns nil for an absent or blank field.
func optionalFormValue(r *http.Request, key string) *string {
	if _, ok := r.PostForm[key]; !ok {
		return nil
	}
	value := strings.TrimSpace(r.PostFormValue(key))
	if value == "" {
		return nil
	}
	return &value
}

// formImage reads the first file posted under field. The read is capped one
// byte past the image limit so the service can reject oversize uploads.
func formImage(form *multipart.Form, field string) (*services.Image, error) {
	if form == nil {
		return nil, nil
	}
	files := form.File[field]
	if len(files) == 0 {
		return nil, nil
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, storage.MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	return &services.Image{Filename: fileHeader.Filename, Data: data}, nil
}
