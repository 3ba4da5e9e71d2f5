package backoffice

import (
	"net/http"
	"time"

	"github.com/denismitr/imgslot/internal/manipulator"
	"github.com/denismitr/imgslot/internal/media"
	"github.com/denismitr/imgslot/internal/reconciler"
	"github.com/denismitr/imgslot/internal/registry"
	"github.com/denismitr/imgslot/internal/uploader"
	"github.com/pkg/errors"
)

type errorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func internalError(err error) (int, errorResponse) {
	return http.StatusInternalServerError, errorResponse{Message: err.Error()}
}

func badRequest(err error) (int, errorResponse) {
	return http.StatusBadRequest, errorResponse{Message: err.Error()}
}

func unprocessableEntity(err error) (int, errorResponse) {
	return http.StatusUnprocessableEntity, errorResponse{Message: err.Error()}
}

func mapError(err error) (int, errorResponse) {
	var vErr *manipulator.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusUnprocessableEntity, errorResponse{
			Message: "The given data was invalid",
			Details: vErr.Errors(),
		}
	}

	switch {
	case errors.Is(err, media.ErrUnsupportedInput):
		return http.StatusUnsupportedMediaType, errorResponse{Message: "Please select an image file"}
	case errors.Is(err, media.ErrSizeLimit):
		return http.StatusRequestEntityTooLarge, errorResponse{Message: "File too large (max 20MB)"}
	case errors.Is(err, manipulator.ErrBadImage), errors.Is(err, media.ErrInvalidDataURI):
		return unprocessableEntity(errors.Wrap(err, "Failed to process image"))
	case errors.Is(err, ErrResourceNotFound), errors.Is(err, registry.ErrEntityNotFound):
		return http.StatusNotFound, errorResponse{Message: err.Error()}
	case errors.Is(err, ErrNoPreview), errors.Is(err, uploader.ErrUploadInProgress):
		return http.StatusConflict, errorResponse{Message: err.Error()}
	case errors.Is(err, uploader.ErrConfig):
		return http.StatusPreconditionFailed, errorResponse{Message: "Upload settings not configured", Details: err.Error()}
	case errors.Is(err, uploader.ErrAuth):
		return http.StatusUnauthorized, errorResponse{Message: "Upload credentials were rejected", Details: err.Error()}
	case errors.Is(err, uploader.ErrTransport):
		return http.StatusBadGateway, errorResponse{Message: "Upload failed: " + err.Error()}
	case errors.Is(err, uploader.ErrEmptyPayload):
		return badRequest(err)
	default:
		return internalError(err)
	}
}

type previewResponse struct {
	Name                string             `json:"name"`
	Policy              manipulator.Policy `json:"policy"`
	Quality             float64            `json:"quality"`
	OriginalDimensions  media.Dimensions   `json:"originalDimensions"`
	Dimensions          media.Dimensions   `json:"dimensions"`
	OriginalSize        int64              `json:"originalSize"`
	OriginalSizeHuman   string             `json:"originalSizeHuman"`
	EstimatedSize       int                `json:"estimatedSize"`
	EstimatedSizeHuman  string             `json:"estimatedSizeHuman"`
	OriginalDisposition media.Disposition  `json:"originalDisposition"`
	OutputDisposition   media.Disposition  `json:"outputDisposition"`
	DataURI             string             `json:"dataUri,omitempty"`
}

func newPreviewResponse(r *media.TranscodeResult, p manipulator.Policy, withData bool) previewResponse {
	resp := previewResponse{
		Policy:              p,
		Quality:             r.Quality,
		OriginalDimensions:  r.OriginalDimensions,
		Dimensions:          r.Dimensions,
		OriginalSize:        r.OriginalSize,
		OriginalSizeHuman:   media.FormatSize(int(r.OriginalSize)),
		EstimatedSize:       r.EstimatedSize,
		EstimatedSizeHuman:  media.FormatSize(r.EstimatedSize),
		OriginalDisposition: r.OriginalDisposition,
		OutputDisposition:   r.OutputDisposition,
	}

	if r.Source != nil {
		resp.Name = r.Source.Name
	}

	if withData {
		resp.DataURI = r.DataURI()
	}

	return resp
}

type pendingResponse struct {
	Size      int          `json:"size"`
	SizeHuman string       `json:"sizeHuman"`
	Origin    media.Origin `json:"origin"`
	WrittenAt time.Time    `json:"writtenAt"`
	DataURI   string       `json:"dataUri"`
}

type versionResponse struct {
	SHA       string    `json:"sha"`
	Size      int64     `json:"size"`
	SizeHuman string    `json:"sizeHuman"`
	URL       string    `json:"url"`
	Path      string    `json:"path"`
	FetchedAt time.Time `json:"fetchedAt"`
}

type currentResponse struct {
	State     reconciler.State `json:"state"`
	Pending   *pendingResponse `json:"pending,omitempty"`
	Current   *versionResponse `json:"current,omitempty"`
	LastError string           `json:"lastError,omitempty"`
}

func newCurrentResponse(s reconciler.Snapshot, bust func(string) string) currentResponse {
	resp := currentResponse{State: s.State, LastError: s.LastError}

	if s.Pending != nil {
		resp.Pending = &pendingResponse{
			Size:      s.Pending.Size,
			SizeHuman: media.FormatSize(s.Pending.Size),
			Origin:    s.Pending.Origin,
			WrittenAt: s.Pending.WrittenAt,
			DataURI:   s.Pending.DataURI(),
		}
	}

	if s.Current != nil {
		resp.Current = &versionResponse{
			SHA:       s.Current.Token,
			Size:      s.Current.Size,
			SizeHuman: media.FormatSize(int(s.Current.Size)),
			URL:       bust(s.Current.ReadURL),
			Path:      s.Current.Path,
			FetchedAt: s.Current.FetchedAt,
		}
	}

	return resp
}

type recentResponse struct {
	ID        media.ID  `json:"id"`
	Size      int       `json:"size"`
	SizeHuman string    `json:"sizeHuman"`
	CreatedAt time.Time `json:"createdAt"`
	DataURI   string    `json:"dataUri"`
}

func newRecentResponses(list []media.RecentUpload) []recentResponse {
	resp := make([]recentResponse, 0, len(list))
	for i := range list {
		resp = append(resp, recentResponse{
			ID:        list[i].ID,
			Size:      list[i].Size,
			SizeHuman: media.FormatSize(list[i].Size),
			CreatedAt: list[i].CreatedAt,
			DataURI:   list[i].DataURI(),
		})
	}

	return resp
}
