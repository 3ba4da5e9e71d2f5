package backoffice

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/denismitr/imgslot/internal/media"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var ErrOperatorNotConfigured = errors.New("operator credentials are not configured")

// bodyLimit has to fit the largest accepted candidate in its base64 data
// URI form, which is 4/3 of the file plus the JSON envelope.
const bodyLimit = "30M"

type Config struct {
	Port     string
	User     string
	Password string
}

type Server struct {
	e      *echo.Echo
	cfg    Config
	images *ImageService
	logger *logrus.Logger
}

// NewServer refuses to build an API that nobody has to authenticate against.
func NewServer(e *echo.Echo, cfg Config, images *ImageService, logger *logrus.Logger) (*Server, error) {
	if cfg.User == "" || cfg.Password == "" {
		return nil, ErrOperatorNotConfigured
	}

	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))

	s := &Server{e: e, cfg: cfg, images: images, logger: logger}

	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1", middleware.BodyLimit(bodyLimit))
	api.Use(middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Realm:     "backoffice",
		Validator: s.authenticate,
	}))

	api.GET("/config", s.getConfig)

	api.GET("/policy", s.getPolicy)
	api.PUT("/policy", s.setPolicy)

	api.POST("/preview", s.selectImage)
	api.GET("/preview", s.getPreview)
	api.GET("/preview/image", s.getPreviewImage)
	api.DELETE("/preview", s.cancelPreview)
	api.POST("/preview/confirm", s.confirmPreview)

	api.GET("/current", s.getCurrent)
	api.POST("/current/refresh", s.refreshCurrent)

	api.GET("/recent", s.listRecent)
	api.DELETE("/recent", s.clearRecent)
	api.POST("/recent/:id/reuse", s.reuseRecent)

	return s, nil
}

// Run the server
func (s *Server) Run(stopCh <-chan os.Signal, shutDownTime time.Duration) error {
	s.logger.Println("Backoffice server : Starting")

	serverError := make(chan error, 1)
	go func() {
		if err := s.e.Start(s.cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- errors.Wrap(err, "http server error")
		}
	}()

	s.logger.Println("Backoffice server : Started")

	select {
	case err := <-serverError:
		return err
	case <-stopCh:
		s.logger.Println("Backoffice server : Received stop signal")

		ctx, cancel := context.WithTimeout(context.Background(), shutDownTime)
		defer cancel()

		if stopErr := s.e.Shutdown(ctx); stopErr != nil {
			closeErr := s.e.Close()
			return errors.Wrap(closeErr, stopErr.Error())
		}

		return nil
	}
}

func (s *Server) authenticate(user, password string, _ echo.Context) (bool, error) {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.cfg.User)) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Password)) == 1

	return userOK && passwordOK, nil
}

func (s *Server) health(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getConfig(c echo.Context) error {
	cfg, err := s.images.Config(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(http.StatusOK, cfg)
}

func (s *Server) getPolicy(c echo.Context) error {
	return c.JSON(http.StatusOK, s.images.Policy())
}

func (s *Server) setPolicy(c echo.Context) error {
	var req policyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(badRequest(err))
	}

	p := req.toPolicy()

	preview, err := s.images.SetPolicy(p)
	if err != nil {
		return s.fail(c, err)
	}

	if preview == nil {
		return c.JSON(http.StatusOK, p)
	}

	return c.JSON(http.StatusOK, newPreviewResponse(preview, p, true))
}

func (s *Server) selectImage(c echo.Context) error {
	src, err := readSource(c)
	if err != nil {
		return s.fail(c, err)
	}

	result, err := s.images.Select(src)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(http.StatusOK, newPreviewResponse(result, s.images.Policy(), true))
}

func (s *Server) getPreview(c echo.Context) error {
	preview := s.images.Preview()
	if preview == nil {
		return s.fail(c, ErrNoPreview)
	}

	withData := c.QueryParam("data") != "false"

	return c.JSON(http.StatusOK, newPreviewResponse(preview, s.images.Policy(), withData))
}

func (s *Server) getPreviewImage(c echo.Context) error {
	preview := s.images.Preview()
	if preview == nil {
		return s.fail(c, ErrNoPreview)
	}

	return c.Blob(http.StatusOK, preview.Mime, preview.Content)
}

func (s *Server) cancelPreview(c echo.Context) error {
	s.images.Cancel()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) confirmPreview(c echo.Context) error {
	receipt, err := s.images.Confirm(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(http.StatusOK, receipt)
}

func (s *Server) getCurrent(c echo.Context) error {
	return c.JSON(http.StatusOK, newCurrentResponse(s.images.Current(), s.images.CacheBustedURL))
}

func (s *Server) refreshCurrent(c echo.Context) error {
	snapshot, err := s.images.Refresh(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(http.StatusOK, newCurrentResponse(snapshot, s.images.CacheBustedURL))
}

func (s *Server) listRecent(c echo.Context) error {
	limit, err := intFromQueryStringOrDefault(c.QueryParam("limit"), 0)
	if err != nil {
		return c.JSON(badRequest(err))
	}

	list, err := s.images.ListRecent(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}

	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"images": newRecentResponses(list)})
}

func (s *Server) clearRecent(c echo.Context) error {
	if err := s.images.ClearRecent(c.Request().Context()); err != nil {
		return s.fail(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) reuseRecent(c echo.Context) error {
	receipt, err := s.images.Reuse(c.Request().Context(), media.ID(c.Param("id")))
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(http.StatusOK, receipt)
}

func (s *Server) fail(c echo.Context, err error) error {
	code, resp := mapError(err)
	if code >= http.StatusInternalServerError {
		s.logger.Errorln(err.Error())
	}

	return c.JSON(code, resp)
}

// readSource accepts a multipart "file" field, a JSON data URI or the raw
// image as request body.
func readSource(c echo.Context) (*media.SourceImage, error) {
	contentType := c.Request().Header.Get(echo.HeaderContentType)

	switch {
	case strings.HasPrefix(contentType, echo.MIMEMultipartForm):
		return readMultipartSource(c)
	case strings.HasPrefix(contentType, echo.MIMEApplicationJSON):
		var req dataURIRequest
		if err := c.Bind(&req); err != nil {
			return nil, errors.Wrap(media.ErrInvalidDataURI, err.Error())
		}

		mime, content, err := media.DecodeDataURI(req.DataURI)
		if err != nil {
			return nil, err
		}

		return media.NewSourceImage(nameOrDefault(req.Name), mime, content), nil
	default:
		content, err := io.ReadAll(io.LimitReader(c.Request().Body, media.MaxSourceSize+1))
		if err != nil {
			return nil, errors.Wrapf(ErrBackOfficeError, "could not read request body: %v", err)
		}

		if contentType == "" {
			contentType = http.DetectContentType(content)
		}

		return media.NewSourceImage(nameOrDefault(c.QueryParam("name")), contentType, content), nil
	}
}

func readMultipartSource(c echo.Context) (*media.SourceImage, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, errors.Wrapf(media.ErrUnsupportedInput, "missing file field: %v", err)
	}

	mime := file.Header.Get(echo.HeaderContentType)
	if mime != "" {
		if err := media.ValidateCandidate(mime, file.Size); err != nil {
			return nil, err
		}
	}

	source, err := file.Open()
	if err != nil {
		return nil, errors.Wrapf(ErrBackOfficeError, "could not open uploaded file: %v", err)
	}
	defer source.Close()

	content, err := io.ReadAll(source)
	if err != nil {
		return nil, errors.Wrapf(ErrBackOfficeError, "could not read uploaded file: %v", err)
	}

	if mime == "" {
		mime = http.DetectContentType(content)
	}

	return media.NewSourceImage(file.Filename, mime, content), nil
}

func nameOrDefault(name string) string {
	if strings.TrimSpace(name) == "" {
		return "pasted-image"
	}

	return name
}
