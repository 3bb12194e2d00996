package mockserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/form3tech-oss/pact-consumer/internal/app/contract"
	"github.com/form3tech-oss/pact-consumer/internal/app/httpresponse"
	"github.com/form3tech-oss/pact-consumer/internal/app/pattern"
	"github.com/form3tech-oss/pact-consumer/internal/app/plugin"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// controlPrefix is where the control endpoints live; contract paths under
// it are shadowed.
const controlPrefix = "/_pact"

// server is the validating mock server for one contract. It is owned by
// the bridge worker; HTTP handlers share only the interaction registry.
type server struct {
	http         *http.Server
	url          string
	registry     *plugin.Registry
	interactions *Interactions
	unmatched    *unmatchedLog
	notify       *notify
	config       Config
}

// newServer binds an ephemeral port on cfg.Host and starts serving. The
// listener exists when newServer returns.
func newServer(pact *contract.Pact, cfg Config) (*server, error) {
	if pact == nil {
		return nil, errors.New("no contract to serve")
	}
	cfg = cfg.withDefaults()

	registry := pact.Registry
	if registry == nil {
		registry = plugin.Default
	}
	interactions := newInteractions(pact, cfg.RecordHistory)

	ln, err := net.Listen("tcp", net.JoinHostPort(cfg.Host, "0"))
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", cfg.Host)
	}

	s := &server{
		url:          "http://" + ln.Addr().String(),
		registry:     registry,
		interactions: interactions,
		unmatched:    &unmatchedLog{},
		notify:       newNotify(),
		config:       cfg,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	s.routes(e)
	s.http = &http.Server{Handler: e}

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error(err)
		}
	}()

	log.WithFields(log.Fields{
		"url":          s.url,
		"consumer":     pact.Consumer,
		"provider":     pact.Provider,
		"interactions": len(s.interactions.All()),
	}).Info("mock server started")
	return s, nil
}

func (s *server) routes(e *echo.Echo) {
	g := e.Group(controlPrefix)
	g.GET("/ready", s.readinessHandler)
	g.GET("/interactions", s.interactionsHandler)
	g.POST("/interactions/constraints", s.interactionsConstraintsHandler)
	g.POST("/interactions/modifiers", s.interactionsModifiersHandler)
	g.GET("/interactions/wait", s.interactionsWaitHandler)
	g.GET("/verification", s.verificationHandler)

	e.Any("/*", s.indexHandler)
}

func (s *server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownGrace)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("mock server shutdown")
		_ = s.http.Close()
	}
	log.WithField("url", s.url).Info("mock server stopped")
}

func (s *server) verification() *Verification {
	return verify(s.interactions, s.unmatched)
}

type mismatchReport struct {
	Error      string                        `json:"error"`
	Method     string                        `json:"method"`
	Path       string                        `json:"path"`
	Mismatches map[string][]pattern.Mismatch `json:"mismatches,omitempty"`
	Violations map[string][]string           `json:"violations,omitempty"`
}

// indexHandler answers contract requests: the first interaction, in
// contract order, that the request satisfies replays its response.
func (s *server) indexHandler(c echo.Context) error {
	req := c.Request()
	log.Infof("received %s %s", req.Method, req.URL.Path)

	data, err := io.ReadAll(req.Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to read request body. %s", err.Error()))
	}

	doc := newRequestDocument(req, data, s.registry)
	mismatches := map[string][]pattern.Mismatch{}
	violations := map[string][]string{}
	for _, i := range s.interactions.All() {
		if m := i.match(req, data, s.registry); len(m) > 0 {
			mismatches[i.Description] = m
			continue
		}
		if ok, info := i.evaluateConstraints(doc, s.interactions); !ok {
			violations[i.Description] = info
			continue
		}

		attempt := i.storeRequest(doc)
		s.notify.Notify()
		return s.replay(c, i, attempt)
	}

	s.unmatched.add(UnmatchedRequest{
		Method:     req.Method,
		Path:       req.URL.Path,
		Query:      req.URL.RawQuery,
		Received:   time.Now(),
		Mismatches: mismatches,
		Violations: violations,
	})
	for desc, m := range mismatches {
		log.Infof("request does not match '%s': %v", desc, m)
	}
	for desc, info := range violations {
		log.Infof("constraints do not match for '%s': %v", desc, info)
	}
	return c.JSON(http.StatusInternalServerError, mismatchReport{
		Error:      "no interaction matched the request",
		Method:     req.Method,
		Path:       req.URL.Path,
		Mismatches: mismatches,
		Violations: violations,
	})
}

// replay writes the example response of i, with its modifiers applied.
func (s *server) replay(c echo.Context, i *interaction, attempt int) error {
	resp := i.response
	status := resp.Status
	body := resp.Body.Content
	var err error
	for _, m := range i.activeModifiers() {
		if ok, code := m.modifyStatusCode(attempt); ok {
			status = code
		}
		if body, err = m.modifyBody(body, attempt); err != nil {
			return c.JSON(http.StatusInternalServerError, httpresponse.Errorf("unable to modify response of '%s'. %s", i.Description, err.Error()))
		}
	}

	header := c.Response().Header()
	for name, values := range resp.Headers {
		for _, v := range values {
			header.Add(name, v.Example())
		}
	}
	if !resp.Body.Present() {
		return c.NoContent(status)
	}
	ct := header.Get(echo.HeaderContentType)
	if ct == "" {
		ct = resp.Body.ContentType
	}
	header.Set(echo.HeaderContentLength, strconv.Itoa(len(body)))
	return c.Blob(status, ct, body)
}

func (s *server) readinessHandler(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (s *server) interactionsHandler(c echo.Context) error {
	out := make([]*interaction, 0, len(s.interactions.All()))
	for _, i := range s.interactions.All() {
		out = append(out, i.snapshot())
	}
	return c.JSON(http.StatusOK, out)
}

func (s *server) interactionsConstraintsHandler(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to read constraint. %s", err.Error()))
	}

	constraint, err := loadConstraint(data)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to load constraint. %s", err.Error()))
	}

	i, ok := s.interactions.Load(constraint.Interaction)
	if !ok {
		return c.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to find interaction. %s", constraint.Interaction))
	}

	log.Infof("adding constraint to interaction '%s'", i.Description)
	i.AddConstraint(constraint)
	return c.NoContent(http.StatusNoContent)
}

func (s *server) interactionsModifiersHandler(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to read modifier. %s", err.Error()))
	}

	modifier, err := loadModifier(data)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to load modifier. %s", err.Error()))
	}

	i, ok := s.interactions.Load(modifier.Interaction)
	if !ok {
		return c.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to find interaction for modifier. %s", modifier.Interaction))
	}

	log.Infof("adding modifier to interaction '%s'", i.Description)
	i.AddModifier(modifier)
	return c.NoContent(http.StatusNoContent)
}

func (s *server) interactionsWaitHandler(c echo.Context) error {
	waitForCount, err := strconv.Atoi(c.QueryParam("count"))
	if err != nil {
		waitForCount = 1
	}
	duration := s.config.WaitDuration
	if d, err := time.ParseDuration(c.QueryParam("timeout")); err == nil {
		duration = d
	}

	if waitFor := c.QueryParam("interaction"); waitFor != "" {
		i, ok := s.interactions.Load(waitFor)
		if !ok {
			return c.JSON(http.StatusBadRequest, httpresponse.Errorf("cannot wait for interaction '%s', interaction not found.", waitFor))
		}

		log.WithField("wait_for", waitFor).Infof("waiting")
		met := retryFor(c.Request().Context(), func(timeLeft time.Duration) bool {
			log.WithFields(log.Fields{
				"wait_for":       waitFor,
				"count":          waitForCount,
				"time_remaining": timeLeft,
			}).Debug("retry")
			if i.HasRequests(waitForCount) {
				return true
			}
			if timeLeft > 0 {
				s.notify.Wait(timeLeft)
			}
			return false
		}, s.config.WaitDelay, duration)

		if !met && !i.HasRequests(waitForCount) {
			return c.JSON(http.StatusRequestTimeout, httpresponse.Error("timeout waiting for interactions to be met"))
		}
		return c.NoContent(http.StatusOK)
	}

	log.Info("waiting for all")
	met := retryFor(c.Request().Context(), func(timeLeft time.Duration) bool {
		if s.interactions.AllHaveRequests() {
			return true
		}
		if timeLeft > 0 {
			s.notify.Wait(timeLeft)
		}
		return false
	}, s.config.WaitDelay, duration)

	if !met && !s.interactions.AllHaveRequests() {
		for _, i := range s.interactions.All() {
			if !i.HasRequests(1) {
				log.Infof("'%s' has no requests", i.Description)
			}
		}
		return c.JSON(http.StatusRequestTimeout, httpresponse.Error("timeout waiting for interactions to be met"))
	}
	return c.NoContent(http.StatusOK)
}

func (s *server) verificationHandler(c echo.Context) error {
	v := s.verification()
	if !v.OK() {
		return c.JSON(http.StatusExpectationFailed, v)
	}
	return c.JSON(http.StatusOK, v)
}
