package mocker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/gofiber/fiber"
	"github.com/gofiber/fiber/middleware"
	"github.com/gofiber/utils"
	"github.com/sirupsen/logrus"
	"github.com/zerbitx/ramlizer/catalog"
	"github.com/zerbitx/ramlizer/encode"
	"github.com/zerbitx/ramlizer/metrics"
	"github.com/zerbitx/ramlizer/plan"
	"github.com/zerbitx/ramlizer/selector"
	"gopkg.in/yaml.v2"
)

const (
	// DefaultEndpoint is the path, without its leading slash, of the reconfiguration endpoint
	DefaultEndpoint = "ramlizer"

	EventServed       = "served"
	EventReconfigured = "reconfigured"
)

var uriParameter = regexp.MustCompile(`\{([^{}/]+)\}`)

type (
	fiberBinding func(path string, handler fiber.Handler)

	// Notifier mirrors served responses and plan changes to observers
	Notifier interface {
		Notify(kind string, payload interface{})
	}

	// Mocker serves the planned responses of every cataloged route and lets them be replanned at runtime
	Mocker struct {
		app          *fiber.App
		endpoint     string
		catalog      *catalog.Catalog
		plans        *plan.Store
		selector     *selector.Selector
		recorder     *metrics.Recorder
		notifier     Notifier
		handlerBases map[string]fiberBinding
		logger       logrus.FieldLogger
		port         int
		host         string
	}

	config struct {
		port     int
		host     string
		endpoint string
		logger   logrus.FieldLogger
		recorder *metrics.Recorder
		notifier Notifier
	}

	// Option is a function that can modify a default config
	Option func(c *config)

	// ServedEvent describes one served mock response
	ServedEvent struct {
		Method    string          `json:"method"`
		Route     string          `json:"route"`
		Path      string          `json:"path"`
		Code      string          `json:"code"`
		MediaType string          `json:"mediaType"`
		Example   string          `json:"example,omitempty"`
		Body      json.RawMessage `json:"body"`
	}

	// ReconfiguredEvent describes one plan change
	ReconfiguredEvent struct {
		Method string `json:"method"`
		plan.Outcome
	}
)

// New returns a Mocker serving every route of c, by default on 127.0.0.1:8080
func New(c *catalog.Catalog, plans *plan.Store, sel *selector.Selector, options ...Option) *Mocker {
	cfg := &config{
		port:     8080,
		logger:   logrus.StandardLogger(),
		host:     "127.0.0.1",
		endpoint: DefaultEndpoint,
	}

	for _, applyOption := range options {
		applyOption(cfg)
	}

	app := fiber.New(&fiber.Settings{
		ServerHeader:          "Ramlizer",
		DisableStartupMessage: true,
	})

	app.Use(middleware.Recover())

	m := &Mocker{
		app:      app,
		endpoint: "/" + strings.Trim(cfg.endpoint, "/"),
		catalog:  c,
		plans:    plans,
		selector: sel,
		recorder: cfg.recorder,
		notifier: cfg.notifier,
		logger:   cfg.logger,
		port:     cfg.port,
		host:     cfg.host,
		handlerBases: map[string]fiberBinding{
			http.MethodGet:     func(p string, h fiber.Handler) { app.Get(p, h) },
			http.MethodPost:    func(p string, h fiber.Handler) { app.Post(p, h) },
			http.MethodDelete:  func(p string, h fiber.Handler) { app.Delete(p, h) },
			http.MethodPatch:   func(p string, h fiber.Handler) { app.Patch(p, h) },
			http.MethodPut:     func(p string, h fiber.Handler) { app.Put(p, h) },
			http.MethodOptions: func(p string, h fiber.Handler) { app.Options(p, h) },
			http.MethodConnect: func(p string, h fiber.Handler) { app.Connect(p, h) },
			http.MethodTrace:   func(p string, h fiber.Handler) { app.Trace(p, h) },
			http.MethodHead:    func(p string, h fiber.Handler) { app.Head(p, h) },
		},
	}

	m.initConfigEndpoints()
	m.mount()

	return m
}

// WithLogger overrides the default logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithHost sets the host
func WithHost(host string) Option {
	return func(c *config) {
		c.host = host
	}
}

// WithPort sets the port
func WithPort(port int) Option {
	return func(c *config) {
		c.port = port
	}
}

// WithEndpoint sets the path of the reconfiguration endpoint
func WithEndpoint(endpoint string) Option {
	return func(c *config) {
		c.endpoint = endpoint
	}
}

// WithRecorder records served responses and reconfigurations
func WithRecorder(r *metrics.Recorder) Option {
	return func(c *config) {
		c.recorder = r
	}
}

// WithNotifier mirrors served responses and reconfigurations to n
func WithNotifier(n Notifier) Option {
	return func(c *config) {
		c.notifier = n
	}
}

// FiberPath turns the {param} segments of a declared route into :param segments
func FiberPath(route string) string {
	return uriParameter.ReplaceAllString(route, ":$1")
}

// Start listens until the app is shut down
func (m *Mocker) Start() error {
	m.logger.WithFields(logrus.Fields{"host": m.host, "port": m.port}).Info("main")
	m.logger.WithField("endpoint", m.endpoint).Info("listening for configuration requests")

	return m.app.Listen(fmt.Sprintf("%s:%d", m.host, m.port))
}

// Shutdown gracefully shuts down the app
func (m *Mocker) Shutdown() error {
	if shutdownErr := m.app.Shutdown(); shutdownErr != nil {
		return fmt.Errorf("failed to shutdown app %w", shutdownErr)
	}

	return nil
}

// mount binds a mock handler for every cataloged route
func (m *Mocker) mount() {
	for _, route := range m.catalog.Routes() {
		key := route.Key
		fields := logrus.Fields{
			"method": key.Method,
			"route":  key.Route,
		}

		bind, ok := m.handlerBases[utils.ToUpper(key.Method)]
		if !ok {
			m.logger.WithFields(fields).Warn("unsupported method, skipping")
			continue
		}

		path := FiberPath(key.Route)
		m.logger.WithFields(fields).WithField("path", path).Debug("wiring")

		bind(path, m.mockHandler(key))
	}
}

func (m *Mocker) mockHandler(key catalog.RouteKey) fiber.Handler {
	return func(c *fiber.Ctx) {
		c.Set("Access-Control-Allow-Origin", "*")

		accept := utils.ImmutableString(c.Get("Accept"))
		logger := m.logger.WithFields(logrus.Fields{
			"method": key.Method,
			"route":  key.Route,
			"accept": accept,
		})

		res, err := m.selector.Select(key, accept)
		if err != nil {
			var notAcceptable *selector.NotAcceptableError

			switch {
			case errors.As(err, &notAcceptable):
				logger.WithError(err).Info("not acceptable")
				m.recorder.RecordNotAcceptable(key.Method, key.Route)
				m.sendError(c, http.StatusNotAcceptable, err.Error(), notAcceptable.Offered...)
			case errors.Is(err, selector.ErrNotCataloged):
				logger.WithError(err).Error("failed to find route")
				m.sendError(c, http.StatusNotFound, err.Error())
			default:
				logger.WithError(err).Error("failed to select response")
				m.sendError(c, http.StatusInternalServerError, err.Error())
			}

			return
		}

		logger.WithFields(logrus.Fields{
			"code":    res.StatusCode,
			"type":    res.MediaType,
			"example": res.ExampleName,
		}).Debug("serving")

		c.Set("Content-Type", res.MediaType)
		c.Status(res.Status)
		c.SendBytes(res.Body)

		fallbacks := make([]string, len(res.Fallbacks))
		for i, f := range res.Fallbacks {
			fallbacks[i] = string(f)
		}
		m.recorder.RecordServed(key.Method, key.Route, res.StatusCode, fallbacks...)

		m.notify(EventServed, ServedEvent{
			Method:    key.Method,
			Route:     key.Route,
			Path:      utils.ImmutableString(c.Path()),
			Code:      res.StatusCode,
			MediaType: res.MediaType,
			Example:   res.ExampleName,
			Body:      res.Body,
		})
	}
}

func (m *Mocker) initConfigEndpoints() {
	m.logger.
		WithFields(logrus.Fields{
			http.MethodPost: m.endpoint,
			http.MethodGet:  m.endpoint,
		}).Debug("config endpoints")

	m.app.Post(m.endpoint, m.reconfigure)
	m.app.Get(m.endpoint, func(c *fiber.Ctx) {
		m.sendJSON(c, http.StatusOK, m.catalog.Snapshot())
	})
	m.app.Get(m.endpoint+"/plan", func(c *fiber.Ctx) {
		m.sendJSON(c, http.StatusOK, m.plans.Entries())
	})
}

func (m *Mocker) reconfigure(c *fiber.Ctx) {
	r, err := decodeReconfiguration(c.Body())
	if err != nil {
		m.logger.WithError(err).Error("failed to decode reconfiguration")
		m.sendError(c, http.StatusBadRequest, err.Error())
		return
	}

	r.Method = utils.ToLower(r.Method)
	outcome := m.plans.Reconfigure(r)

	m.logger.WithFields(logrus.Fields{
		"method":  r.Method,
		"route":   r.Route,
		"outcome": outcome,
	}).Info("reconfigured")

	m.recorder.RecordReconfiguration(r.Method, r.Route)
	m.notify(EventReconfigured, ReconfiguredEvent{Method: r.Method, Outcome: outcome})

	m.sendJSON(c, http.StatusOK, outcome)
}

// decodeReconfiguration reads a JSON body, falling back to YAML so codes may be sent as numbers.
// An empty body is an empty reconfiguration.
func decodeReconfiguration(body string) (plan.Reconfiguration, error) {
	var r plan.Reconfiguration

	if strings.TrimSpace(body) == "" {
		return r, nil
	}

	if err := json.Unmarshal([]byte(body), &r); err == nil {
		return r, nil
	}

	r = plan.Reconfiguration{}
	if err := yaml.NewDecoder(strings.NewReader(body)).Decode(&r); err != nil && err != io.EOF {
		return r, fmt.Errorf("failed to decode reconfiguration: %w", err)
	}

	return r, nil
}

func (m *Mocker) sendJSON(c *fiber.Ctx, status int, v interface{}) {
	c.Status(status)
	c.Set("Content-Type", encode.ContentTypeJSON)

	if err := encode.JSONIndented(v, c.Fasthttp.Response.BodyWriter()); err != nil {
		m.logger.WithError(err).Error("Failed to encode response")
		c.SendStatus(http.StatusInternalServerError)
	}
}

func (m *Mocker) sendError(c *fiber.Ctx, status int, message string, offered ...string) {
	c.Status(status)
	c.Set("Content-Type", encode.ContentTypeJSON)

	if err := encode.Error(c.Fasthttp.Response.BodyWriter(), message, offered...); err != nil {
		m.logger.WithError(err).Error("Failed to encode error")
	}
}

func (m *Mocker) notify(kind string, payload interface{}) {
	if m.notifier != nil {
		m.notifier.Notify(kind, payload)
	}
}
