package main

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/zerbitx/ramlizer/catalog"
	"github.com/zerbitx/ramlizer/config"
	"github.com/zerbitx/ramlizer/metrics"
	"github.com/zerbitx/ramlizer/spec"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Ramlizer", func() {
	var cfg *config.Env

	BeforeEach(func() {
		cfg = &config.Env{
			Host:              "127.0.0.1",
			Port:              8080,
			Pattern:           "*.raml",
			Endpoint:          "ramlizer",
			StrictNegotiation: true,
			LogLevel:          "info",
			LogFormat:         "text",
		}
	})

	It("lets flags override the environment", func() {
		cmd := newRootCommand(cfg)
		Expect(cmd.Flags().Parse([]string{
			"--folder", "./apis",
			"-p", "9000",
			"-e", "scenario",
			"--grace", "4s",
			"--strict-negotiation=false",
		})).To(Succeed())

		Expect(cfg.Folder).To(Equal("./apis"))
		Expect(cfg.Port).To(Equal(9000))
		Expect(cfg.Endpoint).To(Equal("scenario"))
		Expect(cfg.StartupGrace).To(Equal(4 * time.Second))
		Expect(cfg.StrictNegotiation).To(BeFalse())
	})

	It("requires a folder", func() {
		Expect(run(cfg)).To(MatchError(ContainSubstring("folder is required")))
	})

	It("refuses to start from a folder that does not exist", func() {
		cfg.Folder = "fixtures/nowhere"
		recorder := metrics.New()

		_, err := loadCatalog(cfg, logrus.StandardLogger(), recorder)
		Expect(errors.Is(err, spec.ErrFolder)).To(BeTrue())
		Expect(testutil.ToFloat64(recorder.DocumentsLoaded.WithLabelValues("failed"))).To(Equal(1.0))

		Expect(errors.Is(run(cfg), spec.ErrFolder)).To(BeTrue())
	})

	It("configures the logger", func() {
		cfg.LogLevel = "debug"
		cfg.LogFormat = "json"

		logger, err := configureLogger(cfg)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(logger.GetLevel()).To(Equal(logrus.DebugLevel))

		cfg.LogFormat = "xml"
		_, err = configureLogger(cfg)
		Expect(err).Should(HaveOccurred())

		cfg.LogLevel = "loud"
		_, err = configureLogger(cfg)
		Expect(err).Should(HaveOccurred())
	})

	It("catalogs the documents that load and counts the rest", func() {
		cfg.Folder = "fixtures"
		recorder := metrics.New()

		cat, err := loadCatalog(cfg, logrus.StandardLogger(), recorder)
		Expect(err).ShouldNot(HaveOccurred())

		_, ok := cat.Lookup(catalog.RouteKey{Method: "get", Route: "/users"})
		Expect(ok).To(BeTrue())
		Expect(testutil.ToFloat64(recorder.DocumentsLoaded.WithLabelValues("loaded"))).To(Equal(1.0))
		Expect(testutil.ToFloat64(recorder.DocumentsLoaded.WithLabelValues("failed"))).To(Equal(2.0))
		Expect(testutil.ToFloat64(recorder.CatalogRoutes)).To(Equal(4.0))
	})
})
