//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/focusd/deepfocus/internal/api"
	"github.com/eliteGoblin/focusd/deepfocus/internal/api/dto"
	"github.com/eliteGoblin/focusd/deepfocus/internal/daemon"
	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
	"github.com/eliteGoblin/focusd/deepfocus/internal/infra"
	"github.com/eliteGoblin/focusd/deepfocus/internal/monitor"
	"github.com/eliteGoblin/focusd/deepfocus/internal/policy"
	"github.com/eliteGoblin/focusd/deepfocus/internal/usecase"
	"github.com/eliteGoblin/focusd/deepfocus/test/fixtures"
)

var _ = Describe("HTTP API over the encrypted store", func() {
	var (
		tmpDir  string
		store   *infra.EncryptedStore
		sampler *monitor.Sampler
		tracker *monitor.Tracker
		srv     *api.Server
	)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		w := httptest.NewRecorder()
		srv.Engine().ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		ctx := context.Background()
		var err error
		tmpDir, err = os.MkdirTemp("", "deepfocus-api-*")
		Expect(err).NotTo(HaveOccurred())

		key, err := infra.GenerateKey()
		Expect(err).NotTo(HaveOccurred())
		store, err = infra.NewEncryptedStore(tmpDir, key)
		Expect(err).NotTo(HaveOccurred())
		_, err = store.SeedRules(ctx, policy.DefaultRules())
		Expect(err).NotTo(HaveOccurred())

		sampler = monitor.NewSampler(monitor.DefaultSamplerConfig(), fixtures.NewFakeDesktop("Code"), nil, nil)
		tracker = monitor.NewTracker(monitor.DefaultTrackerConfig(), nil)
		detector := monitor.NewDetector(monitor.DefaultDetectorConfig(), sampler, tracker, store, nil)
		watcher := daemon.NewWatcher(daemon.DefaultWatcherConfig(), nil, detector, tracker, nil, nil)
		engine := policy.NewEngine(nil)
		smart := policy.NewSmartBlocker(store, nil)

		srv = api.NewServer(api.DefaultConfig(), api.Deps{
			Checker:  usecase.NewAccessChecker(store, store, engine, detector, smart, nil),
			Stats:    usecase.NewStatsService(store, store, detector, tracker, nil),
			Rules:    store,
			Engine:   engine,
			Focus:    sampler,
			Activity: tracker,
			Session:  detector,
			Liveness: watcher,
			Version:  "integration",
		}, nil)
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	It("should answer check-block from persisted rules", func() {
		w := do(http.MethodPost, "/api/check-block?url=https://www.facebook.com/feed", "")
		Expect(w.Code).To(Equal(http.StatusOK))

		var d domain.BlockDecision
		Expect(json.Unmarshal(w.Body.Bytes(), &d)).To(Succeed())
		Expect(d.ShouldBlock).To(BeTrue())
		Expect(d.Action).To(Equal(domain.ActionBlock))
	})

	It("should create, toggle and delete a rule", func() {
		w := do(http.MethodPost, "/api/rules", `{"name":"HN","domain_pattern":"news.ycombinator.com","action":"delay","delay_minutes":2}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
		var created domain.Rule
		Expect(json.Unmarshal(w.Body.Bytes(), &created)).To(Succeed())
		Expect(created.ID).To(BeNumerically(">", 0))

		w = do(http.MethodPost, "/api/check-block?url=https://news.ycombinator.com", "")
		var d domain.BlockDecision
		Expect(json.Unmarshal(w.Body.Bytes(), &d)).To(Succeed())
		Expect(*d.DelaySeconds).To(Equal(120))

		id := strconv.FormatInt(created.ID, 10)
		w = do(http.MethodPost, "/api/rules/"+id+"/toggle", "")
		Expect(w.Code).To(Equal(http.StatusOK))

		w = do(http.MethodPost, "/api/check-block?url=https://news.ycombinator.com", "")
		Expect(json.Unmarshal(w.Body.Bytes(), &d)).To(Succeed())
		Expect(d.ShouldBlock).To(BeFalse())

		Expect(do(http.MethodDelete, "/api/rules/"+id, "").Code).To(Equal(http.StatusOK))
		Expect(do(http.MethodDelete, "/api/rules/"+id, "").Code).To(Equal(http.StatusNotFound))
	})

	It("should reject an invalid rule without storing it", func() {
		before, err := store.List(context.Background())
		Expect(err).NotTo(HaveOccurred())

		w := do(http.MethodPost, "/api/rules", `{"name":"","domain_pattern":"","action":"explode"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))

		after, err := store.List(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(after).To(HaveLen(len(before)))
	})

	It("should fold posted keystrokes into status", func() {
		Expect(do(http.MethodPost, "/api/activity/keystrokes", `{"count":30}`).Code).To(Equal(http.StatusOK))
		Expect(tracker.Total()).To(BeEquivalentTo(30))

		w := do(http.MethodGet, "/api/status", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		var status dto.StatusResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &status)).To(Succeed())
		Expect(status.KeystrokesPerMinute).To(BeNumerically(">", 0))
		Expect(status.CurrentApp).To(Equal(domain.UnknownProcess))
		Expect(status.IsIDEActive).To(BeFalse())

		sampler.Poll(context.Background())
		w = do(http.MethodGet, "/api/status", "")
		Expect(json.Unmarshal(w.Body.Bytes(), &status)).To(Succeed())
		Expect(status.CurrentApp).To(Equal("Code"))
		Expect(status.IsIDEActive).To(BeTrue())
	})
})
