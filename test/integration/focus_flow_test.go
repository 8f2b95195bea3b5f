//go:build integration

package integration

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/focusd/deepfocus/internal/daemon"
	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
	"github.com/eliteGoblin/focusd/deepfocus/internal/infra"
	"github.com/eliteGoblin/focusd/deepfocus/internal/monitor"
	"github.com/eliteGoblin/focusd/deepfocus/internal/policy"
	"github.com/eliteGoblin/focusd/deepfocus/internal/usecase"
	"github.com/eliteGoblin/focusd/deepfocus/test/fixtures"
)

var _ = Describe("Focus flow", func() {
	var (
		ctx      context.Context
		tmpDir   string
		store    *infra.EncryptedStore
		desktop  *fixtures.FakeDesktop
		sampler  *monitor.Sampler
		tracker  *monitor.Tracker
		detector *monitor.Detector
		smart    *policy.SmartBlocker
		checker  *usecase.AccessChecker
		stats    *usecase.StatsService
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		tmpDir, err = os.MkdirTemp("", "deepfocus-integration-*")
		Expect(err).NotTo(HaveOccurred())

		key, err := infra.EnsureKey(infra.NewFileKeyProvider(tmpDir))
		Expect(err).NotTo(HaveOccurred())
		store, err = infra.NewEncryptedStore(tmpDir, key)
		Expect(err).NotTo(HaveOccurred())

		seeded, err := store.SeedRules(ctx, policy.DefaultRules())
		Expect(err).NotTo(HaveOccurred())
		Expect(seeded).To(BeTrue())

		desktop = fixtures.NewFakeDesktop("Finder")
		sampler = monitor.NewSampler(monitor.DefaultSamplerConfig(), desktop, nil, nil)
		tracker = monitor.NewTracker(monitor.DefaultTrackerConfig(), nil)
		detector = monitor.NewDetector(monitor.DefaultDetectorConfig(), sampler, tracker, store, nil)
		smart = policy.NewSmartBlocker(store, nil)
		checker = usecase.NewAccessChecker(store, store, policy.NewEngine(nil), detector, smart, nil)
		stats = usecase.NewStatsService(store, store, detector, tracker, nil)
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	Describe("checking destinations while idle", func() {
		It("should block, delay, and gate by focus time per the default rules", func() {
			d, err := checker.Check(ctx, "https://twitter.com/home")
			Expect(err).NotTo(HaveOccurred())
			Expect(d.ShouldBlock).To(BeTrue())
			Expect(d.Action).To(Equal(domain.ActionBlock))

			d, err = checker.Check(ctx, "https://www.reddit.com/r/golang")
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Action).To(Equal(domain.ActionDelay))
			Expect(*d.DelaySeconds).To(Equal(300))

			d, err = checker.Check(ctx, "https://www.youtube.com/watch?v=1")
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Action).To(Equal(domain.ActionConditional))
			Expect(*d.RemainingFocusTime).To(Equal(30 * 60))

			d, err = checker.Check(ctx, "https://go.dev/doc")
			Expect(err).NotTo(HaveOccurred())
			Expect(d.ShouldBlock).To(BeFalse())
		})

		It("should log one block event per restricted check", func() {
			for _, u := range []string{"https://twitter.com", "https://tiktok.com", "https://go.dev"} {
				_, err := checker.Check(ctx, u)
				Expect(err).NotTo(HaveOccurred())
			}

			n, err := store.CountBlocksSince(ctx, time.Now().Add(-time.Minute))
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))

			today, err := stats.TodayStats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(today.DistractionsBlocked).To(Equal(2))
			Expect(today.TotalSessions).To(BeZero())
		})

		It("should see rule changes immediately", func() {
			rules, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			var twitter domain.Rule
			for _, r := range rules {
				if r.Name == "Twitter/X" {
					twitter = r
				}
			}
			_, err = store.Toggle(ctx, twitter.ID)
			Expect(err).NotTo(HaveOccurred())

			d, err := checker.Check(ctx, "https://twitter.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(d.ShouldBlock).To(BeFalse())
		})
	})

	Describe("the coding session lifecycle", func() {
		It("should start a session while typing in an IDE and persist it when focus leaves", func() {
			desktop.Focus("Code", "main.go - deepfocus")
			tracker.RecordEvents(40)

			Expect(detector.Tick(ctx)).To(BeNil())
			Expect(detector.IsCoding()).To(BeTrue())

			current, err := stats.CurrentSession(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(current.Active).To(BeTrue())
			Expect(current.StartTime).NotTo(BeNil())

			desktop.Focus("Firefox", "Hacker News")
			summary := detector.Tick(ctx)
			Expect(summary).NotTo(BeNil())
			Expect(summary.TotalKeystrokes).To(Equal(int64(40)))
			Expect(detector.IsCoding()).To(BeFalse())

			saved, err := store.SessionsSince(ctx, time.Now().Add(-time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(saved).To(HaveLen(1))
			Expect(saved[0].ID).To(Equal(summary.ID))
			Expect(saved[0].PrimaryApp).To(Equal("Code"))

			today, err := stats.TodayStats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(today.TotalSessions).To(Equal(1))
		})

		It("should stay idle when the screen is locked", func() {
			desktop.Lock()
			tracker.RecordEvents(100)
			Expect(detector.Tick(ctx)).To(BeNil())
			Expect(detector.IsCoding()).To(BeFalse())
		})
	})

	Describe("productivity scores", func() {
		It("should soften a hard block for a work-related destination and survive a restart", func() {
			d, ok := checker.UpdateScore(ctx, "TikTok.com", 0.9)
			Expect(ok).To(BeTrue())
			Expect(d).To(Equal(0.9))

			decision, err := checker.Check(ctx, "https://tiktok.com/@golang")
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Action).To(Equal(domain.ActionDelay))
			Expect(*decision.DelaySeconds).To(Equal(policy.HighScoreDelaySeconds))

			reloaded := policy.NewSmartBlocker(store, nil)
			Expect(reloaded.Load(ctx)).To(Succeed())
			score, found := reloaded.Score("tiktok.com")
			Expect(found).To(BeTrue())
			Expect(score).To(Equal(0.9))
		})

		It("should count overrides and mark the blocked visit", func() {
			_, err := checker.Check(ctx, "https://reddit.com/r/all")
			Expect(err).NotTo(HaveOccurred())

			for i := 1; i <= 2; i++ {
				dest, n, err := checker.RecordOverride(ctx, "https://reddit.com/r/all")
				Expect(err).NotTo(HaveOccurred())
				Expect(dest).To(Equal("reddit.com"))
				Expect(n).To(Equal(i))
			}

			marked, err := store.MarkOverridden(ctx, "reddit.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(marked).To(BeFalse())
		})
	})

	Describe("the watcher", func() {
		It("should pump keyboard events and drive the detector", func() {
			desktop.Focus("GoLand", "")
			w := daemon.NewWatcher(
				daemon.WatcherConfig{PollInterval: 20 * time.Millisecond, KeyBuffer: 16},
				nil, detector, tracker,
				fixtures.TypingKeyboard{Presses: 25},
				nil,
			)
			Expect(w.Start(ctx)).To(Succeed())
			defer w.Stop()

			Eventually(tracker.Total, 2*time.Second, 10*time.Millisecond).Should(BeEquivalentTo(25))
			Eventually(detector.IsCoding, 2*time.Second, 10*time.Millisecond).Should(BeTrue())
			Expect(sampler.Current().Category).To(Equal(domain.CategoryIDE))
		})
	})
})
