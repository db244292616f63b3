//go:build integration

package integration

import (
	"bytes"
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/reelgate/internal/daemon"
	"github.com/eliteGoblin/focusd/reelgate/internal/domain"
	"github.com/eliteGoblin/focusd/reelgate/internal/infra"
	"github.com/eliteGoblin/focusd/reelgate/internal/matcher"
	"github.com/eliteGoblin/focusd/reelgate/internal/policy"
	"github.com/eliteGoblin/focusd/reelgate/internal/snapshot"
	"github.com/eliteGoblin/focusd/reelgate/internal/usecase"
	"github.com/eliteGoblin/focusd/reelgate/test/fixtures"
)

const pkg = fixtures.InstagramPackage

var _ = Describe("Gating pipeline", func() {
	var (
		tmpDir  string
		store   *infra.EncryptedStore
		overlay *fixtures.RecordingOverlay
		logger  *zap.Logger
	)

	newController := func(debounce time.Duration) *usecase.GatingController {
		rules := policy.ToRuleSet(policy.NewInstagramReelsPolicy())
		return usecase.NewGatingController(
			usecase.ControllerConfig{PackageName: pkg, DebounceInterval: debounce},
			matcher.New(rules, logger), store, overlay, usecase.SystemClock{}, logger,
		)
	}

	replay := func(ctrl *usecase.GatingController, session *fixtures.Session) *daemon.Monitor {
		source := snapshot.NewStreamSource(bytes.NewReader(session.Bytes()), logger)
		monitor := daemon.NewMonitor(
			daemon.MonitorConfig{HeartbeatInterval: time.Hour, Version: "test"},
			ctrl, source, overlay, store, os.Getpid(), logger,
		)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		Expect(monitor.Run(ctx)).To(Succeed())
		return monitor
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "reelgate-integration-*")
		Expect(err).NotTo(HaveOccurred())

		store, err = infra.OpenStore(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		overlay = fixtures.NewRecordingOverlay()
		logger = zap.NewNop()
	})

	AfterEach(func() {
		store.Close()
		os.RemoveAll(tmpDir)
	})

	Describe("replaying an event stream", func() {
		Context("when the user opens the Reels viewer", func() {
			It("should show the overlay once and record the blocked state", func() {
				ctrl := newController(0)
				session := fixtures.NewSession().
					Foreground(pkg).
					Content(pkg, fixtures.HomeFeedTree()).
					Content(pkg, fixtures.ReelsViewerTree()).
					Content(pkg, fixtures.ReelsViewerTree())

				monitor := replay(ctrl, session)

				Expect(overlay.Shows()).To(Equal(1))
				Expect(ctrl.State()).To(Equal(domain.StateBlocked))
				Expect(monitor.Stats().Scans).To(Equal(2))

				status, err := store.MonitorStatus()
				Expect(err).NotTo(HaveOccurred())
				Expect(status).NotTo(BeNil())
				Expect(status.State).To(Equal(domain.StateBlocked))
			})
		})

		Context("when a reel is nested under the ignored Reels tab", func() {
			It("should still block", func() {
				ctrl := newController(0)
				replay(ctrl, fixtures.NewSession().Content(pkg, fixtures.ReelInFeedTree()))
				Expect(overlay.Shows()).To(Equal(1))
			})
		})

		Context("when the viewer appears within the debounce interval", func() {
			It("should not scan the second frame", func() {
				ctrl := newController(policy.DefaultDebounceInterval)
				session := fixtures.NewSession().
					Foreground(pkg).
					Content(pkg, fixtures.HomeFeedTree()).
					Content(pkg, fixtures.ReelsViewerTree())

				monitor := replay(ctrl, session)

				Expect(overlay.Shows()).To(Equal(0))
				Expect(monitor.Stats().Scans).To(Equal(1))
			})
		})

		Context("when the user switches to another app", func() {
			It("should ignore that app's trees and return to idle", func() {
				ctrl := newController(0)
				session := fixtures.NewSession().
					Foreground("com.android.chrome").
					Content("com.android.chrome", fixtures.ReelsViewerTree())

				replay(ctrl, session)

				Expect(overlay.Shows()).To(Equal(0))
				Expect(ctrl.State()).To(Equal(domain.StateIdle))
			})
		})

		Context("when the stream contains malformed lines", func() {
			It("should skip them and keep gating", func() {
				ctrl := newController(0)
				session := fixtures.NewSession().
					Raw(`{"kind":"CONTENT_CHANGED",`).
					Raw(`{"kind":"SCROLLED","package":"com.instagram.android"}`).
					Content(pkg, fixtures.ReelsViewerTree())

				monitor := replay(ctrl, session)

				Expect(overlay.Shows()).To(Equal(1))
				Expect(monitor.Stats().Events).To(Equal(1))
			})
		})

		Context("when the viewer is nested deeper than the depth bound", func() {
			It("should not block", func() {
				ctrl := newController(0)
				replay(ctrl, fixtures.NewSession().
					Content(pkg, fixtures.DeepChain(matcher.DefaultMaxDepth+10, "clips_viewer_view_pager")))
				Expect(overlay.Shows()).To(Equal(0))
			})
		})
	})

	Describe("schedule window", func() {
		Context("when now is inside the allowed window", func() {
			It("should let the user watch", func() {
				now := time.Now()
				if now.Hour() == 23 && now.Minute() >= 50 {
					Skip("window would wrap past midnight")
				}
				Expect(store.SetSchedule(now.Hour(), now.Minute())).To(Succeed())

				ctrl := newController(0)
				res := ctrl.HandleEvent(domain.Event{
					Kind:     domain.EventContentChanged,
					Package:  pkg,
					Snapshot: func() (domain.UINode, error) { return fixtures.ReelsViewerTree(), nil },
				})

				Expect(res.Matched).To(BeTrue())
				Expect(res.InAllowedWindow).To(BeTrue())
				Expect(overlay.Shows()).To(Equal(0))
			})
		})
	})

	Describe("unlocking", func() {
		var (
			passwords *infra.PasswordManager
			unlocker  *usecase.Unlocker
		)

		BeforeEach(func() {
			passwords = infra.NewPasswordManager(store)
			Expect(passwords.SetPassword("let me watch")).To(Succeed())
			unlocker = usecase.NewUnlocker(passwords, store, overlay, usecase.SystemClock{}, logger)
		})

		Context("with the correct password", func() {
			It("should dismiss the overlay and suspend blocking", func() {
				ctrl := newController(0)
				reels := domain.Event{
					Kind:     domain.EventContentChanged,
					Package:  pkg,
					Snapshot: func() (domain.UINode, error) { return fixtures.ReelsViewerTree(), nil },
				}
				Expect(ctrl.HandleEvent(reels).Triggered).To(BeTrue())

				Expect(unlocker.Unlock("let me watch")).To(Succeed())
				Expect(overlay.Dismisses()).To(Equal(1))

				Eventually(overlay.Hidden()).Should(Receive())
				ctrl.OverlayHidden()
				Expect(ctrl.State()).To(Equal(domain.StateForegroundTarget))

				res := ctrl.HandleEvent(reels)
				Expect(res.Skipped).To(Equal(domain.SkipBlockingDisabled))
				Expect(overlay.Shows()).To(Equal(1))

				enabled, err := store.BlockingEnabled()
				Expect(err).NotTo(HaveOccurred())
				Expect(enabled).To(BeFalse())
			})
		})

		Context("with a wrong password", func() {
			It("should keep blocking and lock out retries", func() {
				Expect(unlocker.Unlock("nope")).To(MatchError(usecase.ErrWrongPassword))
				Expect(unlocker.Unlock("let me watch")).To(MatchError(usecase.ErrLockedOut))

				enabled, err := store.BlockingEnabled()
				Expect(err).NotTo(HaveOccurred())
				Expect(enabled).To(BeTrue())
				Expect(overlay.Dismisses()).To(Equal(0))
			})
		})
	})
})
