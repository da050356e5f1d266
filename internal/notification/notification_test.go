package notification_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/kitchen-ops/internal"
	"github.com/frahmantamala/kitchen-ops/internal/auth"
	"github.com/frahmantamala/kitchen-ops/internal/core/database"
	"github.com/frahmantamala/kitchen-ops/internal/core/database/dbtest"
	"github.com/frahmantamala/kitchen-ops/internal/core/events"
	"github.com/frahmantamala/kitchen-ops/internal/notification"
	notificationPostgres "github.com/frahmantamala/kitchen-ops/internal/notification/postgres"
	"github.com/frahmantamala/kitchen-ops/internal/staff"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// blockingSender holds every send until its context ends.
type blockingSender struct {
	started chan struct{}
}

func (b *blockingSender) Send(ctx context.Context, _ *notification.Notification) error {
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

func snapshot() events.TransferSnapshot {
	return events.TransferSnapshot{
		TransferID: "tr-1",
		TaskID:     "t1",
		TaskType:   "workflow_task",
		FromUserID: 1,
		ToUserID:   2,
		Status:     "pending",
		Metadata:   map[string]any{"station": "grill"},
	}
}

var _ = Describe("Notifications", func() {
	var (
		handles *database.Handles
		repo    *notificationPostgres.NotificationRepository
		ctx     context.Context
	)

	BeforeEach(func() {
		var err error
		handles, err = dbtest.Open()
		Expect(err).NotTo(HaveOccurred())
		repo = notificationPostgres.NewNotificationRepository(handles.Gorm)
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(handles.Close()).To(Succeed())
	})

	Describe("Recorder", func() {
		var bus *events.EventBus

		BeforeEach(func() {
			bus = events.NewEventBus(quiet)
			notification.NewRecorder(repo, quiet).RegisterEventHandlers(bus)
		})

		It("stores user-addressed events", func() {
			event := events.NewTransferRequestedEvent(events.ToUser(2), snapshot())
			Expect(bus.PublishSync(ctx, event)).To(Succeed())

			items, err := repo.ListForRecipient(ctx, 2, nil, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].EventID).To(Equal(event.EventID()))
			Expect(items[0].Type).To(Equal(events.EventTypeTransferRequested))
			Expect(items[0].Title).To(Equal("Task transfer request"))
			Expect(items[0].RecipientRole).To(BeNil())
			Expect(items[0].Payload).To(HaveKeyWithValue("transfer_id", "tr-1"))
			Expect(items[0].Delivered()).To(BeFalse())
		})

		It("stores role-addressed events without a user", func() {
			Expect(bus.PublishSync(ctx, events.NewTransferRequestedEvent(events.ToRole(events.RoleTransferApprover), snapshot()))).To(Succeed())

			pending, err := repo.ListUndelivered(ctx, 10, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))
			Expect(pending[0].RecipientUserID).To(BeNil())
			Expect(*pending[0].RecipientRole).To(Equal(events.RoleTransferApprover))
			Expect(pending[0].Title).To(Equal("Task transfer awaiting approval"))
		})

		It("rejects foreign events", func() {
			r := notification.NewRecorder(repo, quiet)
			err := r.HandleTransferEvent(ctx, events.BaseEvent{ID: "x", Type: events.EventTypeTransferCancelled})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("NotificationRepository", func() {
		It("stops listing rows once attempts reach the cap", func() {
			n := &notification.Notification{EventID: "e1", Type: events.EventTypeTransferCancelled, Title: "t"}
			Expect(repo.Create(ctx, n)).To(Succeed())
			Expect(repo.RecordFailure(ctx, n.ID, "boom")).To(Succeed())
			Expect(repo.RecordFailure(ctx, n.ID, "boom again")).To(Succeed())

			pending, err := repo.ListUndelivered(ctx, 3, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))
			Expect(pending[0].Attempts).To(Equal(2))
			Expect(*pending[0].LastError).To(Equal("boom again"))

			pending, err = repo.ListUndelivered(ctx, 2, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeEmpty())
		})

		It("lists role-addressed rows only when the role is requested", func() {
			recorder := notification.NewRecorder(repo, quiet)
			Expect(recorder.HandleTransferEvent(ctx, events.NewTransferRequestedEvent(events.ToUser(2), snapshot()))).To(Succeed())
			Expect(recorder.HandleTransferEvent(ctx, events.NewTransferRequestedEvent(events.ToRole(events.RoleTransferApprover), snapshot()))).To(Succeed())
			Expect(recorder.HandleTransferEvent(ctx, events.NewTransferCancelledEvent(events.ToUser(3), snapshot()))).To(Succeed())

			own, err := repo.ListForRecipient(ctx, 2, nil, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(own).To(HaveLen(1))
			Expect(*own[0].RecipientUserID).To(Equal(int64(2)))

			withRole, err := repo.ListForRecipient(ctx, 2, []string{events.RoleTransferApprover}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(withRole).To(HaveLen(2))
			Expect(withRole).To(ContainElement(HaveField("RecipientRole", HaveValue(Equal(events.RoleTransferApprover)))))
		})

		It("hides delivered rows", func() {
			n := &notification.Notification{EventID: "e1", Type: events.EventTypeTransferCancelled, Title: "t"}
			Expect(repo.Create(ctx, n)).To(Succeed())
			Expect(repo.MarkDelivered(ctx, n.ID, time.Now().UTC())).To(Succeed())

			pending, err := repo.ListUndelivered(ctx, 10, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeEmpty())
		})
	})

	Describe("WebhookSender", func() {
		It("retries server errors until the webhook accepts", func() {
			var calls atomic.Int32
			var received atomic.Value
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) < 3 {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				var body map[string]any
				_ = json.NewDecoder(r.Body).Decode(&body)
				received.Store(body)
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			sender := notification.NewWebhookSender(server.URL, time.Second, 5*time.Second).WithInitialInterval(5 * time.Millisecond)
			err := sender.Send(ctx, &notification.Notification{ID: "n1", Type: "transfer_requested", Title: "hello"})
			Expect(err).NotTo(HaveOccurred())
			Expect(calls.Load()).To(Equal(int32(3)))
			Expect(received.Load()).To(HaveKeyWithValue("title", "hello"))
		})

		It("gives up immediately on client errors", func() {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusBadRequest)
			}))
			defer server.Close()

			sender := notification.NewWebhookSender(server.URL, time.Second, 5*time.Second).WithInitialInterval(5 * time.Millisecond)
			err := sender.Send(ctx, &notification.Notification{ID: "n1"})
			Expect(err).To(MatchError(ContainSubstring("status 400")))
			Expect(err).To(MatchError(internal.NewExternalError("", internal.ErrCodeDeliveryFailed, nil)))
			Expect(internal.HasCode(err, internal.ErrCodeDeliveryFailed)).To(BeTrue())
			Expect(calls.Load()).To(Equal(int32(1)))
		})
	})

	Describe("Deliverer", func() {
		var (
			delivered atomic.Int32
			failing   atomic.Bool
			server    *httptest.Server
			deliverer *notification.Deliverer
		)

		BeforeEach(func() {
			delivered.Store(0)
			failing.Store(false)
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if failing.Load() {
					w.WriteHeader(http.StatusUnprocessableEntity)
					return
				}
				delivered.Add(1)
				w.WriteHeader(http.StatusOK)
			}))
			sender := notification.NewWebhookSender(server.URL, time.Second, time.Second).WithInitialInterval(5 * time.Millisecond)
			deliverer = notification.NewDeliverer(notification.DelivererConfig{
				MaxWorkers:   2,
				BatchSize:    10,
				PollInterval: 20 * time.Millisecond,
				MaxAttempts:  2,
			}, repo, sender, quiet)
		})

		AfterEach(func() {
			server.Close()
		})

		run := func() (context.CancelFunc, chan error) {
			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- deliverer.Run(runCtx) }()
			return cancel, done
		}

		It("delivers every pending notification once", func() {
			for i := 0; i < 3; i++ {
				Expect(repo.Create(ctx, &notification.Notification{EventID: "e", Type: events.EventTypeTaskTransferred, Title: "t"})).To(Succeed())
			}

			cancel, done := run()
			Eventually(func() ([]*notification.Notification, error) {
				return repo.ListUndelivered(ctx, 10, 10)
			}, 2*time.Second, 20*time.Millisecond).Should(BeEmpty())
			cancel()
			Eventually(done).Should(Receive(BeNil()))

			Expect(delivered.Load()).To(Equal(int32(3)))
		})

		It("does not count sends interrupted by shutdown as attempts", func() {
			sender := &blockingSender{started: make(chan struct{}, 1)}
			deliverer = notification.NewDeliverer(notification.DelivererConfig{
				MaxWorkers:   1,
				PollInterval: 20 * time.Millisecond,
				MaxAttempts:  2,
			}, repo, sender, quiet)
			n := &notification.Notification{EventID: "e", Type: events.EventTypeTransferRequested, Title: "t"}
			Expect(repo.Create(ctx, n)).To(Succeed())

			cancel, done := run()
			Eventually(sender.started, 2*time.Second).Should(Receive())
			cancel()
			Eventually(done, 2*time.Second).Should(Receive(BeNil()))

			remaining, err := repo.ListUndelivered(ctx, 10, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(remaining).To(HaveLen(1))
			Expect(remaining[0].Attempts).To(BeZero())
			Expect(remaining[0].LastError).To(BeNil())
		})

		It("records failures and stops after the attempt cap", func() {
			failing.Store(true)
			n := &notification.Notification{EventID: "e", Type: events.EventTypeTransferCancelled, Title: "t"}
			Expect(repo.Create(ctx, n)).To(Succeed())

			cancel, done := run()
			Eventually(func() ([]*notification.Notification, error) {
				return repo.ListUndelivered(ctx, 2, 10)
			}, 2*time.Second, 20*time.Millisecond).Should(BeEmpty())
			cancel()
			Eventually(done).Should(Receive(BeNil()))

			remaining, err := repo.ListUndelivered(ctx, 10, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(remaining).To(HaveLen(1))
			Expect(remaining[0].Attempts).To(Equal(2))
			Expect(*remaining[0].LastError).To(ContainSubstring("status 422"))
		})
	})

	Describe("Handler", func() {
		var handler *notification.Handler

		list := func(u *auth.User) []map[string]any {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
			req = req.WithContext(auth.ContextWithUser(req.Context(), u))
			rec := httptest.NewRecorder()
			handler.ListMine(rec, req)
			Expect(rec.Code).To(Equal(http.StatusOK))
			var body struct {
				Notifications []map[string]any `json:"notifications"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			return body.Notifications
		}

		BeforeEach(func() {
			handler = notification.NewHandler(repo, staff.NewApprovalPolicy(), "")
			recorder := notification.NewRecorder(repo, quiet)
			Expect(recorder.HandleTransferEvent(ctx, events.NewTransferRequestedEvent(events.ToUser(2), snapshot()))).To(Succeed())
			Expect(recorder.HandleTransferEvent(ctx, events.NewTransferRequestedEvent(events.ToRole(events.RoleTransferApprover), snapshot()))).To(Succeed())
		})

		It("includes approval-queue rows for a manager", func() {
			items := list(&auth.User{ID: 2, Role: staff.RoleManager})
			Expect(items).To(HaveLen(2))
			Expect(items).To(ContainElement(HaveKeyWithValue("recipient_role", events.RoleTransferApprover)))
		})

		It("includes approval-queue rows for an approve_transfers holder", func() {
			items := list(&auth.User{ID: 9, Role: "cook", Permissions: []string{staff.PermissionApproveTransfers}})
			Expect(items).To(HaveLen(1))
			Expect(items[0]).To(HaveKeyWithValue("recipient_role", events.RoleTransferApprover))
		})

		It("shows a cook only their own rows", func() {
			items := list(&auth.User{ID: 2, Role: "cook"})
			Expect(items).To(HaveLen(1))
			Expect(items[0]).NotTo(HaveKey("recipient_role"))
		})
	})
})
