package transfer_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/kitchen-ops/internal"
	taskDatamodel "github.com/frahmantamala/kitchen-ops/internal/core/datamodel/task"
	"github.com/frahmantamala/kitchen-ops/internal/core/events"
	"github.com/frahmantamala/kitchen-ops/internal/tasks"
	tasksPostgres "github.com/frahmantamala/kitchen-ops/internal/tasks/postgres"
	"github.com/frahmantamala/kitchen-ops/internal/transfer"
)

// writeThenFail applies the real reassignment and then reports an error.
type writeThenFail struct {
	store tasks.Store
}

func (w writeThenFail) Reassign(ctx context.Context, r tasks.Reassignment) error {
	if err := w.store.Reassign(ctx, r); err != nil {
		return err
	}
	return errors.New("downstream sync failed")
}

var _ = Describe("Transfer Service", func() {
	var (
		e   *env
		ctx context.Context
	)

	BeforeEach(func() {
		e = newEnv()
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(e.handles.Close()).To(Succeed())
	})

	propose := func(from, to int64, taskID, taskType string) (*transfer.TransferRequest, error) {
		return e.service.Propose(ctx, from, transfer.ProposeTransferDTO{
			TaskID:   taskID,
			TaskType: taskType,
			ToUserID: to,
		})
	}

	Describe("Propose", func() {
		It("rejects transfers to oneself without creating a record", func() {
			_, err := propose(ana, ana, "t1", "workflow_task")
			Expect(errors.Is(err, transfer.ErrSameParty)).To(BeTrue())
			Expect(e.transferCount()).To(BeZero())
		})

		It("rejects unknown and deactivated parties", func() {
			_, err := propose(ana, 99, "t1", "workflow_task")
			Expect(errors.Is(err, transfer.ErrUnknownParty)).To(BeTrue())

			_, err = propose(ana, ghost, "t1", "workflow_task")
			Expect(internal.HasCode(err, internal.ErrCodeUnknownParty)).To(BeTrue())

			_, err = propose(ghost, ana, "t1", "workflow_task")
			Expect(errors.Is(err, transfer.ErrUnknownParty)).To(BeTrue())
			Expect(e.transferCount()).To(BeZero())
		})

		It("validates the payload", func() {
			_, err := propose(ana, ben, "", "workflow_task")
			Expect(internal.HasCode(err, internal.ErrCodeValidationFailed)).To(BeTrue())

			_, err = propose(ana, ben, "t1", "Workflow Task!")
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			details := appErr.Details.(internal.ValidationErrors)
			Expect(details.Errors[0].Code).To(Equal(string(internal.ErrCodeInvalidTaskType)))
		})

		It("applies the default profile when none is stored", func() {
			req, err := propose(ana, ben, "t1", "workflow_task")
			Expect(err).NotTo(HaveOccurred())
			Expect(req.ID).NotTo(BeEmpty())
			Expect(req.Status).To(Equal(transfer.StatusPendingApproval))
			Expect(req.RequestedAt).To(BeTemporally("==", e.clock.Now()))

			requested := e.emitter.OfType(events.EventTypeTransferRequested)
			Expect(requested).To(HaveLen(1))
			Expect(requested[0].Recipient.Role).To(Equal(events.RoleTransferApprover))
		})

		It("creates pending requests addressed to the recipient when no approval is needed", func() {
			e.setProfile(ana, 5, false)
			reason := "leaving early"
			req, err := e.service.Propose(ctx, ana, transfer.ProposeTransferDTO{
				TaskID:   "ci-1",
				TaskType: "checklist_item",
				ToUserID: ben,
				Reason:   &reason,
				Metadata: map[string]any{"checklist_run_id": "run-1"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(req.Status).To(Equal(transfer.StatusPending))

			stored, err := e.ledger.GetByID(ctx, req.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*stored.Reason).To(Equal(reason))
			Expect(stored.Metadata).To(HaveKeyWithValue("checklist_run_id", "run-1"))

			requested := e.emitter.OfType(events.EventTypeTransferRequested)
			Expect(requested).To(HaveLen(1))
			Expect(requested[0].Recipient.UserID).To(Equal(ben))
			Expect(requested[0].Transfer.Reason).To(Equal(reason))
		})

		It("keeps unrecognised task types as given", func() {
			e.setProfile(ana, 5, false)
			req, err := propose(ana, ben, "x-9", "prep_list")
			Expect(err).NotTo(HaveOccurred())
			Expect(req.TaskType).To(Equal(transfer.TaskType("prep_list")))
		})

		DescribeTable("enforces the daily limit for every N",
			func(limit int) {
				e.setProfile(ana, limit, false)
				for i := 0; i < limit; i++ {
					_, err := propose(ana, ben, "t1", "workflow_task")
					Expect(err).NotTo(HaveOccurred())
				}

				_, err := propose(ana, ben, "t1", "workflow_task")
				Expect(errors.Is(err, transfer.ErrDailyLimitExceeded)).To(BeTrue())
				appErr, _ := internal.IsAppError(err)
				Expect(appErr.Details).To(HaveKeyWithValue("limit", limit))
				Expect(e.transferCount()).To(Equal(int64(limit)))
			},
			Entry("N=0", 0),
			Entry("N=1", 1),
			Entry("N=3", 3),
		)

		It("counts every proposal of the day regardless of its outcome", func() {
			e.setProfile(ana, 1, false)
			req, err := propose(ana, ben, "t1", "workflow_task")
			Expect(err).NotTo(HaveOccurred())
			_, err = e.service.Cancel(ctx, req.ID, ana)
			Expect(err).NotTo(HaveOccurred())

			_, err = propose(ana, ben, "t1", "workflow_task")
			Expect(errors.Is(err, transfer.ErrDailyLimitExceeded)).To(BeTrue())
		})

		It("resets the limit at the sender's local midnight", func() {
			Expect(e.handles.Gorm.Exec("UPDATE users SET timezone = ? WHERE id = ?", "Asia/Jakarta", ana).Error).To(Succeed())
			e.setProfile(ana, 1, false)

			// 23:30 in Jakarta on the 10th
			e.clock.Set(time.Date(2026, 3, 10, 16, 30, 0, 0, time.UTC))
			_, err := propose(ana, ben, "t1", "workflow_task")
			Expect(err).NotTo(HaveOccurred())

			// 00:30 in Jakarta on the 11th, still the 10th in UTC
			e.clock.Set(time.Date(2026, 3, 10, 17, 30, 0, 0, time.UTC))
			_, err = propose(ana, ben, "t1", "workflow_task")
			Expect(err).NotTo(HaveOccurred())

			e.clock.Set(time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC))
			_, err = propose(ana, ben, "t1", "workflow_task")
			Expect(errors.Is(err, transfer.ErrDailyLimitExceeded)).To(BeTrue())
		})

		It("enforces department restrictions case-insensitively", func() {
			e.setProfile(ana, 5, false, "boh")

			_, err := propose(ana, cara, "t1", "workflow_task")
			Expect(errors.Is(err, transfer.ErrDepartmentNotAllowed)).To(BeTrue())
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.Details).To(HaveKeyWithValue("department", "FOH"))
			Expect(appErr.StatusCode).To(Equal(422))

			_, err = propose(ana, ben, "t1", "workflow_task")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("the two-person scenario", func() {
		It("transfers, counts and then rejects on the limit", func() {
			e.setProfile(ana, 2, false, "BOH")

			req, err := propose(ana, ben, "t1", "workflow_task")
			Expect(err).NotTo(HaveOccurred())
			Expect(req.Status).To(Equal(transfer.StatusPending))

			accepted, err := e.service.Respond(ctx, req.ID, ben, transfer.RespondTransferDTO{Decision: "accepted"})
			Expect(err).NotTo(HaveOccurred())
			Expect(accepted.Status).To(Equal(transfer.StatusAccepted))
			Expect(e.workflowAssignee("t1")).To(Equal(ben))

			moved := e.emitter.OfType(events.EventTypeTaskTransferred)
			Expect(moved).To(HaveLen(1))
			Expect(moved[0].Transfer.TaskID).To(Equal("t1"))
			Expect(moved[0].Transfer.FromUserID).To(Equal(ana))
			Expect(moved[0].Transfer.ToUserID).To(Equal(ben))

			_, err = propose(ana, ben, "t2", "workflow_task")
			Expect(err).NotTo(HaveOccurred())

			_, err = propose(ana, ben, "t2", "workflow_task")
			Expect(errors.Is(err, transfer.ErrDailyLimitExceeded)).To(BeTrue())
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.Details).To(HaveKeyWithValue("limit", 2))
		})
	})

	Describe("Respond", func() {
		var req *transfer.TransferRequest

		BeforeEach(func() {
			e.setProfile(ana, 10, false)
			var err error
			req, err = propose(ana, ben, "t1", "workflow_task")
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects unknown decisions", func() {
			_, err := e.service.Respond(ctx, req.ID, ben, transfer.RespondTransferDTO{Decision: "maybe"})
			Expect(errors.Is(err, transfer.ErrInvalidDecision)).To(BeTrue())
		})

		It("returns not found for unknown ids", func() {
			_, err := e.service.Respond(ctx, "missing", ben, transfer.RespondTransferDTO{Decision: "accepted"})
			Expect(errors.Is(err, transfer.ErrTransferNotFound)).To(BeTrue())
		})

		It("only lets the recipient resolve a pending request", func() {
			_, err := e.service.Respond(ctx, req.ID, ana, transfer.RespondTransferDTO{Decision: "accepted"})
			Expect(errors.Is(err, transfer.ErrNotAuthorized)).To(BeTrue())

			_, err = e.service.Respond(ctx, req.ID, mgr, transfer.RespondTransferDTO{Decision: "accepted"})
			Expect(errors.Is(err, transfer.ErrNotAuthorized)).To(BeTrue())
		})

		It("records a denial without touching the task", func() {
			msg := "busy"
			denied, err := e.service.Respond(ctx, req.ID, ben, transfer.RespondTransferDTO{Decision: "denied", Message: &msg})
			Expect(err).NotTo(HaveOccurred())
			Expect(denied.Status).To(Equal(transfer.StatusDenied))
			Expect(*denied.RespondedBy).To(Equal(ben))
			Expect(e.workflowAssignee("t1")).To(Equal(ana))
			Expect(e.emitter.OfType(events.EventTypeTaskTransferred)).To(BeEmpty())

			responded := e.emitter.OfType(events.EventTypeTransferResponded)
			Expect(responded).To(HaveLen(1))
			Expect(responded[0].Recipient.UserID).To(Equal(ana))
			Expect(responded[0].Transfer.ResponseMessage).To(Equal(msg))

			stored, err := e.ledger.GetByID(ctx, req.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(transfer.StatusDenied))
			Expect(*stored.ResponseMessage).To(Equal(msg))
			Expect(stored.RespondedAt).NotTo(BeNil())
		})

		It("refuses to resolve a request twice", func() {
			_, err := e.service.Respond(ctx, req.ID, ben, transfer.RespondTransferDTO{Decision: "accepted"})
			Expect(err).NotTo(HaveOccurred())

			_, err = e.service.Respond(ctx, req.ID, ben, transfer.RespondTransferDTO{Decision: "denied"})
			Expect(errors.Is(err, transfer.ErrAlreadyResolved)).To(BeTrue())

			_, err = e.service.Cancel(ctx, req.ID, ana)
			Expect(errors.Is(err, transfer.ErrAlreadyResolved)).To(BeTrue())
		})

		It("lets exactly one concurrent responder win", func() {
			const workers = 6
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				wins    int
				losses  int
				unknown []error
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					decision := "accepted"
					if i%2 == 1 {
						decision = "denied"
					}
					_, err := e.service.Respond(ctx, req.ID, ben, transfer.RespondTransferDTO{Decision: decision})
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						wins++
					case errors.Is(err, transfer.ErrAlreadyResolved):
						losses++
					default:
						unknown = append(unknown, err)
					}
				}(i)
			}
			wg.Wait()

			Expect(unknown).To(BeEmpty())
			Expect(wins).To(Equal(1))
			Expect(losses).To(Equal(workers - 1))
			Expect(e.emitter.OfType(events.EventTypeTransferResponded)).To(HaveLen(1))
		})

		It("rolls back the acceptance when the task cannot be reassigned", func() {
			missing, err := propose(ana, ben, "does-not-exist", "workflow_task")
			Expect(err).NotTo(HaveOccurred())

			_, err = e.service.Respond(ctx, missing.ID, ben, transfer.RespondTransferDTO{Decision: "accepted"})
			Expect(errors.Is(err, transfer.ErrReassignmentFailed)).To(BeTrue())
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.Details).To(HaveKey("reason"))

			stored, err := e.ledger.GetByID(ctx, missing.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(transfer.StatusPending))
			Expect(stored.RespondedAt).To(BeNil())
			Expect(e.emitter.OfType(events.EventTypeTransferResponded)).To(BeEmpty())
			Expect(e.emitter.OfType(events.EventTypeTaskTransferred)).To(BeEmpty())
		})

		It("undoes a reassignment that wrote before failing", func() {
			e.dispatcher.Register(transfer.TaskTypeWorkflow, writeThenFail{store: tasksPostgres.NewWorkflowTaskRepository(e.handles.Gorm)})

			req, err := propose(ana, ben, "t1", "workflow_task")
			Expect(err).NotTo(HaveOccurred())

			_, err = e.service.Respond(ctx, req.ID, ben, transfer.RespondTransferDTO{Decision: "accepted"})
			Expect(errors.Is(err, transfer.ErrReassignmentFailed)).To(BeTrue())

			var task taskDatamodel.WorkflowTask
			Expect(e.handles.Gorm.First(&task, "id = ?", "t1").Error).To(Succeed())
			Expect(task.AssigneeID).NotTo(BeNil())
			Expect(*task.AssigneeID).To(Equal(ana))

			var notes int64
			Expect(e.handles.Gorm.Model(&taskDatamodel.WorkflowTaskNote{}).Where("task_id = ?", "t1").Count(&notes).Error).To(Succeed())
			Expect(notes).To(BeZero())

			stored, err := e.ledger.GetByID(ctx, req.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(transfer.StatusPending))
			Expect(stored.RespondedBy).To(BeNil())
			Expect(e.emitter.OfType(events.EventTypeTaskTransferred)).To(BeEmpty())
		})

		It("accepts generic tasks without a reassignment", func() {
			generic, err := propose(ana, ben, "whiteboard-3", "generic")
			Expect(err).NotTo(HaveOccurred())

			accepted, err := e.service.Respond(ctx, generic.ID, ben, transfer.RespondTransferDTO{Decision: "accepted"})
			Expect(err).NotTo(HaveOccurred())
			Expect(accepted.Status).To(Equal(transfer.StatusAccepted))
			Expect(e.emitter.OfType(events.EventTypeTaskTransferred)).To(BeEmpty())
		})

		It("moves checklist items and reviews through their own stores", func() {
			item, err := e.service.Propose(ctx, ana, transfer.ProposeTransferDTO{
				TaskID: "ci-1", TaskType: "checklist_item", ToUserID: ben,
				Metadata: map[string]any{"checklist_run_id": "run-1"},
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = e.service.Respond(ctx, item.ID, ben, transfer.RespondTransferDTO{Decision: "accepted"})
			Expect(err).NotTo(HaveOccurred())

			var ci taskDatamodel.ChecklistRunItem
			Expect(e.handles.Gorm.First(&ci, "id = ?", "ci-1").Error).To(Succeed())
			Expect(*ci.AssigneeID).To(Equal(ben))

			review, err := propose(ana, ben, "rv-1", "review_task")
			Expect(err).NotTo(HaveOccurred())
			_, err = e.service.Respond(ctx, review.ID, ben, transfer.RespondTransferDTO{Decision: "accepted"})
			Expect(err).NotTo(HaveOccurred())

			var rv taskDatamodel.ReviewInstance
			Expect(e.handles.Gorm.First(&rv, "id = ?", "rv-1").Error).To(Succeed())
			Expect(*rv.ResponsibleEmployeeID).To(Equal(ben))
		})
	})

	Describe("approval routing", func() {
		var req *transfer.TransferRequest

		BeforeEach(func() {
			e.setProfile(ana, 10, true)
			var err error
			req, err = propose(ana, ben, "t1", "workflow_task")
			Expect(err).NotTo(HaveOccurred())
			Expect(req.Status).To(Equal(transfer.StatusPendingApproval))
		})

		It("does not let the recipient or a plain employee resolve it", func() {
			_, err := e.service.Respond(ctx, req.ID, ben, transfer.RespondTransferDTO{Decision: "accepted"})
			Expect(errors.Is(err, transfer.ErrNotAuthorized)).To(BeTrue())

			_, err = e.service.Respond(ctx, req.ID, cara, transfer.RespondTransferDTO{Decision: "accepted"})
			Expect(errors.Is(err, transfer.ErrNotAuthorized)).To(BeTrue())
		})

		It("lets an approver accept and runs the reassignment", func() {
			accepted, err := e.service.Respond(ctx, req.ID, mgr, transfer.RespondTransferDTO{Decision: "accepted"})
			Expect(err).NotTo(HaveOccurred())
			Expect(accepted.Status).To(Equal(transfer.StatusAccepted))
			Expect(*accepted.RespondedBy).To(Equal(mgr))
			Expect(e.workflowAssignee("t1")).To(Equal(ben))

			responded := e.emitter.OfType(events.EventTypeTransferResponded)
			Expect(responded).To(HaveLen(2))
			Expect([]int64{responded[0].Recipient.UserID, responded[1].Recipient.UserID}).To(ConsistOf(ana, ben))
		})

		It("never lets an approver approve their own request", func() {
			e.setProfile(mgr, 10, true)
			own, err := propose(mgr, ben, "t2", "workflow_task")
			Expect(err).NotTo(HaveOccurred())

			_, err = e.service.Respond(ctx, own.ID, mgr, transfer.RespondTransferDTO{Decision: "accepted"})
			Expect(errors.Is(err, transfer.ErrNotAuthorized)).To(BeTrue())

			_, err = e.service.Respond(ctx, own.ID, root, transfer.RespondTransferDTO{Decision: "denied"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("lists pending approvals for approvers only", func() {
			_, err := e.service.PendingApprovals(ctx, ben, 0, 0)
			Expect(errors.Is(err, transfer.ErrNotAuthorized)).To(BeTrue())

			e.setProfile(mgr, 10, true)
			_, err = propose(mgr, ben, "t2", "workflow_task")
			Expect(err).NotTo(HaveOccurred())

			pending, err := e.service.PendingApprovals(ctx, mgr, 0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))
			Expect(pending[0].ID).To(Equal(req.ID))

			pending, err = e.service.PendingApprovals(ctx, root, 0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(2))
		})
	})

	Describe("Cancel", func() {
		var req *transfer.TransferRequest

		BeforeEach(func() {
			e.setProfile(ana, 10, false)
			var err error
			req, err = propose(ana, ben, "t1", "workflow_task")
			Expect(err).NotTo(HaveOccurred())
		})

		It("is reserved to the sender", func() {
			_, err := e.service.Cancel(ctx, req.ID, ben)
			Expect(errors.Is(err, transfer.ErrNotAuthorized)).To(BeTrue())
		})

		It("cancels and tells the recipient", func() {
			cancelled, err := e.service.Cancel(ctx, req.ID, ana)
			Expect(err).NotTo(HaveOccurred())
			Expect(cancelled.Status).To(Equal(transfer.StatusCancelled))

			evts := e.emitter.OfType(events.EventTypeTransferCancelled)
			Expect(evts).To(HaveLen(1))
			Expect(evts[0].Recipient.UserID).To(Equal(ben))

			_, err = e.service.Respond(ctx, req.ID, ben, transfer.RespondTransferDTO{Decision: "accepted"})
			Expect(errors.Is(err, transfer.ErrAlreadyResolved)).To(BeTrue())
			Expect(e.workflowAssignee("t1")).To(Equal(ana))
		})
	})

	Describe("queries", func() {
		It("lists newest first with direction and status filters", func() {
			e.setProfile(ana, 10, false)
			e.setProfile(ben, 10, false)

			first, err := propose(ana, ben, "t1", "workflow_task")
			Expect(err).NotTo(HaveOccurred())
			e.clock.Set(e.clock.Now().Add(time.Minute))
			second, err := propose(ben, ana, "t2", "workflow_task")
			Expect(err).NotTo(HaveOccurred())
			e.clock.Set(e.clock.Now().Add(time.Minute))
			third, err := propose(ana, cara, "t2", "workflow_task")
			Expect(err).NotTo(HaveOccurred())
			_, err = e.service.Cancel(ctx, third.ID, ana)
			Expect(err).NotTo(HaveOccurred())

			all, err := e.service.ListForUser(ctx, ana, transfer.ListTransfersQuery{})
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(3))
			Expect(all[0].ID).To(Equal(third.ID))
			Expect(all[2].ID).To(Equal(first.ID))

			sent, err := e.service.ListForUser(ctx, ana, transfer.ListTransfersQuery{Direction: "sent"})
			Expect(err).NotTo(HaveOccurred())
			Expect(sent).To(HaveLen(2))

			received, err := e.service.ListForUser(ctx, ana, transfer.ListTransfersQuery{Direction: "received"})
			Expect(err).NotTo(HaveOccurred())
			Expect(received).To(HaveLen(1))
			Expect(received[0].ID).To(Equal(second.ID))

			pending, err := e.service.ListForUser(ctx, ana, transfer.ListTransfersQuery{Status: "pending"})
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(2))

			page, err := e.service.ListForUser(ctx, ana, transfer.ListTransfersQuery{Limit: 1, Offset: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(page).To(HaveLen(1))
			Expect(page[0].ID).To(Equal(second.ID))

			_, err = e.service.ListForUser(ctx, ana, transfer.ListTransfersQuery{Direction: "sideways"})
			Expect(internal.HasCode(err, internal.ErrCodeValidationFailed)).To(BeTrue())
		})

		It("shows a request to its parties and approvers only", func() {
			req, err := propose(ana, ben, "t1", "workflow_task")
			Expect(err).NotTo(HaveOccurred())

			_, err = e.service.Get(ctx, req.ID, ben)
			Expect(err).NotTo(HaveOccurred())
			_, err = e.service.Get(ctx, req.ID, mgr)
			Expect(err).NotTo(HaveOccurred())
			_, err = e.service.Get(ctx, req.ID, cara)
			Expect(errors.Is(err, transfer.ErrNotAuthorized)).To(BeTrue())
		})

		It("annotates eligible recipients without filtering them", func() {
			e.setProfile(ana, 5, false, "BOH")

			recipients, err := e.service.EligibleRecipients(ctx, ana)
			Expect(err).NotTo(HaveOccurred())

			byID := map[int64]transfer.Recipient{}
			for _, r := range recipients {
				byID[r.ID] = r
			}
			Expect(byID).NotTo(HaveKey(ana))
			Expect(byID).NotTo(HaveKey(ghost))
			Expect(byID).To(HaveLen(4))
			Expect(byID[ben].Allowed).To(BeTrue())
			Expect(byID[cara].Allowed).To(BeFalse())
			Expect(byID[cara].Reason).To(ContainSubstring("FOH"))
		})
	})

	Describe("permission profiles", func() {
		It("returns the default profile without persisting it", func() {
			profile, err := e.service.GetPermissions(ctx, ana, ana)
			Expect(err).NotTo(HaveOccurred())
			Expect(profile.IsDefault).To(BeTrue())
			Expect(profile.MaxTransfersPerDay).To(Equal(transfer.DefaultMaxTransfersPerDay))
			Expect(profile.RequiresApproval).To(BeTrue())
			Expect(profile.DepartmentRestrictions).To(BeEmpty())

			var count int64
			Expect(e.handles.Gorm.Table("transfer_permissions").Count(&count).Error).To(Succeed())
			Expect(count).To(BeZero())
		})

		It("keeps other people's profiles to managers", func() {
			_, err := e.service.GetPermissions(ctx, ben, ana)
			Expect(errors.Is(err, transfer.ErrNotAuthorized)).To(BeTrue())

			_, err = e.service.GetPermissions(ctx, mgr, ana)
			Expect(err).NotTo(HaveOccurred())
		})

		It("lets administrators update a profile partially", func() {
			limit := 2
			_, err := e.service.UpdatePermissions(ctx, ben, ana, transfer.UpdatePermissionsDTO{MaxTransfersPerDay: &limit})
			Expect(errors.Is(err, transfer.ErrNotAuthorized)).To(BeTrue())

			updated, err := e.service.UpdatePermissions(ctx, root, ana, transfer.UpdatePermissionsDTO{MaxTransfersPerDay: &limit})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.MaxTransfersPerDay).To(Equal(2))
			Expect(updated.RequiresApproval).To(BeTrue())
			Expect(*updated.UpdatedBy).To(Equal(root))

			noApproval := false
			depts := []string{"BOH"}
			updated, err = e.service.UpdatePermissions(ctx, root, ana, transfer.UpdatePermissionsDTO{
				RequiresApproval:       &noApproval,
				DepartmentRestrictions: &depts,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.MaxTransfersPerDay).To(Equal(2))

			stored, err := e.service.GetPermissions(ctx, ana, ana)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.IsDefault).To(BeFalse())
			Expect(stored.RequiresApproval).To(BeFalse())
			Expect(stored.DepartmentRestrictions).To(ConsistOf("BOH"))
		})

		It("validates updates and their target", func() {
			negative := -1
			_, err := e.service.UpdatePermissions(ctx, root, ana, transfer.UpdatePermissionsDTO{MaxTransfersPerDay: &negative})
			Expect(internal.HasCode(err, internal.ErrCodeValidationFailed)).To(BeTrue())

			limit := 3
			_, err = e.service.UpdatePermissions(ctx, root, 404, transfer.UpdatePermissionsDTO{MaxTransfersPerDay: &limit})
			Expect(errors.Is(err, transfer.ErrEmployeeNotFound)).To(BeTrue())
		})

		It("bootstraps missing profiles and leaves existing ones alone", func() {
			e.setProfile(ana, 9, false)

			created, err := e.service.BootstrapPermissions(ctx, []transfer.PermissionProfile{
				{EmployeeID: ana, MaxTransfersPerDay: 1, RequiresApproval: true},
				{EmployeeID: ben, MaxTransfersPerDay: 3, RequiresApproval: false},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(Equal(int64(1)))

			anaProfile, err := e.service.GetPermissions(ctx, ana, ana)
			Expect(err).NotTo(HaveOccurred())
			Expect(anaProfile.MaxTransfersPerDay).To(Equal(9))

			benProfile, err := e.service.GetPermissions(ctx, ben, ben)
			Expect(err).NotTo(HaveOccurred())
			Expect(benProfile.MaxTransfersPerDay).To(Equal(3))
		})
	})
})
