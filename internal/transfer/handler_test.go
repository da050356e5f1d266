package transfer_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/kitchen-ops/internal/auth"
	"github.com/frahmantamala/kitchen-ops/internal/transfer"
)

// asCaller stands in for the bearer middleware: X-Test-User names the caller.
func asCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get("X-Test-User"); raw != "" {
			id, _ := strconv.ParseInt(raw, 10, 64)
			r = r.WithContext(auth.ContextWithUser(r.Context(), &auth.User{ID: id}))
		}
		next.ServeHTTP(w, r)
	})
}

type apiError struct {
	Error struct {
		Type    string         `json:"type"`
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

var _ = Describe("Handler", func() {
	var (
		e      *env
		router *chi.Mux
	)

	BeforeEach(func() {
		e = newEnv()
		router = chi.NewRouter()
		router.Use(asCaller)
		transfer.NewHandler(e.service).Routes(router)
	})

	AfterEach(func() {
		Expect(e.handles.Close()).To(Succeed())
	})

	do := func(method, path string, caller int64, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		if caller != 0 {
			req.Header.Set("X-Test-User", strconv.FormatInt(caller, 10))
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	decodeTransfer := func(rec *httptest.ResponseRecorder) transfer.TransferRequest {
		var out transfer.TransferRequest
		Expect(json.Unmarshal(rec.Body.Bytes(), &out)).To(Succeed())
		return out
	}

	decodeError := func(rec *httptest.ResponseRecorder) apiError {
		var out apiError
		Expect(json.Unmarshal(rec.Body.Bytes(), &out)).To(Succeed())
		return out
	}

	propose := func(from, to int64, taskID string) *httptest.ResponseRecorder {
		return do(http.MethodPost, "/transfers", from, map[string]any{
			"task_id":    taskID,
			"task_type":  "workflow_task",
			"to_user_id": to,
			"reason":     "covering the pass",
		})
	}

	It("requires a caller", func() {
		rec := do(http.MethodGet, "/transfers", 0, nil)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("proposes, accepts and reassigns over HTTP", func() {
		e.setProfile(ana, 5, false)

		rec := propose(ana, ben, "t1")
		Expect(rec.Code).To(Equal(http.StatusCreated))
		created := decodeTransfer(rec)
		Expect(created.Status).To(Equal(transfer.StatusPending))

		rec = do(http.MethodPost, "/transfers/"+created.ID+"/respond", ben, map[string]any{"decision": "accepted", "message": "got it"})
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(decodeTransfer(rec).Status).To(Equal(transfer.StatusAccepted))
		Expect(e.workflowAssignee("t1")).To(Equal(ben))

		rec = do(http.MethodPost, "/transfers/"+created.ID+"/respond", ben, map[string]any{"decision": "denied"})
		Expect(rec.Code).To(Equal(http.StatusConflict))
		Expect(decodeError(rec).Error.Code).To(Equal("ALREADY_RESOLVED"))
	})

	It("maps validation failures to 400", func() {
		rec := propose(ana, ana, "t1")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeError(rec).Error.Code).To(Equal("SAME_PARTY"))

		rec = do(http.MethodPost, "/transfers", ana, map[string]any{"task_id": "t1", "task_type": "Not A Tag", "to_user_id": ben})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))

		rec = do(http.MethodPost, "/transfers", ana, map[string]any{"task_id": "t1", "unexpected": true})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeError(rec).Error.Code).To(Equal("VALIDATION_FAILED"))
	})

	It("maps policy failures to 422 with details", func() {
		e.setProfile(ana, 0, false)

		rec := propose(ana, ben, "t1")
		Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
		body := decodeError(rec)
		Expect(body.Error.Code).To(Equal("DAILY_LIMIT_EXCEEDED"))
		Expect(body.Error.Details).To(HaveKeyWithValue("limit", BeNumerically("==", 0)))
	})

	It("rejects invalid decisions", func() {
		e.setProfile(ana, 5, false)
		created := decodeTransfer(propose(ana, ben, "t1"))

		rec := do(http.MethodPost, "/transfers/"+created.ID+"/respond", ben, map[string]any{"decision": "maybe"})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeError(rec).Error.Code).To(Equal("INVALID_DECISION"))
	})

	It("lets only the sender cancel", func() {
		e.setProfile(ana, 5, false)
		created := decodeTransfer(propose(ana, ben, "t1"))

		rec := do(http.MethodPost, "/transfers/"+created.ID+"/cancel", ben, nil)
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(decodeError(rec).Error.Code).To(Equal("NOT_AUTHORIZED"))

		rec = do(http.MethodPost, "/transfers/"+created.ID+"/cancel", ana, nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(decodeTransfer(rec).Status).To(Equal(transfer.StatusCancelled))
	})

	It("hides transfers from uninvolved staff and reports unknown ids", func() {
		e.setProfile(ana, 5, false)
		created := decodeTransfer(propose(ana, ben, "t1"))

		Expect(do(http.MethodGet, "/transfers/"+created.ID, ben, nil).Code).To(Equal(http.StatusOK))
		Expect(do(http.MethodGet, "/transfers/"+created.ID, cara, nil).Code).To(Equal(http.StatusForbidden))
		Expect(do(http.MethodGet, "/transfers/"+created.ID, mgr, nil).Code).To(Equal(http.StatusOK))

		rec := do(http.MethodGet, "/transfers/missing", ana, nil)
		Expect(rec.Code).To(Equal(http.StatusNotFound))
		Expect(decodeError(rec).Error.Code).To(Equal("TRANSFER_NOT_FOUND"))
	})

	It("lists by direction and validates filters", func() {
		e.setProfile(ana, 5, false)
		Expect(propose(ana, ben, "t1").Code).To(Equal(http.StatusCreated))
		Expect(propose(ana, cara, "t2").Code).To(Equal(http.StatusCreated))

		rec := do(http.MethodGet, "/transfers?direction=received", ben, nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var page struct {
			Transfers []transfer.TransferRequest `json:"transfers"`
			Limit     int                        `json:"limit"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &page)).To(Succeed())
		Expect(page.Transfers).To(HaveLen(1))
		Expect(page.Limit).To(Equal(transfer.DefaultListLimit))

		rec = do(http.MethodGet, "/transfers?direction=sideways", ana, nil)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))

		rec = do(http.MethodGet, "/transfers?limit=abc", ana, nil)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("serves the approval queue to approvers only", func() {
		e.setProfile(ana, 5, true)
		Expect(propose(ana, ben, "t1").Code).To(Equal(http.StatusCreated))

		Expect(do(http.MethodGet, "/transfers/approvals", ben, nil).Code).To(Equal(http.StatusForbidden))

		rec := do(http.MethodGet, "/transfers/approvals", mgr, nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var page struct {
			Transfers []transfer.TransferRequest `json:"transfers"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &page)).To(Succeed())
		Expect(page.Transfers).To(HaveLen(1))
		Expect(page.Transfers[0].Status).To(Equal(transfer.StatusPendingApproval))
	})

	It("lists eligible recipients", func() {
		e.setProfile(ana, 5, false, "BOH")

		rec := do(http.MethodGet, "/transfers/recipients", ana, nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var body struct {
			Recipients []transfer.Recipient `json:"recipients"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		byID := map[int64]transfer.Recipient{}
		for _, r := range body.Recipients {
			byID[r.ID] = r
		}
		Expect(byID).NotTo(HaveKey(ana))
		Expect(byID[ben].Allowed).To(BeTrue())
		Expect(byID[cara].Allowed).To(BeFalse())
	})

	It("reads and updates permission profiles", func() {
		rec := do(http.MethodGet, "/transfer-permissions/me", ana, nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var profile transfer.PermissionProfile
		Expect(json.Unmarshal(rec.Body.Bytes(), &profile)).To(Succeed())
		Expect(profile.IsDefault).To(BeTrue())
		Expect(profile.MaxTransfersPerDay).To(Equal(5))

		Expect(do(http.MethodGet, "/transfer-permissions/"+strconv.FormatInt(ben, 10), ana, nil).Code).To(Equal(http.StatusForbidden))
		Expect(do(http.MethodGet, "/transfer-permissions/abc", root, nil).Code).To(Equal(http.StatusBadRequest))

		rec = do(http.MethodPut, "/transfer-permissions/"+strconv.FormatInt(ana, 10), root, map[string]any{
			"max_transfers_per_day": 2,
			"requires_approval":     false,
		})
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(json.Unmarshal(rec.Body.Bytes(), &profile)).To(Succeed())
		Expect(profile.IsDefault).To(BeFalse())
		Expect(profile.MaxTransfersPerDay).To(Equal(2))
		Expect(profile.RequiresApproval).To(BeFalse())

		rec = do(http.MethodPut, "/transfer-permissions/"+strconv.FormatInt(ana, 10), ben, map[string]any{"max_transfers_per_day": 9})
		Expect(rec.Code).To(Equal(http.StatusForbidden))
	})
})
