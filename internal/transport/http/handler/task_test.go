package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ErlanBelekov/task-notifier/internal/domain"
	"github.com/ErlanBelekov/task-notifier/internal/transport/http/handler"
	"github.com/ErlanBelekov/task-notifier/internal/usecase"
	"github.com/gin-gonic/gin"
)

type fakeTaskUsecase struct {
	created  []usecase.TaskInput
	updated  map[string]usecase.TaskInput
	tasks    []*domain.Task
	err      error
	notified []string
}

func (f *fakeTaskUsecase) Create(_ context.Context, in usecase.TaskInput) (*domain.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, in)
	return &domain.Task{
		ID: "task-1", UserID: in.UserID, Title: in.Title, Status: domain.StatusPending,
		Priority: domain.PriorityMedium, ScheduledDate: in.ScheduledDate, ScheduledTime: in.ScheduledTime,
	}, nil
}

func (f *fakeTaskUsecase) Update(_ context.Context, id string, in usecase.TaskInput) (*domain.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.updated == nil {
		f.updated = map[string]usecase.TaskInput{}
	}
	f.updated[id] = in
	return &domain.Task{ID: id, UserID: in.UserID, Title: in.Title, Status: in.Status, Priority: in.Priority}, nil
}

func (f *fakeTaskUsecase) List(context.Context, string) ([]*domain.Task, error) {
	return f.tasks, f.err
}

func (f *fakeTaskUsecase) Toggle(_ context.Context, id, userID string) (*domain.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Task{ID: id, UserID: userID, Status: domain.StatusInProgress, Priority: domain.PriorityLow}, nil
}

func (f *fakeTaskUsecase) Delete(context.Context, string, string) error {
	return f.err
}

func (f *fakeTaskUsecase) DeleteAll(context.Context, string) (int, error) {
	return len(f.tasks), f.err
}

func (f *fakeTaskUsecase) NotifyMe(_ context.Context, userID string) error {
	f.notified = append(f.notified, userID)
	return f.err
}

const taskUUID = "5f0c6a3e-8f4b-4c1d-9a57-2f3e1b7c9d10"

func newTaskEngine(uc *fakeTaskUsecase) *gin.Engine {
	h := handler.NewTaskHandler(uc, discard)

	r := gin.New()
	authed := r.Group("", func(c *gin.Context) {
		c.Set("userID", "user-1")
		c.Next()
	})
	authed.GET("/tasks", h.List)
	authed.POST("/tasks", h.Create)
	authed.DELETE("/tasks", h.DeleteAll)
	authed.PUT("/tasks/:id", h.Update)
	authed.POST("/tasks/:id/toggle", h.Toggle)
	authed.DELETE("/tasks/:id", h.Delete)
	authed.POST("/notify-me", h.NotifyMe)
	return r
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestCreateTask_ParsesSchedule(t *testing.T) {
	uc := &fakeTaskUsecase{}
	w := postJSON(newTaskEngine(uc), "/tasks",
		`{"title":"dentist","scheduled_date":"2026-03-02","scheduled_time":"14:30"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if len(uc.created) != 1 {
		t.Fatalf("created %d tasks, want 1", len(uc.created))
	}
	in := uc.created[0]
	if in.UserID != "user-1" {
		t.Errorf("userID = %q, want user-1", in.UserID)
	}
	wantDate := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if in.ScheduledDate == nil || !in.ScheduledDate.Equal(wantDate) {
		t.Errorf("date = %v, want %v", in.ScheduledDate, wantDate)
	}
	if in.ScheduledTime == nil || *in.ScheduledTime != 14*time.Hour+30*time.Minute {
		t.Errorf("time = %v, want 14h30m", in.ScheduledTime)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["scheduled_date"] != "2026-03-02" || body["scheduled_time"] != "14:30" {
		t.Errorf("body schedule = %v %v", body["scheduled_date"], body["scheduled_time"])
	}
	if body["priority"] != "Medium" {
		t.Errorf("priority = %v, want Medium", body["priority"])
	}
}

func TestCreateTask_TimeWithoutDate_Returns400(t *testing.T) {
	uc := &fakeTaskUsecase{}
	w := postJSON(newTaskEngine(uc), "/tasks", `{"title":"x","scheduled_time":"09:00"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if len(uc.created) != 0 {
		t.Error("task must not be created")
	}
}

func TestCreateTask_BadStatus_Returns400(t *testing.T) {
	w := postJSON(newTaskEngine(&fakeTaskUsecase{}), "/tasks", `{"title":"x","status":"Done"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateTask_AcceptsInProgress(t *testing.T) {
	uc := &fakeTaskUsecase{}
	w := postJSON(newTaskEngine(uc), "/tasks", `{"title":"x","status":"In Progress","priority":3}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if uc.created[0].Status != domain.StatusInProgress || uc.created[0].Priority != domain.PriorityHigh {
		t.Errorf("input = %+v", uc.created[0])
	}
}

func TestCreateTask_BadDate_Returns400(t *testing.T) {
	w := postJSON(newTaskEngine(&fakeTaskUsecase{}), "/tasks", `{"title":"x","scheduled_date":"02/03/2026"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpdateTask_NotFound_Returns404(t *testing.T) {
	uc := &fakeTaskUsecase{err: domain.ErrTaskNotFound}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/tasks/"+taskUUID, strings.NewReader(`{"title":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	newTaskEngine(uc).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestTaskRoutes_MalformedID_Returns404WithoutCallingUsecase(t *testing.T) {
	for _, tc := range []struct{ method, path string }{
		{http.MethodPut, "/tasks/not-a-uuid"},
		{http.MethodPost, "/tasks/not-a-uuid/toggle"},
		{http.MethodDelete, "/tasks/not-a-uuid"},
	} {
		// err would surface as a 500 if the usecase were reached.
		uc := &fakeTaskUsecase{err: errors.New("invalid input syntax for type uuid")}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{"title":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		newTaskEngine(uc).ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s: status = %d, want 404", tc.method, tc.path, w.Code)
		}
		if len(uc.updated) != 0 {
			t.Errorf("%s %s: usecase must not be called", tc.method, tc.path)
		}
	}
}

func TestListTasks_Empty_ReturnsArray(t *testing.T) {
	w := do(newTaskEngine(&fakeTaskUsecase{}), http.MethodGet, "/tasks")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "[]" {
		t.Errorf("body = %q, want []", w.Body.String())
	}
}

func TestToggleTask_ReturnsNewStatus(t *testing.T) {
	w := do(newTaskEngine(&fakeTaskUsecase{}), http.MethodPost, "/tasks/"+taskUUID+"/toggle")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "In Progress" {
		t.Errorf("status = %v, want In Progress", body["status"])
	}
}

func TestDeleteTask_Returns204(t *testing.T) {
	w := do(newTaskEngine(&fakeTaskUsecase{}), http.MethodDelete, "/tasks/"+taskUUID)
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

func TestDeleteAllTasks_ReportsCount(t *testing.T) {
	uc := &fakeTaskUsecase{tasks: []*domain.Task{{ID: "a"}, {ID: "b"}}}
	w := do(newTaskEngine(uc), http.MethodDelete, "/tasks")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != `{"deleted":2}` {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestNotifyMe_DeliveryFailure_Returns502(t *testing.T) {
	uc := &fakeTaskUsecase{err: &domain.DeliveryError{Kind: domain.NotificationPersonal}}
	w := do(newTaskEngine(uc), http.MethodPost, "/notify-me")
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
	if len(uc.notified) != 1 || uc.notified[0] != "user-1" {
		t.Errorf("notified = %v", uc.notified)
	}
}
