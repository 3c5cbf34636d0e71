package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ErlanBelekov/task-notifier/internal/domain"
	"github.com/ErlanBelekov/task-notifier/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

type taskUsecaser interface {
	Create(ctx context.Context, in usecase.TaskInput) (*domain.Task, error)
	Update(ctx context.Context, id string, in usecase.TaskInput) (*domain.Task, error)
	List(ctx context.Context, userID string) ([]*domain.Task, error)
	Toggle(ctx context.Context, id, userID string) (*domain.Task, error)
	Delete(ctx context.Context, id, userID string) error
	DeleteAll(ctx context.Context, userID string) (int, error)
	NotifyMe(ctx context.Context, userID string) error
}

type TaskHandler struct {
	taskUsecase taskUsecaser
	logger      *slog.Logger
}

func NewTaskHandler(taskUsecase taskUsecaser, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{taskUsecase: taskUsecase, logger: logger.With("component", "task_handler")}
}

type taskRequest struct {
	Title         string          `json:"title"          binding:"required,max=255"`
	Status        domain.Status   `json:"status"         binding:"omitempty,oneof=Pending 'In Progress' Completed"`
	Priority      domain.Priority `json:"priority"       binding:"omitempty,min=1,max=3"`
	ScheduledDate string          `json:"scheduled_date" binding:"omitempty,datetime=2006-01-02"`
	ScheduledTime string          `json:"scheduled_time" binding:"omitempty,datetime=15:04"`
}

type taskResponse struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Status        domain.Status `json:"status"`
	Priority      string        `json:"priority"`
	ScheduledDate string        `json:"scheduled_date,omitempty"`
	ScheduledTime string        `json:"scheduled_time,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (r taskRequest) input(userID string) (usecase.TaskInput, error) {
	in := usecase.TaskInput{
		UserID:   userID,
		Title:    r.Title,
		Status:   r.Status,
		Priority: r.Priority,
	}
	if r.ScheduledDate == "" {
		if r.ScheduledTime != "" {
			return in, errors.New("scheduled_time requires scheduled_date")
		}
		return in, nil
	}

	date, err := time.Parse(dateLayout, r.ScheduledDate)
	if err != nil {
		return in, fmt.Errorf("parse scheduled_date: %w", err)
	}
	in.ScheduledDate = &date

	if r.ScheduledTime != "" {
		clock, err := time.Parse(timeLayout, r.ScheduledTime)
		if err != nil {
			return in, fmt.Errorf("parse scheduled_time: %w", err)
		}
		offset := time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute
		in.ScheduledTime = &offset
	}
	return in, nil
}

func toTaskResponse(t *domain.Task) taskResponse {
	resp := taskResponse{
		ID:        t.ID,
		Title:     t.Title,
		Status:    t.Status,
		Priority:  t.Priority.String(),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if at, hasTime, ok := t.ScheduledAt(); ok {
		resp.ScheduledDate = at.Format(dateLayout)
		if hasTime {
			resp.ScheduledTime = at.Format(timeLayout)
		}
	}
	return resp
}

// POST /tasks
func (h *TaskHandler) Create(c *gin.Context) {
	in, ok := h.bind(c)
	if !ok {
		return
	}

	task, err := h.taskUsecase.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, "create task", err)
		return
	}
	c.JSON(http.StatusCreated, toTaskResponse(task))
}

// PUT /tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	in, ok := h.bind(c)
	if !ok {
		return
	}

	task, err := h.taskUsecase.Update(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, "update task", err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

// GET /tasks
func (h *TaskHandler) List(c *gin.Context) {
	tasks, err := h.taskUsecase.List(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		h.fail(c, "list tasks", err)
		return
	}

	resp := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, toTaskResponse(t))
	}
	c.JSON(http.StatusOK, resp)
}

// POST /tasks/:id/toggle
func (h *TaskHandler) Toggle(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	task, err := h.taskUsecase.Toggle(c.Request.Context(), id, c.GetString("userID"))
	if err != nil {
		h.fail(c, "toggle task", err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

// DELETE /tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	if err := h.taskUsecase.Delete(c.Request.Context(), id, c.GetString("userID")); err != nil {
		h.fail(c, "delete task", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /tasks
func (h *TaskHandler) DeleteAll(c *gin.Context) {
	n, err := h.taskUsecase.DeleteAll(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		h.fail(c, "delete tasks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// POST /notify-me
func (h *TaskHandler) NotifyMe(c *gin.Context) {
	if err := h.taskUsecase.NotifyMe(c.Request.Context(), c.GetString("userID")); err != nil {
		h.fail(c, "notify me", err)
		return
	}
	c.Status(http.StatusAccepted)
}

// taskID reads the :id param. Ids are UUIDs, so anything else cannot name a task.
func taskID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errTaskNotFound})
		return "", false
	}
	return id, true
}

func (h *TaskHandler) bind(c *gin.Context) (usecase.TaskInput, bool) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return usecase.TaskInput{}, false
	}
	in, err := req.input(c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return usecase.TaskInput{}, false
	}
	return in, true
}

func (h *TaskHandler) fail(c *gin.Context, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), op, "error", err)
	}
	c.JSON(status, gin.H{"error": msg})
}
