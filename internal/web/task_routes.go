package web

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/efish/efish/internal/errorz"
	"github.com/efish/efish/internal/task"
	"github.com/efish/efish/internal/web/sessions"
)

var errInvalidTaskID = fmt.Errorf("%w: invalid task id", errorz.ErrNotFound)

// taskEdit is an edit of the task with ID.
type taskEdit struct {
	ID    uuid.UUID
	Input task.Input
}

type taskFormView struct {
	// Task is the task being edited, nil when adding a task.
	Task *task.Task
}

func (s *Server) taskRoutes() {
	{
		const route = "GET /tasks"
		h := newHandler(s, withUser(s.deps.TaskService.List))
		h.request(func(sh shared) (int, error) {
			// Anything that isn't a page number shows the first page.
			n, err := strconv.Atoi(sh.r.URL.Query().Get("page"))
			if err != nil {
				return 1, nil
			}
			return n, nil
		})
		h.onSuccess(func(r result[int, task.Page]) error {
			return r.view("tasks", r.out)
		})

		s.loggedIn(route, h)
	}

	// Add task endpoints.
	{
		const route = "GET /tasks/add"
		h := newHandler(s, func(context.Context, struct{}) (taskFormView, error) {
			return taskFormView{}, nil
		})
		h.request(noInput)
		h.onSuccess(func(r result[struct{}, taskFormView]) error {
			return r.view("task-form", r.out)
		})

		s.loggedIn(route, h)
	}
	{
		const route = "POST /tasks/add"
		h := newHandler(s, withUser(s.deps.TaskService.Create))
		h.onSuccess(func(r result[task.Input, task.Task]) error {
			return r.flashRedirect(sessions.LevelSuccess, "Task added successfully!", "/tasks")
		})
		h.onFail(func(f failure[task.Input]) error {
			return f.formView("task-form", taskFormView{})
		})

		s.loggedIn(route, h)
	}

	// Edit task endpoints.
	{
		const route = "GET /tasks/{id}/edit"
		h := newHandler(s, withUser(s.deps.TaskService.Get))
		h.request(taskIDFromPath)
		h.onSuccess(func(r result[uuid.UUID, task.Task]) error {
			return r.s.writeView(r.w, r.r, page{
				name: "task-form",
				data: taskFormView{Task: &r.out},
				form: taskForm(r.out),
			})
		})

		s.loggedIn(route, h)
	}
	{
		const route = "POST /tasks/{id}/edit"
		h := newHandler(s, withUser(func(ctx context.Context, userID uuid.UUID, in taskEdit) (task.Task, error) {
			return s.deps.TaskService.Update(ctx, userID, in.ID, in.Input)
		}))
		h.request(func(sh shared) (taskEdit, error) {
			id, err := taskIDFromPath(sh)
			if err != nil {
				return taskEdit{}, err
			}

			in, err := defaultReqToIn[task.Input](sh)
			return taskEdit{ID: id, Input: in}, err
		})
		h.onSuccess(func(r result[taskEdit, task.Task]) error {
			return r.flashRedirect(sessions.LevelSuccess, "Task updated successfully!", "/tasks")
		})
		h.onFail(func(f failure[taskEdit]) error {
			// The form posts back to the task, only its ID is needed.
			return f.formView("task-form", taskFormView{Task: &task.Task{ID: f.in.ID}})
		})

		s.loggedIn(route, h)
	}

	// Delete task endpoint.
	{
		const route = "POST /tasks/{id}/delete"
		h := newHandler(s, withUser(func(ctx context.Context, userID, id uuid.UUID) (struct{}, error) {
			return struct{}{}, s.deps.TaskService.Delete(ctx, userID, id)
		}))
		h.request(taskIDFromPath)
		h.onSuccess(func(r result[uuid.UUID, struct{}]) error {
			return r.flashRedirect(sessions.LevelSuccess, "Task deleted successfully!", "/tasks")
		})
		h.onFail(func(f failure[uuid.UUID]) error {
			switch {
			case errors.Is(f.err, errInvalidTaskID):
				return f.flashRedirect(sessions.LevelDanger, "Invalid task ID.", "/tasks")
			case errors.Is(f.err, errorz.ErrNotFound):
				return f.flashRedirect(sessions.LevelDanger, "Task not found or unauthorized.", "/tasks")
			default:
				return f.err
			}
		})

		s.loggedIn(route, h)
	}

	// Complete task endpoint.
	{
		const route = "POST /tasks/{id}/complete"
		h := newHandler(s, withUser(s.deps.TaskService.Complete))
		h.request(taskIDFromPath)
		h.onSuccess(func(r result[uuid.UUID, task.Task]) error {
			return r.flashRedirect(sessions.LevelSuccess, "Task marked as completed!", "/tasks")
		})
		h.onFail(func(f failure[uuid.UUID]) error {
			switch {
			case errors.Is(f.err, errInvalidTaskID):
				return f.flashRedirect(sessions.LevelDanger, "Invalid task ID.", "/tasks")
			case errors.Is(f.err, task.ErrAlreadyCompleted):
				return f.flashRedirect(sessions.LevelInfo, "Task is already completed.", "/tasks")
			default:
				return f.err
			}
		})

		s.loggedIn(route, h)
	}
}

func taskIDFromPath(sh shared) (uuid.UUID, error) {
	id, err := uuid.Parse(sh.r.PathValue("id"))
	if err != nil {
		return uuid.Nil, errInvalidTaskID
	}
	return id, nil
}

// taskForm fills the task form with t.
func taskForm(t task.Task) url.Values {
	return url.Values{
		"Title":       {t.Title},
		"Description": {t.Description},
		"Completed":   {strconv.FormatBool(t.Completed)},
	}
}
