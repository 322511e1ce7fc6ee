package http

import (
	"context"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/inbound-service/internal/application"
	"github.com/wms-platform/inbound-service/internal/domain"
	"github.com/wms-platform/inbound-service/pkg/api"
	"github.com/wms-platform/inbound-service/pkg/logging"
	"github.com/wms-platform/inbound-service/pkg/middleware"
)

// Roles allowed to assign any task to anyone
const (
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

// TaskListResponse wraps a task list
type TaskListResponse struct {
	Tasks []*domain.Task `json:"tasks"`
	Total int            `json:"total"`
}

// ScanListResponse wraps the scans of a task
type ScanListResponse struct {
	Scans []*domain.Scan `json:"scans"`
	Total int            `json:"total"`
}

func createTaskHandler(service *application.TaskService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.CreateTaskCommand
		if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"receipt.id": cmd.ReceiptID,
			"task.type":  cmd.Type,
		})

		task, err := service.CreateTask(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusCreated, task)
	}
}

func getTaskHandler(service *application.TaskService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		task, err := service.GetTask(c.Request.Context(), c.Param("taskId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, task)
	}
}

func listTasksHandler(service *application.TaskService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var query application.ListTasksQuery
		if appErr := api.BindQuery(c, &query); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		if query.Limit == 0 {
			query.Limit = 100
		}

		tasks, err := service.ListTasks(c.Request.Context(), query)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, TaskListResponse{Tasks: tasks, Total: len(tasks)})
	}
}

func receiptTasksHandler(service *application.TaskService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		tasks, err := service.ListTasks(c.Request.Context(), application.ListTasksQuery{ReceiptID: c.Param("receiptId")})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, TaskListResponse{Tasks: tasks, Total: len(tasks)})
	}
}

// assignTaskHandler enforces the assignment policy: supervisors and admins may assign any open task
// to anyone, everybody else may only take a NEW task for themselves.
func assignTaskHandler(service *application.TaskService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.AssignTaskCommand
		if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		cmd.TaskID = c.Param("taskId")
		cmd.AssignedBy = middleware.GetUserID(c)

		if !isPrivileged(middleware.GetUserRole(c)) {
			if cmd.AssignedBy == "" || cmd.AssignedBy != cmd.AssigneeID {
				responder.RespondForbidden("only supervisors may assign tasks to other operators")
				return
			}
			// The NEW check runs inside the versioned write, not against an earlier read.
			cmd.RequireNew = true
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"task.id":       cmd.TaskID,
			"task.assignee": cmd.AssigneeID,
		})

		task, err := service.AssignTask(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, task)
	}
}

func isPrivileged(role string) bool {
	return role == RoleSupervisor || role == RoleAdmin
}

// taskActionHandler serves the body-less task transitions
func taskActionHandler(action func(ctx context.Context, taskID string) (*domain.Task, error), logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		task, err := action(c.Request.Context(), c.Param("taskId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, task)
	}
}

func releaseTaskHandler(service *application.TaskService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		result, err := service.ReleaseTask(c.Request.Context(), c.Param("taskId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, result)
	}
}

func setPriorityHandler(service *application.TaskService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.SetPriorityCommand
		if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		cmd.TaskID = c.Param("taskId")

		task, err := service.SetPriority(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, task)
	}
}

func recordScanHandler(service *application.ScanService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var cmd application.RecordScanCommand
		if appErr := api.BindAndValidate(c, &cmd); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		cmd.TaskID = c.Param("taskId")
		cmd.ScannedBy = middleware.GetUserID(c)

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"task.id":         cmd.TaskID,
			"scan.request_id": cmd.RequestID,
			"pallet.code":     cmd.PalletCode,
		})

		result, err := service.RecordScan(c.Request.Context(), cmd)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		status := stdhttp.StatusCreated
		if result.Duplicate {
			status = stdhttp.StatusOK
		}
		c.JSON(status, result)
	}
}

func listScansHandler(service *application.TaskService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		scans, err := service.ListScans(c.Request.Context(), c.Param("taskId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(stdhttp.StatusOK, ScanListResponse{Scans: scans, Total: len(scans)})
	}
}
