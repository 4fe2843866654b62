package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/yourorg/product-catalog/internal/types"
)

// WorkflowHandler launches and inspects maintenance workflows. It is only
// wired up when a Temporal client could be dialed; the API runs fine
// without one.
type WorkflowHandler struct {
	temporalClient client.Client
	taskQueue      string
	log            *zap.Logger
}

func NewWorkflowHandler(temporalClient client.Client, taskQueue string, log *zap.Logger) *WorkflowHandler {
	return &WorkflowHandler{temporalClient: temporalClient, taskQueue: taskQueue, log: log}
}

type StartSweepRequest struct {
	GraceMinutes int  `json:"grace_minutes"`
	DryRun       bool `json:"dry_run"`
}

type StartWorkflowResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// StartImageSweep kicks off an orphaned-image sweep on the worker.
func (h *WorkflowHandler) StartImageSweep(c *gin.Context) {
	var req StartSweepRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := types.SweepParams{
		GraceMinutes: req.GraceMinutes,
		DryRun:       req.DryRun,
	}
	options := client.StartWorkflowOptions{TaskQueue: h.taskQueue}

	run, err := h.temporalClient.ExecuteWorkflow(
		c.Request.Context(),
		options,
		"SweepImagesWorkflow", // must match the registered workflow name
		params,
	)
	if err != nil {
		h.log.Error("start sweep workflow", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start workflow: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, StartWorkflowResponse{
		WorkflowID: run.GetID(),
		RunID:      run.GetRunID(),
	})
}

// GetWorkflowStatus reports a workflow's state, with the sweep result once
// it completed.
func (h *WorkflowHandler) GetWorkflowStatus(c *gin.Context) {
	workflowID := c.Param("id")
	if workflowID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Workflow ID is required"})
		return
	}

	run := h.temporalClient.GetWorkflow(c.Request.Context(), workflowID, "")

	// The result is only available once the workflow completed.
	var result types.SweepResult
	if err := run.Get(c.Request.Context(), &result); err != nil {
		describe, descErr := h.temporalClient.DescribeWorkflowExecution(c.Request.Context(), workflowID, "")
		if descErr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to describe workflow: " + descErr.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"workflow_id": workflowID,
			"status":      describe.WorkflowExecutionInfo.Status.String(),
			"start_time":  describe.WorkflowExecutionInfo.StartTime,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"workflow_id": workflowID,
		"status":      "COMPLETED",
		"result":      result,
	})
}
