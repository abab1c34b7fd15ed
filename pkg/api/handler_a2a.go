package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/conductorhq/conductor/pkg/a2a"
	"github.com/conductorhq/conductor/pkg/apierr"
	"github.com/conductorhq/conductor/pkg/models"
)

// loadA2AEnabledAgent loads an agent by id, unscoped (A2A endpoints are
// public, not bound to the caller's tenant), and rejects it with Forbidden
// if the agent has not opted into the A2A protocol.
func (s *Server) loadA2AEnabledAgent(c *gin.Context) (*models.Agent, bool) {
	agentID := c.Param("agent_id")
	agent, err := s.db.Agents.GetByIDUnscoped(c.Request.Context(), agentID)
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	if !agent.A2AEnabled {
		abortWithError(c, apierr.New(apierr.Forbidden, "agent is not A2A-enabled"))
		return nil, false
	}
	return agent, true
}

// a2aCardHandler implements GET /a2a/agents/{id}/.well-known/agent.json.
func (s *Server) a2aCardHandler(c *gin.Context) {
	agent, ok := s.loadA2AEnabledAgent(c)
	if !ok {
		return
	}
	card := a2a.GenerateCard(agent, s.cfg.A2A.BaseURL, "conductor", s.cfg.A2A.ProtocolVersion)
	c.JSON(http.StatusOK, card)
}

// a2aSubmitTaskHandler implements POST /a2a/agents/{id}/tasks.
func (s *Server) a2aSubmitTaskHandler(c *gin.Context) {
	agent, ok := s.loadA2AEnabledAgent(c)
	if !ok {
		return
	}

	var req a2a.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apierr.Wrap(apierr.InvalidInput, "invalid task request body", err))
		return
	}

	taskID := req.ID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	resp := s.a2aServer.SubmitTask(agent, taskID, req.Message.ExtractText())
	c.JSON(http.StatusAccepted, resp)
}

// a2aGetTaskHandler implements GET /a2a/agents/{id}/tasks/{task_id}.
func (s *Server) a2aGetTaskHandler(c *gin.Context) {
	agent, ok := s.loadA2AEnabledAgent(c)
	if !ok {
		return
	}

	resp, err := s.a2aServer.GetTaskStatus(agent.ID, c.Param("task_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// a2aCancelTaskHandler implements POST /a2a/agents/{id}/tasks/{task_id}/cancel.
func (s *Server) a2aCancelTaskHandler(c *gin.Context) {
	agent, ok := s.loadA2AEnabledAgent(c)
	if !ok {
		return
	}

	resp, err := s.a2aServer.CancelTask(agent.ID, c.Param("task_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
