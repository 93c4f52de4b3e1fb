package controllers

import "net/http"

// RegisterRoutes wires the HTTP routes for this controller.
func (c *EventsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/events", c.handleDeliverEvent)
}

func (c *WorkflowsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/workflows", c.handleCreateWorkflow)
	mux.HandleFunc("GET /api/workflows", c.handleListWorkflows)
	mux.HandleFunc("GET /api/workflows/{id}", c.handleGetWorkflow)
	mux.HandleFunc("POST /api/workflows/{id}/activate", c.handleSetActive(true))
	mux.HandleFunc("POST /api/workflows/{id}/deactivate", c.handleSetActive(false))
	mux.HandleFunc("GET /api/workflowTemplates", c.handleListTemplates)
}

func (c *ExecutionsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/executions", c.handleListExecutions)
	mux.HandleFunc("GET /api/executions/{id}", c.handleGetExecution)
	mux.HandleFunc("POST /api/executions/{id}/cancel", c.handleCancelExecution)
}

func (c *ExecutorsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/executors", c.handleListExecutors)
}

func (c *PointsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/users/{id}/points", c.handleGetUserPoints)
}
