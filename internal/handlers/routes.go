package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register mounts the task API on r. Everything except the health check
// goes through authenticate.
func (h *TaskHandler) Register(r chi.Router, authenticate func(http.Handler) http.Handler) {
	r.Get("/health", h.HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(authenticate)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.ListTasks)        // GET /tasks?status=&q=&sort=
			r.Post("/", h.PostTask)        // POST /tasks
			r.Post("/refresh", h.Refresh)  // POST /tasks/refresh
			r.Get("/board", h.Board)       // GET /tasks/board
			r.Get("/timeline", h.Timeline) // GET /tasks/timeline

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", h.UpdateTask)            // PATCH /tasks/{id}
				r.Delete("/", h.DeleteTask)           // DELETE /tasks/{id}
				r.Post("/complete", h.ToggleComplete) // POST /tasks/{id}/complete
				r.Put("/status", h.UpdateStatus)      // PUT /tasks/{id}/status
			})
		})

		r.Post("/auth/signout", h.SignOut)
	})
}
