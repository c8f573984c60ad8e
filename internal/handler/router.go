package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/letterflow-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса учёта писем.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Route("/api/letters", func(r chi.Router) {
			r.Post("/", h.CreateLetter)
			r.Get("/", h.ListMyLetters)
			r.Get("/dashboard", h.Dashboard)

			r.Post("/bulk-accept", h.BulkAccept())
			r.Post("/bulk-reject", h.BulkReject())
			r.Post("/bulk-dispatch", h.BulkDispatch())
			r.Post("/bulk-forward", h.BulkForward())
			r.Post("/bulk-process", h.BulkProcess())
			r.Post("/archive", h.ArchiveLetters())

			r.Route("/{letterID}", func(r chi.Router) {
				r.Get("/", h.GetLetter)
				r.Post("/dispatch", h.DispatchLetter)
				r.Post("/receive", h.ReceiveLetter)
				r.Post("/reject", h.RejectLetter)
				r.Post("/notes", h.AddNote)
				r.Post("/complete", h.CompleteLetter)
				r.Post("/pv", h.AttachPV)
				r.Post("/forward", h.ForwardLetter)
			})
		})

		r.Route("/api/batches", func(r chi.Router) {
			r.Post("/", h.CreateBatch)
			r.Get("/", h.ListBatches)

			r.Route("/{batchID}", func(r chi.Router) {
				r.Get("/", h.GetBatch)
				r.Post("/dispatch", h.BatchDispatch)
				r.Post("/forward", h.BatchForward)
				r.Post("/process", h.BatchProcess)
			})
		})

		r.Get("/api/stats/processing-time", h.ProcessingTimeStats)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
