package handler

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/service"
)

func listPostsHandler(svc *service.PostService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /content-posts")
		defer span.End()

		brandID, ok := queryID(r, "brandId")
		if !ok {
			writeError(w, http.StatusBadRequest, "brandId must be a positive integer")
			return
		}

		posts, err := svc.List(ctx, PrincipalFromContext(ctx), brandID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if posts == nil {
			posts = []domain.ContentPost{}
		}
		writeJSON(w, http.StatusOK, posts)
	}
}

func createPostHandler(svc *service.PostService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /content-posts")
		defer span.End()

		var req domain.CreatePostRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		post, err := svc.Create(ctx, PrincipalFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, post)
	}
}

func getPostHandler(svc *service.PostService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /content-posts/{id}")
		defer span.End()

		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}
		span.SetAttributes(attribute.Int64("post.id", id))

		post, err := svc.Get(ctx, PrincipalFromContext(ctx), id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, post)
	}
}

func updatePostHandler(svc *service.PostService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /content-posts/{id}")
		defer span.End()

		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}
		span.SetAttributes(attribute.Int64("post.id", id))

		var patch domain.ContentPostPatch
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		post, err := svc.Update(ctx, PrincipalFromContext(ctx), id, patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, post)
	}
}

func deletePostHandler(svc *service.PostService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /content-posts/{id}")
		defer span.End()

		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}

		if err := svc.Delete(ctx, PrincipalFromContext(ctx), id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// Distribution
// ============================================================

func schedulePostHandler(svc *service.PostService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /content-posts/{id}/schedule")
		defer span.End()

		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}

		var req domain.ScheduleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(
			attribute.Int64("post.id", id),
			attribute.Int("schedule.partners", len(req.PartnerIDs)),
		)

		res, err := svc.Schedule(ctx, PrincipalFromContext(ctx), id, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func listAssignmentsHandler(svc *service.PostService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /content-posts/{id}/assignments")
		defer span.End()

		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}

		assignments, err := svc.ListAssignments(ctx, PrincipalFromContext(ctx), id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if assignments == nil {
			assignments = []domain.PostAssignment{}
		}
		writeJSON(w, http.StatusOK, assignments)
	}
}

func updateAssignmentHandler(svc *service.PostService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /post-assignments/{id}")
		defer span.End()

		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}
		span.SetAttributes(attribute.Int64("assignment.id", id))

		var patch domain.AssignmentPatch
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		a, err := svc.UpdateAssignment(ctx, PrincipalFromContext(ctx), id, patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// ============================================================
// Publishing
// ============================================================

func publishPostHandler(svc *service.PublishService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /content-posts/{id}/publish")
		defer span.End()

		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}
		span.SetAttributes(attribute.Int64("post.id", id))

		res, err := svc.PublishPost(ctx, PrincipalFromContext(ctx), id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.Int("publish.succeeded", res.Published),
			attribute.Int("publish.failed", res.Failed),
		)
		writeJSON(w, http.StatusOK, res)
	}
}

func publishAssignmentHandler(svc *service.PublishService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /social/facebook/post")
		defer span.End()

		var req domain.PublishRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.AssignmentID <= 0 {
			writeError(w, http.StatusBadRequest, "assignmentId is required")
			return
		}
		span.SetAttributes(attribute.Int64("assignment.id", req.AssignmentID))

		a, err := svc.PublishAssignment(ctx, PrincipalFromContext(ctx), req.AssignmentID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}
