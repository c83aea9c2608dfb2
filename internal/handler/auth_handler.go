package handler

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/service"
)

// ============================================================
// Authentication
// ============================================================

func loginHandler(auth *service.Authenticator, jar cookieJar, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /login")
		defer span.End()

		var req domain.LoginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Username == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "username and password are required")
			return
		}

		sess, p, err := auth.Login(ctx, req.Username, req.Password)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		resp, err := auth.Describe(ctx, p)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		jar.set(w, sess)
		writeJSON(w, http.StatusOK, resp)
	}
}

func logoutHandler(auth *service.Authenticator, jar cookieJar, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /logout")
		defer span.End()

		if err := auth.Logout(ctx, sessionIDFromRequest(r)); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		jar.clear(w)
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "logged out"})
	}
}

func registerHandler(auth *service.Authenticator, jar cookieJar, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /register")
		defer span.End()

		var req domain.RegisterRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sess, p, err := auth.Register(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		resp, err := auth.Describe(ctx, p)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		jar.set(w, sess)
		writeJSON(w, http.StatusCreated, resp)
	}
}

func currentUserHandler(auth *service.Authenticator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /user")
		defer span.End()

		resp, err := auth.Describe(ctx, PrincipalFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ============================================================
// Impersonation
// ============================================================

func impersonateHandler(auth *service.Authenticator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /admin/impersonate/{brandId}")
		defer span.End()

		brandID, ok := pathID(r, "brandId")
		if !ok {
			writeError(w, http.StatusBadRequest, "brandId must be a positive integer")
			return
		}
		span.SetAttributes(attribute.Int64("brand.id", brandID))

		p, err := auth.Impersonate(ctx, SessionIDFromContext(ctx), PrincipalFromContext(ctx), brandID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		resp, err := auth.Describe(ctx, p)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func endImpersonationHandler(auth *service.Authenticator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /admin/end-impersonation")
		defer span.End()

		p, err := auth.EndImpersonation(ctx, SessionIDFromContext(ctx), PrincipalFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		resp, err := auth.Describe(ctx, p)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ============================================================
// Invites
// ============================================================

func createInviteHandler(svc *service.InviteService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /invites")
		defer span.End()

		var req domain.InviteCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := svc.Create(ctx, PrincipalFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func verifyInviteHandler(svc *service.InviteService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /invites/verify")
		defer span.End()

		info, err := svc.Verify(ctx, r.URL.Query().Get("token"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func acceptInviteHandler(svc *service.InviteService, auth *service.Authenticator, jar cookieJar, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /invites/accept")
		defer span.End()

		var req domain.InviteAcceptRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sess, p, err := svc.Accept(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		resp, err := auth.Describe(ctx, p)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		jar.set(w, sess)
		writeJSON(w, http.StatusCreated, resp)
	}
}
