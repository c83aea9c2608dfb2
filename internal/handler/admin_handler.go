package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/service"
)

func currentBrandHandler(svc *service.BrandService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /brand")
		defer span.End()

		brand, err := svc.Current(ctx, PrincipalFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, brand)
	}
}

func listBrandsHandler(svc *service.BrandService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /admin/brands")
		defer span.End()

		brands, err := svc.List(ctx, PrincipalFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.NewListResponse(brands))
	}
}

// listUsersHandler filters by ?role=, defaulting to brand accounts.
func listUsersHandler(svc *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /admin/users")
		defer span.End()

		role := domain.Role(r.URL.Query().Get("role"))
		if role == "" {
			role = domain.RoleBrand
		}

		users, err := svc.ListByRole(ctx, PrincipalFromContext(ctx), role)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.NewListResponse(users))
	}
}

func statsHandler(svc *service.BrandService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /admin/stats")
		defer span.End()

		stats, err := svc.Stats(ctx, PrincipalFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
