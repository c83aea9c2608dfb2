package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/service"
)

// ============================================================
// Social accounts
// ============================================================

func listSocialAccountsHandler(svc *service.SocialAccountService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /social-accounts")
		defer span.End()

		brandID, ok := queryID(r, "brandId")
		if !ok {
			writeError(w, http.StatusBadRequest, "brandId must be a positive integer")
			return
		}

		accounts, err := svc.List(ctx, PrincipalFromContext(ctx), brandID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if accounts == nil {
			accounts = []domain.SocialAccount{}
		}
		writeJSON(w, http.StatusOK, accounts)
	}
}

func createSocialAccountHandler(svc *service.SocialAccountService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /social-accounts")
		defer span.End()

		var req domain.CreateSocialAccountRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		acct, err := svc.Create(ctx, PrincipalFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, acct)
	}
}

func deleteSocialAccountHandler(svc *service.SocialAccountService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /social-accounts/{id}")
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

// facebookPagesHandler lists the pages reachable with a connected account's token.
func facebookPagesHandler(svc *service.SocialAccountService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /social/facebook/pages")
		defer span.End()

		accountID, ok := queryID(r, "socialAccountId")
		if !ok || accountID == nil {
			writeError(w, http.StatusBadRequest, "socialAccountId is required")
			return
		}

		pages, err := svc.FetchPages(ctx, PrincipalFromContext(ctx), *accountID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if pages == nil {
			pages = []domain.Page{}
		}
		writeJSON(w, http.StatusOK, pages)
	}
}

// ============================================================
// Media
// ============================================================

func listMediaHandler(svc *service.MediaService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /media")
		defer span.End()

		brandID, ok := queryID(r, "brandId")
		if !ok {
			writeError(w, http.StatusBadRequest, "brandId must be a positive integer")
			return
		}

		items, err := svc.List(ctx, PrincipalFromContext(ctx), brandID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if items == nil {
			items = []domain.MediaItem{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func createMediaHandler(svc *service.MediaService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /media")
		defer span.End()

		var req domain.CreateMediaRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		item, err := svc.Create(ctx, PrincipalFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	}
}

func deleteMediaHandler(svc *service.MediaService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /media/{id}")
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
