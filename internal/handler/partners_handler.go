package handler

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/service"
)

// ============================================================
// GET /retail-partners
// ============================================================

func listPartnersHandler(svc *service.PartnerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /retail-partners")
		defer span.End()

		brandID, ok := queryID(r, "brandId")
		if !ok {
			writeError(w, http.StatusBadRequest, "brandId must be a positive integer")
			return
		}

		partners, err := svc.List(ctx, PrincipalFromContext(ctx), brandID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if partners == nil {
			partners = []domain.RetailPartner{}
		}
		writeJSON(w, http.StatusOK, partners)
	}
}

// ============================================================
// POST /retail-partners
// ============================================================

func createPartnerHandler(svc *service.PartnerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /retail-partners")
		defer span.End()

		var req domain.CreatePartnerRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		partner, err := svc.Create(ctx, PrincipalFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, partner)
	}
}

func bulkImportPartnersHandler(svc *service.PartnerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /retail-partners/bulk")
		defer span.End()

		var req domain.BulkImportRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.Int("bulk.size", len(req.Partners)))

		res, err := svc.BulkImport(ctx, PrincipalFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// ============================================================
// /retail-partners/{id}
// ============================================================

func getPartnerHandler(svc *service.PartnerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /retail-partners/{id}")
		defer span.End()

		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}
		span.SetAttributes(attribute.Int64("partner.id", id))

		partner, err := svc.Get(ctx, PrincipalFromContext(ctx), id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, partner)
	}
}

func updatePartnerHandler(svc *service.PartnerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /retail-partners/{id}")
		defer span.End()

		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}
		span.SetAttributes(attribute.Int64("partner.id", id))

		// Unknown fields such as brandId are dropped by the decoder.
		var patch domain.RetailPartnerPatch
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		partner, err := svc.Update(ctx, PrincipalFromContext(ctx), id, patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, partner)
	}
}

func deletePartnerHandler(svc *service.PartnerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /retail-partners/{id}")
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
