package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-storefront-checkout/internal/apperr"
	"github.com/imrishuroy/go-storefront-checkout/internal/catalog"
	"github.com/imrishuroy/go-storefront-checkout/internal/discounts"
	"github.com/imrishuroy/go-storefront-checkout/internal/validation"
)

type productHandler struct {
	store *catalog.Store
}

func (h *productHandler) list(c *gin.Context) {
	products, err := h.store.List(c.Request.Context())
	if err != nil {
		respondError(c, apperr.Internal("Failed to list products", err))
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	respondOK(c, http.StatusOK, "", products)
}

type discountHandler struct {
	svc *discounts.Service
	v   *validatorv10.Validate
}

func (h *discountHandler) listActive(c *gin.Context) {
	recs, err := h.svc.ActiveRecords(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", nonNil(recs))
}

func (h *discountHandler) listAll(c *gin.Context) {
	recs, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", nonNil(recs))
}

func (h *discountHandler) create(c *gin.Context) {
	var req validation.CreateDiscountRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		// BindAndValidate already wrote a 400
		return
	}
	rec, err := h.svc.Create(c.Request.Context(), req.Record())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "Discount rule created", rec)
}

func (h *discountHandler) update(c *gin.Context) {
	var req validation.UpdateDiscountRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	rec, err := h.svc.Update(c.Request.Context(), c.Param("id"), req.Patch())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Discount rule updated", rec)
}

func (h *discountHandler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Discount rule deleted", nil)
}

func nonNil(recs []discounts.Record) []discounts.Record {
	if recs == nil {
		return []discounts.Record{}
	}
	return recs
}
