package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront-checkout/internal/apperr"
	"github.com/imrishuroy/go-storefront-checkout/internal/checkout"
	"github.com/imrishuroy/go-storefront-checkout/internal/idempotency"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
)

type checkoutHandler struct {
	svc  *checkout.Service
	idem *idempotency.Store
}

func (h *checkoutHandler) checkout(c *gin.Context) {
	ctx := checkout.WithCorrelationID(c.Request.Context(), requestID(c))
	user := userID(c)

	key := c.GetHeader("Idempotency-Key")
	if key != "" && h.idem != nil {
		if !h.claim(c, key, user) {
			return
		}
	} else {
		key = ""
	}

	res, err := h.svc.Checkout(ctx, user)
	// the key must leave IN_PROGRESS even if the client has gone away
	markCtx := context.WithoutCancel(ctx)
	if err != nil {
		if key != "" {
			// failed attempts stay reclaimable; nothing was settled
			if merr := h.idem.MarkFailed(markCtx, key, apperr.As(err).Message); merr != nil {
				logger.Error().Err(merr).Str("idempotency_key", key).Msg("Error marking idempotency key failed")
			}
		}
		respondError(c, err)
		return
	}

	body, err := encode("Checkout completed", res)
	if err != nil {
		respondError(c, apperr.Internal("Checkout completed but response encoding failed", err))
		return
	}
	if key != "" {
		if err := h.idem.MarkDone(markCtx, key, res.OrderID, string(body), http.StatusOK); err != nil {
			logger.Error().Err(err).Str("idempotency_key", key).Str("order_id", res.OrderID).Msg("Error marking idempotency key done")
		}
	}
	c.Header("Location", fmt.Sprintf("/orders/%s", res.OrderID))
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// claim takes ownership of an idempotency key. It returns false after writing
// the response when the request must not run: a replay, a key in flight, or a
// key owned by another user.
func (h *checkoutHandler) claim(c *gin.Context, key, user string) bool {
	ctx := c.Request.Context()
	created, err := h.idem.CreateIfNotExists(ctx, key, user)
	if err != nil {
		respondError(c, apperr.Internal("Idempotency check failed", err))
		return false
	}
	if created {
		return true
	}

	rec, err := h.idem.Get(ctx, key)
	if err != nil {
		respondError(c, apperr.Internal("Idempotency check failed", err))
		return false
	}
	if rec == nil {
		// expired between the write and the read
		conflict(c, "Idempotency key expired, retry the request")
		return false
	}
	if rec.UserID != user {
		conflict(c, "Idempotency key was used by another request")
		return false
	}

	switch rec.Status {
	case idempotency.StatusDone:
		c.Header("Idempotent-Replayed", "true")
		c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
		return false
	case idempotency.StatusInProgress:
		conflict(c, "A checkout with this Idempotency-Key is already in progress")
		return false
	case idempotency.StatusFailed:
		ok, err := h.idem.Reclaim(ctx, key)
		if err != nil {
			respondError(c, apperr.Internal("Idempotency check failed", err))
			return false
		}
		if !ok {
			conflict(c, "A checkout with this Idempotency-Key is already in progress")
			return false
		}
		return true
	default:
		respondError(c, apperr.Internal("Idempotency check failed", fmt.Errorf("unknown idempotency status %q", rec.Status)))
		return false
	}
}

func conflict(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusConflict, envelope{Success: false, Message: msg})
}

type orderHandler struct {
	store *orders.Store
}

func (h *orderHandler) get(c *gin.Context) {
	rec, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperr.Internal("Failed to load order", err))
		return
	}
	// other users' receipts are reported as missing
	if rec == nil || rec.UserID != userID(c) {
		respondError(c, apperr.NotFound("Order not found"))
		return
	}
	respondOK(c, http.StatusOK, "", rec)
}

