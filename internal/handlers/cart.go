package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-storefront-checkout/internal/cart"
	"github.com/imrishuroy/go-storefront-checkout/internal/validation"
)

type cartHandler struct {
	svc *cart.Service
	v   *validatorv10.Validate
}

type lineQuantity struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *cartHandler) read(c *gin.Context) {
	view, err := h.svc.Read(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", view)
}

func (h *cartHandler) update(c *gin.Context) {
	var req validation.CartUpdateRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	ctx := c.Request.Context()

	var (
		qty int
		err error
		msg string
	)
	switch req.Action {
	case validation.ActionIncrement:
		qty, err = h.svc.Increment(ctx, userID(c), req.ProductID)
		msg = "Item added to cart"
	case validation.ActionDecrement:
		qty, err = h.svc.Decrement(ctx, userID(c), req.ProductID)
		msg = "Item quantity decreased"
		if qty == 0 {
			msg = "Item removed from cart"
		}
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, msg, lineQuantity{ProductID: req.ProductID, Quantity: qty})
}

func (h *cartHandler) remove(c *gin.Context) {
	var req validation.CartRemoveRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	if err := h.svc.Remove(c.Request.Context(), userID(c), req.ProductID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Item removed from cart", nil)
}

func (h *cartHandler) clear(c *gin.Context) {
	n, err := h.svc.Clear(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Cart cleared", gin.H{"removed": n})
}
