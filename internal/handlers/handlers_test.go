package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-storefront-checkout/internal/aws/dynamotest"
	"github.com/imrishuroy/go-storefront-checkout/internal/cart"
	"github.com/imrishuroy/go-storefront-checkout/internal/catalog"
	"github.com/imrishuroy/go-storefront-checkout/internal/checkout"
	"github.com/imrishuroy/go-storefront-checkout/internal/discounts"
	"github.com/imrishuroy/go-storefront-checkout/internal/idempotency"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
)

var secret = []byte("test-secret")

type testAPI struct {
	router   *gin.Engine
	fake     *dynamotest.Fake
	products *catalog.Store
	orders   *orders.Store
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fake := dynamotest.New(
		dynamotest.TableSchema{Name: "products", PartitionKey: "product_id"},
		dynamotest.TableSchema{Name: "cart_lines", PartitionKey: "user_id", SortKey: "product_id"},
		dynamotest.TableSchema{Name: "discount_rules", PartitionKey: "rule_id"},
		dynamotest.TableSchema{Name: "idempotency", PartitionKey: "idempotency_key"},
		dynamotest.TableSchema{Name: "orders", PartitionKey: "order_id"},
	)
	products := catalog.NewStore(fake, "products")
	lines := cart.NewStore(fake, "cart_lines")
	rules := discounts.NewService(discounts.NewStore(fake, "discount_rules"), nil)
	orderStore := orders.NewStore(fake, "orders")

	router := NewRouter(HandlerConfig{
		Products:    products,
		Discounts:   rules,
		Cart:        cart.NewService(lines, products, rules),
		Checkout:    checkout.NewService(lines, products, rules, nil, checkout.ChargeDiscounted),
		Idempotency: idempotency.NewStore(fake, "idempotency", time.Hour),
		Orders:      orderStore,
		JWTSecret:   secret,
	})
	return &testAPI{router: router, fake: fake, products: products, orders: orderStore}
}

func (a *testAPI) product(t *testing.T, id, price string, stock int) {
	t.Helper()
	require.NoError(t, a.products.Put(context.Background(), catalog.Product{
		ID: id, Name: "Product " + id, Price: decimal.RequireFromString(price), Category: "Clothing", Stock: stock,
	}))
}

func token(t *testing.T, sub, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString(secret)
	require.NoError(t, err)
	return s
}

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (a *testAPI) do(t *testing.T, method, path, tok string, body any, headers ...string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	return a.doCtx(t, context.Background(), method, path, tok, body, headers...)
}

func (a *testAPI) doCtx(t *testing.T, ctx context.Context, method, path, tok string, body any, headers ...string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func TestHealth(t *testing.T) {
	api := setupAPI(t)
	w, _ := api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestAuth(t *testing.T) {
	api := setupAPI(t)

	w, resp := api.do(t, http.MethodGet, "/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, resp.Success)

	w, _ = api.do(t, http.MethodGet, "/cart", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// cookie tokens are accepted
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token(t, "u1", "")})
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// admin routes need the admin role
	w, resp = api.do(t, http.MethodGet, "/discounts/admin/all", token(t, "u1", ""), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Admin access required", resp.Message)
}

func TestDiscountAdminFlow(t *testing.T) {
	api := setupAPI(t)
	admin := token(t, "admin-1", RoleAdmin)

	w, resp := api.do(t, http.MethodPost, "/discounts/admin", admin, map[string]any{
		"type": "PERCENTAGE_OFF", "ruleType": "Clothing Sale", "discountValue": 20, "category": "Clothing",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created discounts.Record
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.IsActive)

	w, resp = api.do(t, http.MethodPost, "/discounts/admin", admin, map[string]any{
		"type": "PERCENTAGE_OFF", "ruleType": "Too much", "discountValue": 120,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp.Message, "discountValue")

	w, resp = api.do(t, http.MethodGet, "/discounts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var active []discounts.Record
	require.NoError(t, json.Unmarshal(resp.Data, &active))
	require.Len(t, active, 1)

	w, _ = api.do(t, http.MethodPut, "/discounts/admin/"+created.ID, admin, map[string]any{"isActive": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, resp = api.do(t, http.MethodGet, "/discounts", "", nil)
	require.NoError(t, json.Unmarshal(resp.Data, &active))
	assert.Empty(t, active)

	w, _ = api.do(t, http.MethodDelete, "/discounts/admin/"+created.ID, admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = api.do(t, http.MethodDelete, "/discounts/admin/"+created.ID, admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCartFlow(t *testing.T) {
	api := setupAPI(t)
	admin := token(t, "admin-1", RoleAdmin)
	user := token(t, "u1", "")
	api.product(t, "p1", "19.99", 2)

	w, _ := api.do(t, http.MethodPost, "/discounts/admin", admin, map[string]any{
		"type": "BOGO", "ruleType": "Buy 1 Get 1", "discountValue": 0, "productId": "p1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	for i := 0; i < 2; i++ {
		w, _ = api.do(t, http.MethodPost, "/cart/update", user, map[string]string{"productId": "p1", "action": "increment"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	// stock is 2
	w, resp := api.do(t, http.MethodPost, "/cart/update", user, map[string]string{"productId": "p1", "action": "increment"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Insufficient stock for Product p1. Available: 2, Requested: 3", resp.Message)

	w, resp = api.do(t, http.MethodGet, "/cart", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view cart.View
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	require.Len(t, view.Items, 1)
	assert.Equal(t, "Buy 1 Get 1", view.Items[0].DiscountApplied)
	assert.True(t, view.Summary.TotalFinalPrice.Equal(decimal.RequireFromString("19.99")))

	w, _ = api.do(t, http.MethodPost, "/cart/update", user, map[string]string{"productId": "p1", "action": "bounce"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = api.do(t, http.MethodPost, "/cart/update", user, map[string]string{"productId": "p1", "action": "decrement"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Item quantity decreased", resp.Message)

	w, _ = api.do(t, http.MethodPost, "/cart/remove", user, map[string]string{"productId": "p1"})
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = api.do(t, http.MethodPost, "/cart/remove", user, map[string]string{"productId": "p1"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = api.do(t, http.MethodPost, "/cart/update", user, map[string]string{"productId": "ghost", "action": "increment"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckout(t *testing.T) {
	api := setupAPI(t)
	user := token(t, "u1", "")
	api.product(t, "p1", "10", 5)

	w, resp := api.do(t, http.MethodPost, "/checkout", user, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Cart is empty", resp.Message)

	api.do(t, http.MethodPost, "/cart/update", user, map[string]string{"productId": "p1", "action": "increment"})
	w, resp = api.do(t, http.MethodPost, "/checkout", user, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res checkout.Result
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.True(t, res.TotalAmount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 1, res.ItemsProcessed)
	assert.Equal(t, "/orders/"+res.OrderID, w.Header().Get("Location"))
}

func TestCheckout_IdempotencyKeyReplays(t *testing.T) {
	api := setupAPI(t)
	user := token(t, "u1", "")
	api.product(t, "p1", "10", 5)
	api.do(t, http.MethodPost, "/cart/update", user, map[string]string{"productId": "p1", "action": "increment"})

	first, _ := api.do(t, http.MethodPost, "/checkout", user, nil, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	// the cart is empty now; a replay must not run the checkout again
	second, _ := api.do(t, http.MethodPost, "/checkout", user, nil, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	p, err := api.products.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 4, p.Stock)

	// another user cannot reuse the key
	w, _ := api.do(t, http.MethodPost, "/checkout", token(t, "u2", ""), nil, "Idempotency-Key", "k-1")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCheckout_ClientGoneAfterSettlementCompletesKey(t *testing.T) {
	api := setupAPI(t)
	user := token(t, "u1", "")
	api.product(t, "p1", "10", 5)
	api.do(t, http.MethodPost, "/cart/update", user, map[string]string{"productId": "p1", "action": "increment"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api.fake.AfterUpdateItem = func(in *dyn.UpdateItemInput) {
		if strings.Contains(*in.UpdateExpression, "stock - :qty") {
			cancel()
		}
	}

	first, _ := api.doCtx(t, ctx, http.MethodPost, "/checkout", user, nil, "Idempotency-Key", "k-gone")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	require.Error(t, ctx.Err())
	api.fake.AfterUpdateItem = nil

	// the key was completed, so a retry replays instead of reporting a conflict
	second, _ := api.do(t, http.MethodPost, "/checkout", user, nil, "Idempotency-Key", "k-gone")
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	w, resp := api.do(t, http.MethodGet, "/cart", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view cart.View
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.Empty(t, view.Items)

	p, err := api.products.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 4, p.Stock)
}

func TestCheckout_FailedKeyIsRetried(t *testing.T) {
	api := setupAPI(t)
	user := token(t, "u1", "")
	api.product(t, "p1", "10", 5)
	for i := 0; i < 3; i++ {
		api.do(t, http.MethodPost, "/cart/update", user, map[string]string{"productId": "p1", "action": "increment"})
	}
	api.product(t, "p1", "10", 1)

	w, resp := api.do(t, http.MethodPost, "/checkout", user, nil, "Idempotency-Key", "k-2")
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, string(resp.Data), `"available":1`)

	api.product(t, "p1", "10", 5)
	w, _ = api.do(t, http.MethodPost, "/checkout", user, nil, "Idempotency-Key", "k-2")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	p, err := api.products.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)
}

func TestGetOrder(t *testing.T) {
	api := setupAPI(t)
	require.NoError(t, api.orders.Create(context.Background(), orders.Receipt{
		OrderID:       "order-1",
		UserID:        "u1",
		ChargedAmount: decimal.NewFromInt(10),
		CompletedAt:   time.Now(),
	}))

	w, resp := api.do(t, http.MethodGet, "/orders/order-1", token(t, "u1", ""), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got orders.Receipt
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, "order-1", got.OrderID)

	w, _ = api.do(t, http.MethodGet, "/orders/order-1", token(t, "u2", ""), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = api.do(t, http.MethodGet, "/orders/missing", token(t, "u1", ""), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListProducts(t *testing.T) {
	api := setupAPI(t)
	api.product(t, "p1", "10", 5)

	w, resp := api.do(t, http.MethodGet, "/products", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got []catalog.Product
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	require.Len(t, got, 1)
	assert.True(t, got[0].Price.Equal(decimal.NewFromInt(10)))
}
