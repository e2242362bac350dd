package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-coupons/internal/domain/auth"
	"github.com/xenking/kart-coupons/internal/domain/cart"
	"github.com/xenking/kart-coupons/internal/domain/coupon"
	"github.com/xenking/kart-coupons/internal/domain/customer"
	"github.com/xenking/kart-coupons/internal/domain/product"
	"github.com/xenking/kart-coupons/internal/domain/redemption"
)

const testKey = "test-key"

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type memCoupons struct {
	mu sync.Mutex
	m  map[string]coupon.Coupon
}

func (s *memCoupons) Create(_ context.Context, c *coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[c.ID]; ok {
		return coupon.ErrAlreadyExists
	}
	s.m[c.ID] = *c
	return nil
}

func (s *memCoupons) Get(_ context.Context, id string) (*coupon.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[id]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return &c, nil
}

func (s *memCoupons) List(context.Context) ([]coupon.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]coupon.Coupon, 0, len(s.m))
	for _, c := range s.m {
		out = append(out, c)
	}
	return out, nil
}

func (s *memCoupons) Update(_ context.Context, c *coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[c.ID]; !ok {
		return coupon.ErrNotFound
	}
	s.m[c.ID] = *c
	return nil
}

func (s *memCoupons) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[id]; !ok {
		return coupon.ErrNotFound
	}
	delete(s.m, id)
	return nil
}

type fakeCarts struct {
	items map[string][]cart.LineItem
}

func (f *fakeCarts) Cart(_ context.Context, customerID string) (*cart.Snapshot, error) {
	items, ok := f.items[customerID]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return cart.New(items)
}

func (f *fakeCarts) AddToCart(ctx context.Context, customerID, productID string, quantity int) (*cart.Snapshot, error) {
	if quantity <= 0 {
		return nil, &customer.InvalidQuantityError{ProductID: productID, Quantity: quantity}
	}
	if productID != "shirt" {
		return nil, product.ErrNotFound
	}
	f.items[customerID] = append(f.items[customerID], cart.LineItem{ProductID: productID, Quantity: quantity, UnitPrice: d("30")})
	return f.Cart(ctx, customerID)
}

func (f *fakeCarts) UpdateCartItem(ctx context.Context, customerID, productID string, quantity int) (*cart.Snapshot, error) {
	items := f.items[customerID]
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity = quantity
			return f.Cart(ctx, customerID)
		}
	}
	return nil, customer.ErrItemNotInCart
}

func (f *fakeCarts) RemoveFromCart(ctx context.Context, customerID, productID string) (*cart.Snapshot, error) {
	items := f.items[customerID]
	for i := range items {
		if items[i].ProductID == productID {
			f.items[customerID] = append(items[:i], items[i+1:]...)
			return f.Cart(ctx, customerID)
		}
	}
	return nil, customer.ErrItemNotInCart
}

// fakeRedemptions ranks with the real engine and fails everything else
// with the configured error.
type fakeRedemptions struct {
	err     error
	results []coupon.Result
	receipt *redemption.Receipt
	history []redemption.Application
}

func (f *fakeRedemptions) ApplicableCoupons(context.Context, string) ([]coupon.Result, error) {
	return f.results, f.err
}

func (f *fakeRedemptions) BestCoupon(context.Context, string) (*coupon.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	best, ok := coupon.Best(f.results)
	if !ok {
		return nil, redemption.ErrNoApplicableCoupon
	}
	return &best, nil
}

func (f *fakeRedemptions) ApplyCoupon(context.Context, string, string) (*redemption.Receipt, error) {
	return f.receipt, f.err
}

func (f *fakeRedemptions) Evaluate(_ context.Context, sn *cart.Snapshot, coupons []coupon.Coupon, cust coupon.Customer) ([]coupon.Result, error) {
	if cust.Now.IsZero() {
		cust.Now = testNow
	}
	return coupon.Rank(sn, coupons, cust)
}

func (f *fakeRedemptions) History(context.Context, string) ([]redemption.Application, error) {
	return f.history, f.err
}

type keyAuth struct{}

func (keyAuth) Authenticate(_ context.Context, key string) (*auth.APIKeyInfo, error) {
	if key != testKey {
		return nil, auth.ErrUnauthorized
	}
	return &auth.APIKeyInfo{ID: "k1", Active: true}, nil
}

type catalog map[string]product.Product

func (c catalog) List(context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(c))
	for _, p := range c {
		out = append(out, p)
	}
	return out, nil
}

func (c catalog) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := c[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (c catalog) Upsert(_ context.Context, p *product.Product) error {
	c[p.ID] = *p
	return nil
}

type testServer struct {
	mux         *http.ServeMux
	coupons     *memCoupons
	carts       *fakeCarts
	redemptions *fakeRedemptions
}

func newTestServer() *testServer {
	s := &testServer{
		mux:         http.NewServeMux(),
		coupons:     &memCoupons{m: map[string]coupon.Coupon{}},
		carts:       &fakeCarts{items: map[string][]cart.LineItem{"c1": nil}},
		redemptions: &fakeRedemptions{},
	}
	products := catalog{"shirt": {ID: "shirt", Name: "Shirt", Price: d("30"), Category: "Shirts"}}
	New(products, s.coupons, s.carts, s.redemptions, keyAuth{}).Register(s.mux)
	return s
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(HeaderAPIKey, testKey)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	return w
}

// errorBody extracts code, message and reason from an error response.
func errorBody(t *testing.T, w *httptest.ResponseRecorder) (code int, reason string) {
	t.Helper()
	require.NoError(t, jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			code, err = d.Int()
		case "reason":
			reason, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}))
	return code, reason
}

const cartWideJSON = `{
	"coupon_id": "SAVE10",
	"type": "cart-wise",
	"details": {"threshold": 100, "discount_percentage": 10},
	"valid_from": "2025-01-01T00:00:00Z"
}`

func TestProducts(t *testing.T) {
	s := newTestServer()

	w := s.do(t, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":"shirt","name":"Shirt","price":30,"category":"Shirts"}]`, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/products/shirt", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"shirt","name":"Shirt","price":30,"category":"Shirts"}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/products/hat", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCoupons_CRUD(t *testing.T) {
	s := newTestServer()

	w := s.do(t, http.MethodPost, "/api/coupons", cartWideJSON)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"coupon_id":"SAVE10"`)
	assert.Contains(t, w.Body.String(), `"is_active":true`)

	w = s.do(t, http.MethodPost, "/api/coupons", cartWideJSON)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/coupons/SAVE10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"type":"cart-wise"`)

	w = s.do(t, http.MethodGet, "/api/coupons", "")
	require.Equal(t, http.StatusOK, w.Code)
	n := 0
	require.NoError(t, jx.DecodeBytes(w.Body.Bytes()).Arr(func(d *jx.Decoder) error {
		n++
		return d.Skip()
	}))
	assert.Equal(t, 1, n)

	updated := strings.Replace(cartWideJSON, `"discount_percentage": 10`, `"discount_percentage": 15`, 1)
	w = s.do(t, http.MethodPut, "/api/coupons/SAVE10", updated)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stored, err := s.coupons.Get(context.Background(), "SAVE10")
	require.NoError(t, err)
	assert.True(t, d("15").Equal(stored.Rules.(coupon.CartWide).DiscountPercentage))

	w = s.do(t, http.MethodPut, "/api/coupons/OTHER", updated)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, "/api/coupons/SAVE10", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/api/coupons/SAVE10", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCoupons_InvalidInput(t *testing.T) {
	s := newTestServer()

	for _, tt := range []struct {
		name string
		body string
		want int
	}{
		{"Empty", "", http.StatusBadRequest},
		{"Malformed", "{", http.StatusBadRequest},
		{"BadPercentage", strings.Replace(cartWideJSON, "10}", "120}", 1), http.StatusUnprocessableEntity},
		{"UnknownType", strings.Replace(cartWideJSON, "cart-wise", "mystery", 1), http.StatusUnprocessableEntity},
	} {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/coupons", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			code, _ := errorBody(t, w)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestAuth(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/coupons", strings.NewReader(cartWideJSON))
	req.Header.Set(HeaderAPIKey, "wrong")
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Reads stay open.
	req = httptest.NewRequest(http.MethodGet, "/api/coupons", nil)
	w = httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCart(t *testing.T) {
	s := newTestServer()

	w := s.do(t, http.MethodPost, "/api/customers/c1/cart", `{"product_id":"shirt","quantity":2}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t,
		`{"items":[{"product_id":"shirt","quantity":2,"price":30,"subtotal":60}],"total":60}`,
		w.Body.String(),
	)

	w = s.do(t, http.MethodPut, "/api/customers/c1/cart/shirt", `{"quantity":3}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":90`)

	w = s.do(t, http.MethodGet, "/api/customers/c1/cart", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":90`)

	w = s.do(t, http.MethodDelete, "/api/customers/c1/cart/shirt", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[],"total":0}`, w.Body.String())

	for _, tt := range []struct {
		name, method, path, body string
		want                     int
	}{
		{"MissingProduct", http.MethodPost, "/api/customers/c1/cart", `{"quantity":1}`, http.StatusBadRequest},
		{"ZeroQuantity", http.MethodPost, "/api/customers/c1/cart", `{"product_id":"shirt","quantity":0}`, http.StatusUnprocessableEntity},
		{"UnknownProduct", http.MethodPost, "/api/customers/c1/cart", `{"product_id":"hat","quantity":1}`, http.StatusNotFound},
		{"UnknownCustomer", http.MethodGet, "/api/customers/nobody/cart", "", http.StatusNotFound},
		{"NotInCart", http.MethodPut, "/api/customers/c1/cart/tie", `{"quantity":1}`, http.StatusNotFound},
		{"BadQuantityType", http.MethodPut, "/api/customers/c1/cart/shirt", `{"quantity":"many"}`, http.StatusBadRequest},
	} {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestRedemption(t *testing.T) {
	s := newTestServer()
	s.redemptions.results = []coupon.Result{
		{CouponID: "SAVE10", CouponType: coupon.TypeCartWise, Applicable: true, Discount: d("12")},
		{CouponID: "SHIRTS", CouponType: coupon.TypeProductWise, Applicable: true, Discount: d("6")},
	}

	w := s.do(t, http.MethodGet, "/api/customers/c1/applicable-coupons", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"applicable_coupons":[`)
	assert.Less(t, strings.Index(body, "SAVE10"), strings.Index(body, "SHIRTS"))

	w = s.do(t, http.MethodGet, "/api/customers/c1/best-coupon", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"coupon_id":"SAVE10"`)
	assert.Contains(t, w.Body.String(), `"discount":12`)

	s.redemptions.receipt = &redemption.Receipt{
		Application: redemption.Application{
			ID:            uuid.New(),
			CustomerID:    "c1",
			CouponID:      "SAVE10",
			CouponType:    coupon.TypeCartWise,
			Discount:      d("12"),
			OriginalTotal: d("120"),
			FinalTotal:    d("108"),
			AppliedAt:     testNow,
		},
	}
	w = s.do(t, http.MethodPost, "/api/customers/c1/apply-coupon/SAVE10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"message":"Coupon applied successfully"`)
	assert.Contains(t, w.Body.String(), `"final_total":108`)

	s.redemptions.history = []redemption.Application{s.redemptions.receipt.Application}
	w = s.do(t, http.MethodGet, "/api/customers/c1/coupon-history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"coupon_history":[{`)
}

func TestRedemption_Errors(t *testing.T) {
	for _, tt := range []struct {
		name       string
		err        error
		want       int
		wantReason string
	}{
		{"Ineligible", &redemption.IneligibleError{CouponID: "X", Reason: coupon.ReasonTierIneligible}, http.StatusUnprocessableEntity, "TIER_INELIGIBLE"},
		{"EmptyCart", redemption.ErrEmptyCart, http.StatusUnprocessableEntity, ""},
		{"UnknownCoupon", errors.Wrap(coupon.ErrNotFound, "load coupon"), http.StatusNotFound, ""},
		{"UnknownCustomer", customer.ErrNotFound, http.StatusNotFound, ""},
		{"Internal", errors.New("connection reset"), http.StatusInternalServerError, ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			s.redemptions.err = tt.err

			w := s.do(t, http.MethodPost, "/api/customers/c1/apply-coupon/X", "")
			assert.Equal(t, tt.want, w.Code)
			code, reason := errorBody(t, w)
			assert.Equal(t, tt.want, code)
			assert.Equal(t, tt.wantReason, reason)
			assert.NotContains(t, w.Body.String(), "connection reset")
		})
	}

	s := newTestServer()
	w := s.do(t, http.MethodGet, "/api/customers/c1/best-coupon", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEvaluate(t *testing.T) {
	s := newTestServer()

	body := `{
		"items": [
			{"product_id": "shirt", "quantity": 5, "price": 30},
			{"product_id": "tie", "quantity": 1, "price": 20}
		],
		"coupons": [
			` + cartWideJSON + `,
			{
				"coupon_id": "FREETIE",
				"type": "bxgy",
				"details": {
					"buy_products": ["shirt"], "buy_quantity": 2,
					"get_products": ["tie"], "get_quantity": 1
				},
				"valid_from": "2025-01-01"
			},
			{
				"coupon_id": "GOLDONLY",
				"type": "cart-wise",
				"details": {"threshold": 0, "discount_percentage": 50},
				"valid_from": "2025-01-01",
				"eligible_tiers": ["Gold"]
			}
		],
		"customer": {"tier": "Basic", "now": "2025-06-15T12:00:00Z"}
	}`
	w := s.do(t, http.MethodPost, "/api/evaluate", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	type row struct {
		id         string
		applicable bool
		discount   string
	}
	var rows []row
	require.NoError(t, jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		if key != "results" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var r row
			err := d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "coupon_id":
					r.id, err = d.Str()
				case "applicable":
					r.applicable, err = d.Bool()
				case "discount":
					var n jx.Num
					n, err = d.Num()
					r.discount = n.String()
				default:
					err = d.Skip()
				}
				return err
			})
			rows = append(rows, r)
			return err
		})
	}))

	// Cart total 170: 10% is 17, the free tie is 20.
	require.Len(t, rows, 3)
	assert.Equal(t, row{"FREETIE", true, "20"}, rows[0])
	assert.Equal(t, row{"SAVE10", true, "17"}, rows[1])
	assert.Equal(t, "GOLDONLY", rows[2].id)
	assert.False(t, rows[2].applicable)
}

func TestEvaluate_Invalid(t *testing.T) {
	s := newTestServer()

	for _, tt := range []struct {
		name string
		body string
		want int
	}{
		{"DuplicateCoupons", `{"items":[],"coupons":[` + cartWideJSON + `,` + cartWideJSON + `]}`, http.StatusBadRequest},
		{"DuplicateItems", `{"items":[{"product_id":"a","quantity":1,"price":1},{"product_id":"a","quantity":1,"price":1}]}`, http.StatusBadRequest},
		{"UnknownTier", `{"customer":{"tier":"Diamond"}}`, http.StatusBadRequest},
		{"InvalidCoupon", `{"coupons":[` + strings.Replace(cartWideJSON, "10}", "-1}", 1) + `]}`, http.StatusUnprocessableEntity},
	} {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/evaluate", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}
