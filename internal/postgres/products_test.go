package postgres_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront/internal/httpx"
	"github.com/ariefcatur/go-storefront/internal/listing"
	"github.com/ariefcatur/go-storefront/internal/shop"
)

func (s *StoreSuite) TestProductCreateUpdateDelete() {
	ctx := context.Background()

	created, err := s.prods.Create(ctx, shop.ProductInput{Name: "Kopi", Description: "arabika", Price: 1000, Quantity: 5})
	s.Require().NoError(err)
	s.NotZero(created.ID)
	s.Equal("arabika", created.Description)
	s.Nil(created.CategoryID)

	updated, err := s.prods.Update(ctx, created.ID, shop.ProductInput{Name: "Kopi Susu", Price: 1500, Quantity: 2})
	s.Require().NoError(err)
	s.Equal("Kopi Susu", updated.Name)
	s.Equal(int64(1500), updated.Price)
	s.Equal(2, updated.Quantity)
	s.Empty(updated.Description)

	_, err = s.prods.Update(ctx, 9999, shop.ProductInput{Name: "x"})
	s.ErrorIs(err, shop.ErrNotFound)

	s.Require().NoError(s.prods.Delete(ctx, created.ID))
	s.ErrorIs(s.prods.Delete(ctx, created.ID), shop.ErrNotFound)
}

func (s *StoreSuite) TestProductUnknownCategory() {
	cat := int64(404)
	_, err := s.prods.Create(context.Background(), shop.ProductInput{Name: "Kopi", Price: 1, CategoryID: &cat})
	var se *shop.Error
	s.Require().ErrorAs(err, &se)
	s.Equal(shop.KindNotFound, se.Kind)
	s.Equal("category", se.Field)
}

func (s *StoreSuite) TestOrderedProductCannotBeDeleted() {
	ctx := context.Background()
	p := s.product("Kopi", 1000, 5)
	_, _, err := s.carts.Upsert(ctx, 8, p, 1)
	s.Require().NoError(err)

	placed, err := s.engine.PlaceOrder(ctx, order(7, shop.LineItem{ProductID: p, Quantity: 1}))
	s.Require().NoError(err)

	err = s.prods.Delete(ctx, p)
	var se *shop.Error
	s.Require().ErrorAs(err, &se)
	s.Equal(shop.KindConflict, se.Kind)
	s.Equal(p, se.ProductID)
	s.Equal(1, s.count("carts"), "failed delete leaves cart lines alone")

	s.Require().NoError(s.engine.CancelOrder(ctx, 7, placed.OrderID))
	s.Require().NoError(s.prods.Delete(ctx, p))
	s.Equal(0, s.count("carts"))
}

// TestPriceUpdateOverHTTPKeepsOrderLines drives the catalog and checkout
// routes against the real stores.
func (s *StoreSuite) TestPriceUpdateOverHTTPKeepsOrderLines() {
	svc := listing.New(s.prods, s.carts, s.orders, nil, zap.NewNop())
	srv := httptest.NewServer(httpx.NewRouter(httpx.RouterDeps{
		Products: &httpx.ProductsHandler{Catalog: svc, Admin: svc, DefaultPageSize: 20},
		Orders:   &httpx.OrdersHandler{Checkout: s.engine, Orders: svc, DefaultPageSize: 20},
	}))
	defer srv.Close()

	send := func(method, path, user, role, body string) (int, map[string]any) {
		req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
		s.Require().NoError(err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(httpx.HeaderUserID, user)
		req.Header.Set(httpx.HeaderUserRole, role)
		res, err := http.DefaultClient.Do(req)
		s.Require().NoError(err)
		defer res.Body.Close()
		var out map[string]any
		_ = json.NewDecoder(res.Body).Decode(&out)
		return res.StatusCode, out
	}

	code, prod := send(http.MethodPost, "/products", "1", "admin", `{"name":"Kopi","price":1000,"quantity":5}`)
	s.Require().Equal(http.StatusCreated, code)
	pid := int64(prod["id"].(float64))

	code, placed := send(http.MethodPost, "/orders", "7", "customer",
		fmt.Sprintf(`{"address":"Jl. Sudirman 1","fullname":"Alice","phone_number":"0812","items":[{"product_id":%d,"quantity":2}]}`, pid))
	s.Require().Equal(http.StatusCreated, code)
	oid := int64(placed["order_id"].(float64))

	code, prod = send(http.MethodPut, fmt.Sprintf("/products/%d", pid), "1", "admin", `{"name":"Kopi","price":9999,"quantity":3}`)
	s.Require().Equal(http.StatusOK, code)
	s.Equal(float64(9999), prod["price"])

	code, got := send(http.MethodGet, fmt.Sprintf("/orders/%d", oid), "7", "customer", "")
	s.Require().Equal(http.StatusOK, code)
	lines := got["lines"].([]any)
	s.Require().Len(lines, 1)
	line := lines[0].(map[string]any)
	s.Equal(float64(1000), line["unit_price"])
	s.Equal(float64(2000), line["subtotal"])

	code, body := send(http.MethodDelete, fmt.Sprintf("/products/%d", pid), "1", "admin", "")
	s.Equal(http.StatusConflict, code)
	s.Equal(float64(pid), body["product_id"])
}
