// Package catalog defines the fixed set of operations loadmix can issue
// against the target service and how each one builds a concrete request.
package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	randomAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	randomLength   = 8
	logTimeLayout  = "2006-01-02 15:04:05"
)

// Request is the concrete form of an operation ready to be sent.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

// Payload returns the serialized body, or the encoded query for body-less requests.
func (r Request) Payload() string {
	if len(r.Body) > 0 {
		return string(r.Body)
	}
	if len(r.Query) > 0 {
		return r.Query.Encode()
	}
	return ""
}

// Operation is one request kind in the catalog.
type Operation struct {
	Name     string
	Method   string
	Path     string
	Requires []PoolKind
	build    func(rnd *rand.Rand, pools Pools) (Request, error)
}

// Build produces a concrete request. It fails when a required pool is empty.
func (o *Operation) Build(rnd *rand.Rand, pools Pools) (Request, error) {
	if o == nil || o.build == nil {
		return Request{}, fmt.Errorf("operation has no builder")
	}
	if kind, missing := pools.Missing(o); missing {
		return Request{}, &MissingPoolError{Operation: o.Name, Pool: kind}
	}
	return o.build(rnd, pools)
}

// NeedsPools reports whether the operation consumes identifier pools.
func (o *Operation) NeedsPools() bool {
	return len(o.Requires) > 0
}

// MissingPoolError is returned when an operation needs an empty pool.
type MissingPoolError struct {
	Operation string
	Pool      PoolKind
}

func (e *MissingPoolError) Error() string {
	return fmt.Sprintf("%s: no %s identifiers available", e.Operation, e.Pool)
}

var (
	CreateUser = &Operation{
		Name:   "create_user",
		Method: http.MethodPost,
		Path:   "/api/users",
		build:  buildCreateUser,
	}
	CreateProduct = &Operation{
		Name:   "create_product",
		Method: http.MethodPost,
		Path:   "/api/products",
		build:  buildCreateProduct,
	}
	CreateOrder = &Operation{
		Name:     "create_order",
		Method:   http.MethodPost,
		Path:     "/api/orders",
		Requires: []PoolKind{PoolUsers, PoolProducts},
		build:    buildCreateOrder,
	}
	CreateLog = &Operation{
		Name:   "create_log",
		Method: http.MethodPost,
		Path:   "/api/logs",
		build:  buildCreateLog,
	}
	SearchUsers = &Operation{
		Name:   "search_users",
		Method: http.MethodGet,
		Path:   "/api/users/search",
		build:  searchBuilder("/api/users/search", "User"),
	}
	SearchProducts = &Operation{
		Name:   "search_products",
		Method: http.MethodGet,
		Path:   "/api/products/search",
		build:  searchBuilder("/api/products/search", "Product"),
	}
)

var registry = map[string]*Operation{
	CreateUser.Name:     CreateUser,
	CreateProduct.Name:  CreateProduct,
	CreateOrder.Name:    CreateOrder,
	CreateLog.Name:      CreateLog,
	SearchUsers.Name:    SearchUsers,
	SearchProducts.Name: SearchProducts,
}

// Lookup resolves an operation by name (case-insensitive).
func Lookup(name string) (*Operation, bool) {
	op, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return op, ok
}

// Names returns all operation names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve maps names to operations, reporting every unknown name.
func Resolve(names []string) ([]*Operation, error) {
	ops := make([]*Operation, 0, len(names))
	var unknown []string
	for _, name := range names {
		op, ok := Lookup(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		ops = append(ops, op)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown operations %q (known: %s)", unknown, strings.Join(Names(), ", "))
	}
	return ops, nil
}

// DefaultWriteMix returns the mutating operations repeated by the write bucket.
func DefaultWriteMix() []string {
	return []string{CreateUser.Name, CreateProduct.Name, CreateOrder.Name, CreateLog.Name}
}

// DefaultReadMix returns the search operations repeated by the read bucket.
func DefaultReadMix() []string {
	return []string{SearchUsers.Name, SearchProducts.Name}
}

type userPayload struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Address     string `json:"address"`
}

type productPayload struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type entityRef struct {
	ID json.RawMessage `json:"id"`
}

type orderPayload struct {
	User     entityRef `json:"user"`
	Product  entityRef `json:"product"`
	Quantity int       `json:"quantity"`
}

type logPayload struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func buildCreateUser(rnd *rand.Rand, _ Pools) (Request, error) {
	return jsonRequest(http.MethodPost, "/api/users", userPayload{
		Name:        "User_" + randomString(rnd),
		Email:       randomString(rnd) + "@example.com",
		PhoneNumber: fmt.Sprintf("98%d", 10000000+rnd.Intn(90000000)),
		Address:     "Address_" + randomString(rnd),
	})
}

func buildCreateProduct(rnd *rand.Rand, _ Pools) (Request, error) {
	price := 10.0 + rnd.Float64()*990.0
	return jsonRequest(http.MethodPost, "/api/products", productPayload{
		Name:  "Product_" + randomString(rnd),
		Price: math.Round(price*100) / 100,
	})
}

func buildCreateOrder(rnd *rand.Rand, pools Pools) (Request, error) {
	user, _ := pools.Pick(PoolUsers, rnd)
	product, _ := pools.Pick(PoolProducts, rnd)
	return jsonRequest(http.MethodPost, "/api/orders", orderPayload{
		User:     entityRef{ID: json.RawMessage(user)},
		Product:  entityRef{ID: json.RawMessage(product)},
		Quantity: 1 + rnd.Intn(5),
	})
}

func buildCreateLog(rnd *rand.Rand, _ Pools) (Request, error) {
	return jsonRequest(http.MethodPost, "/api/logs", logPayload{
		Message:   "Log message " + randomString(rnd),
		Timestamp: time.Now().Format(logTimeLayout),
	})
}

func searchBuilder(path, name string) func(*rand.Rand, Pools) (Request, error) {
	return func(_ *rand.Rand, _ Pools) (Request, error) {
		return Request{
			Method: http.MethodGet,
			Path:   path,
			Query:  url.Values{"name": []string{name}},
		}, nil
	}
}

func jsonRequest(method, path string, payload interface{}) (Request, error) {
	body, err := jsonAPI.Marshal(payload)
	if err != nil {
		return Request{}, fmt.Errorf("encode %s payload: %w", path, err)
	}
	return Request{Method: method, Path: path, Body: body}, nil
}

func randomString(rnd *rand.Rand) string {
	buf := make([]byte, randomLength)
	for i := range buf {
		buf[i] = randomAlphabet[rnd.Intn(len(randomAlphabet))]
	}
	return string(buf)
}
