// Package targetsim is an in-memory stand-in for the service loadmix drives.
// It serves the user, product, order and log endpoints with the same shapes
// and failure behavior, so runs can be exercised without a database.
package targetsim

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type User struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Address     string `json:"address"`
}

type Product struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type Order struct {
	ID       int64    `json:"id"`
	User     *User    `json:"user"`
	Product  *Product `json:"product"`
	Quantity int      `json:"quantity"`
}

type LogEntry struct {
	ID        int64  `json:"id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Server holds the simulated tables.
type Server struct {
	mu       sync.RWMutex
	seq      int64
	users    map[int64]User
	products map[int64]Product
	orders   []Order
	logs     []LogEntry
	requests int64

	// FailWith, when non-zero, is returned as the status of every request.
	FailWith int
}

func New() *Server {
	return &Server{
		users:    make(map[int64]User),
		products: make(map[int64]Product),
	}
}

// Handler routes the API endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users", s.createUser)
	mux.HandleFunc("POST /api/products", s.createProduct)
	mux.HandleFunc("POST /api/orders", s.createOrder)
	mux.HandleFunc("POST /api/logs", s.createLog)
	mux.HandleFunc("GET /api/users/search", s.searchUsers)
	mux.HandleFunc("GET /api/products/search", s.searchProducts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.requests, 1)
		if s.FailWith != 0 {
			respondJSON(w, s.FailWith, map[string]any{"error": http.StatusText(s.FailWith)})
			return
		}
		mux.ServeHTTP(w, r)
	})
}

// Requests returns the number of requests received.
func (s *Server) Requests() int64 {
	return atomic.LoadInt64(&s.requests)
}

// Seed inserts users and products directly.
func (s *Server) Seed(users []User, products []Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		u.ID = s.next()
		s.users[u.ID] = u
	}
	for _, p := range products {
		p.ID = s.next()
		s.products[p.ID] = p
	}
}

// Counts reports table sizes.
func (s *Server) Counts() (users, products, orders, logs int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), len(s.products), len(s.orders), len(s.logs)
}

// next must be called with mu held.
func (s *Server) next() int64 {
	s.seq++
	return s.seq
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var u User
	if !decode(w, r, &u) {
		return
	}
	if strings.TrimSpace(u.Name) == "" || strings.TrimSpace(u.Email) == "" {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "name and email are required"})
		return
	}
	s.mu.Lock()
	u.ID = s.next()
	s.users[u.ID] = u
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, u)
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var p Product
	if !decode(w, r, &p) {
		return
	}
	if strings.TrimSpace(p.Name) == "" || p.Price <= 0 {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "name and positive price are required"})
		return
	}
	s.mu.Lock()
	p.ID = s.next()
	s.products[p.ID] = p
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var o Order
	if !decode(w, r, &o) {
		return
	}
	if o.User == nil || o.User.ID == 0 || o.Product == nil || o.Product.ID == 0 {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": "user and product ids are required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[o.User.ID]
	if !ok {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": "user not found"})
		return
	}
	product, ok := s.products[o.Product.ID]
	if !ok {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": "product not found"})
		return
	}
	o.ID = s.next()
	o.User = &user
	o.Product = &product
	s.orders = append(s.orders, o)
	respondJSON(w, http.StatusOK, o)
}

func (s *Server) createLog(w http.ResponseWriter, r *http.Request) {
	var l LogEntry
	if !decode(w, r, &l) {
		return
	}
	s.mu.Lock()
	l.ID = s.next()
	s.logs = append(s.logs, l)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, l)
}

func (s *Server) searchUsers(w http.ResponseWriter, r *http.Request) {
	name, ok := nameParam(w, r)
	if !ok {
		return
	}
	s.mu.RLock()
	matches := make([]User, 0)
	for _, u := range s.users {
		if containsFold(u.Name, name) {
			matches = append(matches, u)
		}
	}
	s.mu.RUnlock()
	respondJSON(w, http.StatusOK, matches)
}

func (s *Server) searchProducts(w http.ResponseWriter, r *http.Request) {
	name, ok := nameParam(w, r)
	if !ok {
		return
	}
	s.mu.RLock()
	matches := make([]Product, 0)
	for _, p := range s.products {
		if containsFold(p.Name, name) {
			matches = append(matches, p)
		}
	}
	s.mu.RUnlock()
	respondJSON(w, http.StatusOK, matches)
}

// nameParam requires the name parameter to be present; it may be empty.
func nameParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	values, ok := r.URL.Query()["name"]
	if !ok {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "name parameter is required"})
		return "", false
	}
	return values[0], true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := jsonAPI.NewDecoder(r.Body).Decode(v); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonAPI.NewEncoder(w).Encode(payload)
}
