// Command targetsim serves the in-memory target API for local loadmix runs.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/loadmix/loadmix/internal/targetsim"
)

func main() {
	flags := pflag.NewFlagSet("targetsim", pflag.ExitOnError)
	port := flags.Int("port", 8080, "Listening port")
	seedUsers := flags.Int("seed-users", 0, "Users to create before serving")
	seedProducts := flags.Int("seed-products", 0, "Products to create before serving")
	_ = flags.Parse(os.Args[1:])

	if *port <= 0 {
		log.Fatalf("port must be > 0")
	}

	srv := targetsim.New()
	users := make([]targetsim.User, *seedUsers)
	for i := range users {
		users[i] = targetsim.User{Name: fmt.Sprintf("User_seed%d", i), Email: fmt.Sprintf("seed%d@example.com", i)}
	}
	products := make([]targetsim.Product, *seedProducts)
	for i := range products {
		products[i] = targetsim.Product{Name: fmt.Sprintf("Product_seed%d", i), Price: 10}
	}
	srv.Seed(users, products)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("target simulator listening on %s", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
