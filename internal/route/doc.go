// Package route defines the routing rule entity and the in-memory route
// store consulted by routing filters.
//
// The store exposes two capabilities as separate interfaces: Writer for
// administrative mutation (save, delete) and Locator for the request read
// path. Consumers depend only on the capability they need.
//
// # Usage
//
//	repo := route.NewInMemoryRepository(route.WithLogger(logger))
//	if err := repo.Save(ctx, route.Route{ID: "users", URI: "http://users:8080"}).Err(); err != nil {
//	    return err
//	}
//	for r := range repo.Routes(ctx) {
//	    fmt.Println(r.ID)
//	}
package route
