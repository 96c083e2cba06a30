// Package rest provides typed JSON helpers over a pipeline.Dispatcher.
//
//	type Product struct {
//	    ID   string `json:"id"`
//	    Name string `json:"name"`
//	}
//
//	resp, err := rest.Get[Product](ctx, d, "/products/42")
//	cart, err := rest.Post[Cart](ctx, d, "/cart/items", item, rest.WithSession())
package rest
