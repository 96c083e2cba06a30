// Package fakeapi is an in-process shop backend used by the demo and by
// integration tests. It issues HS256 tokens, rejects expired ones with 401,
// demands an update from outdated app versions, and counts calls to the
// refresh and logout endpoints so tests can assert single-flight behaviour.
//
//	api := fakeapi.New(fakeapi.Config{Secret: "s3cret"})
//	srv := httptest.NewServer(api.Handler())
//	defer srv.Close()
package fakeapi
