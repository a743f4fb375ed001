// Package testing provides test utilities, builders, and mocks for unit tests.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - OfferBuilder and IntentBuilder: fluent builders for offers and intents
//   - Offers: a ranked offer fixture in a single location
//   - MockProvisioner and MockCatalog: shared testify mocks
//
// Usage:
//
//	intent := testing.NewIntentBuilder().
//	    WithOfferID("2").
//	    WithBalance("5.00").
//	    Build()
//
//	prov := &testing.MockProvisioner{}
//	prov.ConnectOn("2")
package testing
