// Package contract checks the public contract of the beach weather resource:
// each scenario builds a query, sends it, and asserts on the status code and
// JSON body of the response.
//
// The unit tests run the scenarios against an in-process fake of the
// resource. The live checks call the real endpoint and are behind a build tag:
//
//	go test -tags=contract ./internal/contract/...
//
// Set BEACHWATCH_CONTRACT_BASE_URL to point them at another portal.
package contract
