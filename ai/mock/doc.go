// Package mock provides test doubles for the ai service interfaces.
// Mocks default to deterministic behavior and support injection of
// custom behavior through exported function fields.
package mock
