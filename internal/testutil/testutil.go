// Package testutil provides test helpers shared across querycat packages.
// The Redis helpers run an in-memory miniredis and need no external services.
package testutil
