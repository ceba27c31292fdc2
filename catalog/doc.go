// Package catalog is the stationery product API of the Boi Khata backend, consumed through
// the khata request layer, plus a local product cache persisted in the client's storage.
//
// Every call goes through [khata.Client.DoJSON], so product calls inherit session
// rehydration, refresh-and-retry and the error taxonomy. Product payloads are validated
// with the same rules as the dashboard forms before anything is sent.
package catalog
