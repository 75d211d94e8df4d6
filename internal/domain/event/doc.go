// Package event defines the domain types shared across the broker:
// decoded alarm events, replay records, and the signal code vocabulary.
package event
