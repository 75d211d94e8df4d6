// Package config defines the broker process settings and provides helpers
// to load and validate them from a YAML file with an environment overlay.
//
// The Config type covers the panel listener, the account/key table, the
// downstream forwarding target with its retry policy, heartbeat filtering,
// and the replay buffer.
package config
