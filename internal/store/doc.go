// Package store defines the persistence interfaces consumed by the
// task service, the pipeline stages and the network builder, together
// with the sentinel errors and transaction helper shared by their
// implementations.
package store
