// Package chain reads staking data from a Cardano node over the
// node-to-client local state query protocol.
//
// A Client wraps a gouroboros connection and exposes context-aware queries
// that return plain values and era-staged records ready for the resource
// schedulers. An EraPoller keeps an era.Provider in step with the node's
// epoch number.
package chain
