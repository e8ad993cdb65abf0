// Package framework defines the contract every agent framework adapter
// satisfies, the shared Base that implements it on top of a per-framework
// Blueprint, and the Registry that maps framework types to adapters.
//
// A concrete adapter supplies only validation, plan building, resource
// estimation and a success summary. Step choreography, timeouts,
// cancellation and logging are shared.
package framework
