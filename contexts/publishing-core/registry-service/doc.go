// Package registryservice contains the Folio publication registry: authority
// key initialization, signed mint of single-use publish capabilities, and the
// publish transition that consumes a capability and commits a paper record.
//
// The module keeps domain/application logic decoupled from runtime/platform
// concerns through ports and adapter composition.
package registryservice
