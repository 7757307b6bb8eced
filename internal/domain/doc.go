// Package domain re-exports the session data model and the capability and
// store contracts from its types and interfaces subpackages, so most code
// imports a single package.
package domain
