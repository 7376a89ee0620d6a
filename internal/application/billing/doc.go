// Package billing contains the application services of the invoicing
// bounded context: payment status reconciliation, reporting, and
// sequential identifier allocation. Services orchestrate the domain
// layer against the injected invoice repository and own no derivation
// logic of their own.
package billing
